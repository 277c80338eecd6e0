package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	clk := storetest.NewClock()
	s := New(t.Context(), Options{Clock: clk.Now})
	t.Cleanup(func() { s.Close() })

	storetest.Common(t, s, clk)
}

func insert(t *testing.T, s *Store, clk *storetest.Clock, ttl time.Duration) *challenge.Challenge {
	t.Helper()

	now := clk.Now()
	c := &challenge.Challenge{
		ID:        uuid.NewString(),
		Type:      challenge.TypeMath,
		Solution:  "7",
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := s.Insert(t.Context(), c); err != nil {
		t.Fatal(err)
	}

	return c
}

func TestSweep(t *testing.T) {
	clk := storetest.NewClock()
	s := New(t.Context(), Options{Clock: clk.Now, SweepInterval: time.Hour})
	t.Cleanup(func() { s.Close() })

	for range 10 {
		insert(t, s, clk, time.Minute)
	}
	keep := insert(t, s, clk, time.Hour)

	if got := s.Len(); got != 11 {
		t.Fatalf("wanted 11 stored challenges, got %d", got)
	}

	if got := s.Sweep(); got != 0 {
		t.Errorf("nothing has expired yet but %d were swept", got)
	}

	clk.Advance(2 * time.Minute)

	if got := s.Sweep(); got != 10 {
		t.Errorf("wanted 10 swept, got %d", got)
	}

	if got := s.Len(); got != 1 {
		t.Errorf("wanted 1 challenge left, got %d", got)
	}

	if _, err := s.Get(t.Context(), keep.ID); err != nil {
		t.Errorf("live challenge was swept: %v", err)
	}
}

func TestSweeperRuns(t *testing.T) {
	clk := storetest.NewClock()
	s := New(t.Context(), Options{Clock: clk.Now, SweepInterval: 5 * time.Millisecond})
	t.Cleanup(func() { s.Close() })

	insert(t, s, clk, time.Second)
	clk.Advance(2 * time.Second)

	deadline := time.Now().Add(5 * time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper never removed the expired challenge")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSweepConcurrentWithConsume(t *testing.T) {
	clk := storetest.NewClock()
	s := New(t.Context(), Options{Clock: clk.Now, SweepInterval: time.Hour})
	t.Cleanup(func() { s.Close() })

	var live []*challenge.Challenge
	for range 200 {
		insert(t, s, clk, time.Millisecond)
		live = append(live, insert(t, s, clk, time.Hour))
	}
	clk.Advance(time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Sweep()
	}()

	for _, c := range live {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(t.Context(), c.ID); err != nil {
				t.Errorf("can't consume live challenge %s: %v", c.ID, err)
			}
		}()
	}

	wg.Wait()

	if got := s.Len(); got != 0 {
		t.Errorf("wanted an empty store, got %d", got)
	}
}

func TestShardsSpread(t *testing.T) {
	clk := storetest.NewClock()
	s := New(t.Context(), Options{Clock: clk.Now, Shards: 4})
	t.Cleanup(func() { s.Close() })

	for range 400 {
		insert(t, s, clk, time.Minute)
	}

	for i, sh := range s.shards {
		if sh.Len() == 0 {
			t.Errorf("shard %d is empty after 400 inserts", i)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := New(t.Context(), Options{})

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
