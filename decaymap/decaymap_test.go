package decaymap

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	lock sync.Mutex
	t    time.Time
}

func (f *fakeClock) Now() time.Time {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.t = f.t.Add(d)
}

func TestImpl(t *testing.T) {
	dm := New[string, string]()

	dm.Set("test", "hi", 5*time.Minute)

	val, ok := dm.Get("test")
	if !ok {
		t.Error("somehow the test key was not set")
	}

	if val != "hi" {
		t.Errorf("wanted value %q, got: %q", "hi", val)
	}

	ok = dm.expire("test")
	if !ok {
		t.Fatal("expire returned false")
	}

	if val, ok = dm.Get("test"); ok {
		t.Errorf("value should not be returned, got: %q", val)
	}

	if dm.Len() != 0 {
		t.Errorf("expired Get should have removed the entry, len is %d", dm.Len())
	}

	dm.Set("test", "hi", 5*time.Minute)
	if !dm.Delete("test") {
		t.Error("Delete of a live key returned false")
	}
	if dm.Delete("test") {
		t.Error("Delete of a missing key returned true")
	}
}

func TestConsume(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	dm := NewWithClock[string, int](clk.Now)

	dm.Set("a", 1, time.Minute)
	dm.Set("b", 2, time.Minute)

	if v, ok := dm.Consume("a"); !ok || v != 1 {
		t.Fatalf("Consume(a) = %d, %v; want 1, true", v, ok)
	}

	if _, ok := dm.Consume("a"); ok {
		t.Error("second Consume(a) succeeded")
	}

	clk.Advance(time.Minute)

	if _, ok := dm.Consume("b"); ok {
		t.Error("Consume of an expired key succeeded")
	}

	if dm.Len() != 0 {
		t.Errorf("expired Consume should have removed the entry, len is %d", dm.Len())
	}
}

func TestConsumeRace(t *testing.T) {
	dm := New[string, int]()
	dm.Set("key", 42, time.Minute)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := dm.Consume("key"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("wanted exactly one successful Consume, got %d", got)
	}
}

func TestCleanup(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	dm := NewWithClock[string, string](clk.Now)

	dm.Set("short", "x", time.Second)
	dm.Set("long", "y", time.Hour)

	if n := dm.Cleanup(); n != 0 {
		t.Errorf("nothing should be expired yet, removed %d", n)
	}

	clk.Advance(2 * time.Second)

	if n := dm.Cleanup(); n != 1 {
		t.Errorf("wanted 1 entry removed, got %d", n)
	}

	if _, ok := dm.Get("long"); !ok {
		t.Error("long-lived entry was removed by cleanup")
	}
}

func TestAddUntil(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	dm := NewWithClock[string, int](clk.Now)

	if !dm.AddUntil("k", 1, clk.Now().Add(time.Minute)) {
		t.Fatal("first AddUntil failed")
	}

	if dm.AddUntil("k", 2, clk.Now().Add(time.Minute)) {
		t.Error("AddUntil replaced a live value")
	}

	if v, _ := dm.Get("k"); v != 1 {
		t.Errorf("wanted 1, got %d", v)
	}

	clk.Advance(time.Minute)

	if !dm.AddUntil("k", 3, clk.Now().Add(time.Minute)) {
		t.Error("AddUntil did not replace an expired value")
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if dm.AddUntil("race", 1, clk.Now().Add(time.Minute)) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("wanted exactly one AddUntil to win, got %d", got)
	}
}
