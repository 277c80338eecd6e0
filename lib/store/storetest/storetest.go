package storetest

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/store"
)

// Clock is a manually advanced clock for expiry tests.
type Clock struct {
	lock sync.Mutex
	now  time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

func mkChallenge(clk *Clock, ttl time.Duration) *challenge.Challenge {
	now := clk.Now()
	return &challenge.Challenge{
		ID:        uuid.NewString(),
		Type:      challenge.TypeText,
		Solution:  "ABCDE",
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Common runs the behaviour every store must have. s must read the time from
// clk. Subtests share s and clk, so they run sequentially.
func Common(t *testing.T, s store.Interface, clk *Clock) {
	for _, tt := range []struct {
		name string
		doer func(t *testing.T, s store.Interface) error
		err  error
	}{
		{
			name: "insert get consume",
			doer: func(t *testing.T, s store.Interface) error {
				c := mkChallenge(clk, time.Minute)

				if _, err := s.Get(t.Context(), c.ID); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", c.ID)
				}

				if err := s.Insert(t.Context(), c); err != nil {
					return err
				}

				got, err := s.Get(t.Context(), c.ID)
				if err != nil {
					return err
				}

				if got.Solution != c.Solution {
					t.Logf("want: %q", c.Solution)
					t.Logf("got:  %q", got.Solution)
					t.Error("wrong challenge returned")
				}

				if _, err := s.Consume(t.Context(), c.ID); err != nil {
					return err
				}

				if _, err := s.Get(t.Context(), c.ID); !errors.Is(err, store.ErrNotFound) {
					t.Error("consumed challenge is still readable")
				}

				_, err = s.Consume(t.Context(), c.ID)
				return err
			},
			err: store.ErrNotFound,
		},
		{
			name: "get does not consume",
			doer: func(t *testing.T, s store.Interface) error {
				c := mkChallenge(clk, time.Minute)
				if err := s.Insert(t.Context(), c); err != nil {
					return err
				}

				for range 3 {
					if _, err := s.Get(t.Context(), c.ID); err != nil {
						return err
					}
				}

				_, err := s.Consume(t.Context(), c.ID)
				return err
			},
		},
		{
			name: "live just before expiry",
			doer: func(t *testing.T, s store.Interface) error {
				c := mkChallenge(clk, time.Minute)
				if err := s.Insert(t.Context(), c); err != nil {
					return err
				}

				clk.Advance(time.Minute - time.Millisecond)
				_, err := s.Get(t.Context(), c.ID)
				return err
			},
		},
		{
			name: "gone at expiry",
			doer: func(t *testing.T, s store.Interface) error {
				c := mkChallenge(clk, time.Minute)
				if err := s.Insert(t.Context(), c); err != nil {
					return err
				}

				clk.Advance(time.Minute)
				_, err := s.Get(t.Context(), c.ID)
				return err
			},
			err: store.ErrNotFound,
		},
		{
			name: "consume after expiry",
			doer: func(t *testing.T, s store.Interface) error {
				c := mkChallenge(clk, time.Minute)
				if err := s.Insert(t.Context(), c); err != nil {
					return err
				}

				clk.Advance(time.Minute + time.Millisecond)
				_, err := s.Consume(t.Context(), c.ID)
				return err
			},
			err: store.ErrNotFound,
		},
		{
			name: "no id",
			doer: func(t *testing.T, s store.Interface) error {
				c := mkChallenge(clk, time.Minute)
				c.ID = ""
				return s.Insert(t.Context(), c)
			},
			err: store.ErrInvalid,
		},
		{
			name: "one consumer wins",
			doer: func(t *testing.T, s store.Interface) error {
				c := mkChallenge(clk, time.Minute)
				if err := s.Insert(t.Context(), c); err != nil {
					return err
				}

				var wins atomic.Int32
				var wg sync.WaitGroup
				for range 64 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if _, err := s.Consume(t.Context(), c.ID); err == nil {
							wins.Add(1)
						}
					}()
				}
				wg.Wait()

				if got := wins.Load(); got != 1 {
					t.Errorf("wanted exactly one winning Consume, got %d", got)
				}

				return nil
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.doer(t, s); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}
