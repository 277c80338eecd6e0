package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/uvensys/captchad"
	"github.com/uvensys/captchad/decaymap"
	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/store"
)

// DefaultShards is the number of independently locked maps in a store.
const DefaultShards = 16

type Options struct {
	// SweepInterval is how often expired challenges are reclaimed. Zero
	// means captchad.DefaultSweepInterval.
	SweepInterval time.Duration

	// Shards is the number of independently locked maps. Zero means
	// DefaultShards.
	Shards int

	// Clock returns the current time. Nil means time.Now.
	Clock func() time.Time

	Logger *slog.Logger
}

// Store is an in-memory challenge store. This will not scale to multiple
// captchad instances.
type Store struct {
	shards []*decaymap.Impl[string, *challenge.Challenge]
	lg     *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

var _ store.Interface = (*Store)(nil)

// New creates a store and starts its sweeper. The sweeper stops when ctx is
// cancelled or Close is called.
func New(ctx context.Context, opts Options) *Store {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = captchad.DefaultSweepInterval
	}

	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	result := &Store{
		shards: make([]*decaymap.Impl[string, *challenge.Challenge], opts.Shards),
		lg:     opts.Logger.With("component", "store"),
		done:   make(chan struct{}),
	}

	for i := range result.shards {
		result.shards[i] = decaymap.NewWithClock[string, *challenge.Challenge](opts.Clock)
	}

	ctx, result.cancel = context.WithCancel(ctx)
	go result.cleanupThread(ctx, opts.SweepInterval)

	return result
}

func (s *Store) shard(id string) *decaymap.Impl[string, *challenge.Challenge] {
	return s.shards[xxhash.Sum64String(id)%uint64(len(s.shards))]
}

func (s *Store) Insert(_ context.Context, c *challenge.Challenge) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: missing id", store.ErrInvalid)
	}

	s.shard(c.ID).SetUntil(c.ID, c, c.ExpiresAt)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*challenge.Challenge, error) {
	result, ok := s.shard(id).Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, id)
	}

	return result, nil
}

func (s *Store) Consume(_ context.Context, id string) (*challenge.Challenge, error) {
	result, ok := s.shard(id).Consume(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, id)
	}

	return result, nil
}

func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.Len()
	}
	return total
}

// Sweep removes every expired challenge and returns how many were removed.
// It is safe to call while the store is in use.
func (s *Store) Sweep() int {
	removed := 0
	for _, sh := range s.shards {
		removed += sh.Cleanup()
	}

	swept.Add(float64(removed))
	live.Set(float64(s.Len()))

	return removed
}

// sweepOnce runs a single pass. A panic in a pass is logged and the next
// tick tries again.
func (s *Store) sweepOnce() {
	defer func() {
		if r := recover(); r != nil {
			sweepFailures.Inc()
			s.lg.Error("sweep pass failed", "panic", r)
		}
	}()

	start := time.Now()
	removed := s.Sweep()
	s.lg.Debug("sweep pass done", "removed", removed, "remaining", s.Len(), "took", time.Since(start))
}

func (s *Store) cleanupThread(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweepOnce()
		}
	}
}

// Close stops the sweeper and waits for it to exit. Stored challenges stay
// readable.
func (s *Store) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}
