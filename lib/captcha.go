package lib

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/uvensys/captchad/decaymap"
	"github.com/uvensys/captchad/lib/assets"
	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/config"
	"github.com/uvensys/captchad/lib/localization"
	"github.com/uvensys/captchad/lib/store"

	// challenge implementations
	_ "github.com/uvensys/captchad/lib/challenge/arith"
	_ "github.com/uvensys/captchad/lib/challenge/audio"
	_ "github.com/uvensys/captchad/lib/challenge/grid"
	_ "github.com/uvensys/captchad/lib/challenge/slider"
	_ "github.com/uvensys/captchad/lib/challenge/text"
)

var (
	ErrChallengeNotFound = errors.New("lib: challenge not found or expired")
	ErrWrongAnswer       = errors.New("lib: wrong answer")
	ErrAlreadyRedeemed   = errors.New("lib: challenge was already redeemed")
)

var (
	challengesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captchad_challenges_issued",
		Help: "The total number of challenges issued",
	}, []string{"type"})

	challengesValidated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captchad_challenges_validated",
		Help: "The total number of challenges validated",
	}, []string{"type"})

	failedIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captchad_failed_issues",
		Help: "The total number of challenges that could not be generated",
	}, []string{"type"})

	failedValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captchad_failed_validations",
		Help: "The total number of failed validations",
	}, []string{"type"})
)

type Server struct {
	mux      *http.ServeMux
	store    store.Interface
	assets   *assets.Libraries
	config   *config.Config
	clock    func() time.Time
	rand     func() *rand.Rand
	priv     ed25519.PrivateKey
	pub      ed25519.PublicKey
	redeemed *decaymap.Impl[string, struct{}]
	opts     Options

	cancel context.CancelFunc
	done   chan struct{}
}

// Create issues a new challenge of the named type and stores it until it
// expires. Empty and unknown type names give a text challenge. lang picks the
// instruction language; empty means English.
//
// A challenge is only stored when generation succeeded.
func (s *Server) Create(ctx context.Context, typ, lang string) (*challenge.Challenge, error) {
	t := challenge.ParseType(typ)
	lg := slog.With("type", t)

	impl, ok := challenge.Get(t)
	if !ok {
		failedIssues.WithLabelValues(string(t)).Inc()
		return nil, challenge.NewError("issue", t, "unknown challenge type", fmt.Errorf("%w: %s", challenge.ErrUnknownType, t))
	}

	start := time.Now()
	issued, err := impl.Issue(lg, &challenge.IssueInput{
		Rand:      s.rand(),
		Assets:    s.assets,
		Config:    s.config,
		Localizer: localization.ForLanguage(lang),
	})
	challenge.TimeTaken.WithLabelValues(string(t)).Observe(float64(time.Since(start)) / float64(time.Millisecond))
	if err != nil {
		failedIssues.WithLabelValues(string(t)).Inc()
		lg.Error("can't issue challenge", "err", err)
		return nil, err
	}

	now := s.clock()
	chall := &challenge.Challenge{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   issued.Payload,
		Solution:  issued.Solution,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(s.config.TTL)),
	}

	if err := s.store.Insert(ctx, chall); err != nil {
		failedIssues.WithLabelValues(string(t)).Inc()
		return nil, challenge.NewError("store", t, "can't store challenge", err)
	}

	challengesIssued.WithLabelValues(string(t)).Inc()
	lg.Debug("issued challenge", "id", chall.ID, "expires_at", chall.ExpiresAt)

	return chall, nil
}

// Redeem checks answer against the challenge and consumes it on success.
// Wrong answers leave the challenge in place so it can be tried again until
// it expires.
func (s *Server) Redeem(ctx context.Context, id, answer string) (*challenge.Challenge, error) {
	lg := slog.With("id", id)

	chall, err := s.store.Get(ctx, id)
	if err != nil {
		failedValidations.WithLabelValues("unknown").Inc()
		return nil, fmt.Errorf("%w: %w", ErrChallengeNotFound, err)
	}
	lg = lg.With("type", chall.Type)

	impl, ok := challenge.Get(chall.Type)
	if !ok {
		failedValidations.WithLabelValues(string(chall.Type)).Inc()
		return nil, fmt.Errorf("%w: %s", challenge.ErrUnknownType, chall.Type)
	}

	if !impl.Validate(lg, &challenge.ValidateInput{
		Challenge: chall,
		Answer:    answer,
		Config:    s.config,
	}) {
		failedValidations.WithLabelValues(string(chall.Type)).Inc()
		lg.Debug("wrong answer")
		return nil, ErrWrongAnswer
	}

	// Another request may have redeemed the same challenge between Get and
	// here. Only the request whose Consume succeeds wins.
	if _, err := s.store.Consume(ctx, id); err != nil {
		failedValidations.WithLabelValues(string(chall.Type)).Inc()
		return nil, fmt.Errorf("%w: %w", ErrAlreadyRedeemed, err)
	}

	challengesValidated.WithLabelValues(string(chall.Type)).Inc()
	lg.Debug("challenge passed")

	return chall, nil
}

// Validate reports whether answer solves the challenge. A true result is
// returned at most once per challenge.
func (s *Server) Validate(ctx context.Context, id, answer string) bool {
	_, err := s.Redeem(ctx, id, answer)
	return err == nil
}

func (s *Server) cleanupThread(ctx context.Context) {
	defer close(s.done)

	t := time.NewTicker(time.Duration(s.config.SweepInterval))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.CleanupDecayMap()
		}
	}
}

// CleanupDecayMap drops expired pass token redemptions.
func (s *Server) CleanupDecayMap() {
	s.redeemed.Cleanup()
}

// Close stops background work and closes the store if the server created it.
func (s *Server) Close() error {
	s.cancel()
	<-s.done

	if s.opts.Store == nil {
		if c, ok := s.store.(interface{ Close() error }); ok {
			return c.Close()
		}
	}

	return nil
}
