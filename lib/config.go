package lib

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	mrand "math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/uvensys/captchad"
	"github.com/uvensys/captchad/decaymap"
	"github.com/uvensys/captchad/lib/assets"
	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/config"
	"github.com/uvensys/captchad/lib/store"
	"github.com/uvensys/captchad/lib/store/memory"
)

type Options struct {
	// Assets are the image and audio pools. Nil means no assets, which
	// leaves only the text and math challenges usable.
	Assets *assets.Libraries

	// Config is the challenge tuning. Nil means config.Default().
	Config *config.Config

	// Store keeps issued challenges. Nil means an in-memory store owned by
	// the server and closed by Server.Close.
	Store store.Interface

	// Clock returns the current time. Nil means time.Now.
	Clock func() time.Time

	// Rand returns the random stream for one generation call. Nil means
	// challenge.NewRand.
	Rand func() *mrand.Rand

	ED25519PrivateKey ed25519.PrivateKey
	PassTokenTTL      time.Duration
	BasePrefix        string
}

func New(opts Options) (*Server, error) {
	if opts.ED25519PrivateKey == nil {
		slog.Debug("opts.ED25519PrivateKey not set, generating a new one")
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("lib: can't generate private key: %v", err)
		}
		opts.ED25519PrivateKey = priv
	}

	if opts.Config == nil {
		opts.Config = config.Default()
	}

	if err := opts.Config.Valid(); err != nil {
		return nil, fmt.Errorf("lib: %w", err)
	}

	if opts.Assets == nil {
		opts.Assets = assets.Empty()
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	if opts.Rand == nil {
		opts.Rand = challenge.NewRand
	}

	if opts.PassTokenTTL <= 0 {
		opts.PassTokenTTL = captchad.DefaultPassTokenTTL
	}

	captchad.BasePrefix = opts.BasePrefix

	ctx, cancel := context.WithCancel(context.Background())

	st := opts.Store
	if st == nil {
		st = memory.New(ctx, memory.Options{
			SweepInterval: time.Duration(opts.Config.SweepInterval),
			Clock:         opts.Clock,
		})
	}

	result := &Server{
		store:    st,
		assets:   opts.Assets,
		config:   opts.Config,
		clock:    opts.Clock,
		rand:     opts.Rand,
		priv:     opts.ED25519PrivateKey,
		pub:      opts.ED25519PrivateKey.Public().(ed25519.PublicKey),
		redeemed: decaymap.NewWithClock[string, struct{}](opts.Clock),
		opts:     opts,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go result.cleanupThread(ctx)

	mux := http.NewServeMux()

	// Helper to add global prefix
	registerWithPrefix := func(pattern string, handler http.Handler, method string) {
		if method != "" {
			method = method + " " // methods must end with a space to register with them
		}

		// Ensure there's no double slash when concatenating BasePrefix and pattern
		basePrefix := strings.TrimSuffix(captchad.BasePrefix, "/")
		prefix := method + basePrefix

		// If pattern doesn't start with a slash, add one
		if !strings.HasPrefix(pattern, "/") {
			pattern = "/" + pattern
		}

		mux.Handle(prefix+pattern, handler)
	}

	registerWithPrefix(captchad.APIPrefix+"challenge", http.HandlerFunc(result.MakeChallenge), "GET")
	registerWithPrefix(captchad.APIPrefix+"challenge", http.HandlerFunc(result.MakeChallenge), "POST")
	registerWithPrefix(captchad.APIPrefix+"verify", http.HandlerFunc(result.PassChallenge), "POST")
	registerWithPrefix(captchad.APIPrefix+"siteverify", http.HandlerFunc(result.SiteVerify), "POST")
	registerWithPrefix("/healthz", http.HandlerFunc(result.Healthz), "GET")
	registerWithPrefix("/{$}", http.HandlerFunc(result.RenderIndex), "GET")

	result.mux = mux

	return result, nil
}
