package challenge

import (
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/uvensys/captchad/lib/assets"
	"github.com/uvensys/captchad/lib/config"
	"github.com/uvensys/captchad/lib/localization"
)

var (
	registry map[Type]Impl = map[Type]Impl{}
	regLock  sync.RWMutex
)

func Register(typ Type, impl Impl) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[typ] = impl
}

func Get(typ Type) (Impl, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	result, ok := registry[typ]
	return result, ok
}

// Methods returns the registered types in the order of Types.
func Methods() []Type {
	regLock.RLock()
	defer regLock.RUnlock()
	var result []Type
	for _, typ := range Types {
		if _, ok := registry[typ]; ok {
			result = append(result, typ)
		}
	}
	return result
}

type IssueInput struct {
	Rand      *rand.Rand
	Assets    *assets.Libraries
	Config    *config.Config
	Localizer *localization.SimpleLocalizer
}

// Issued is what a generator hands back: the client-visible payload and the
// answer derived from the same random draws.
type Issued struct {
	Payload  Payload
	Solution string
}

type ValidateInput struct {
	Challenge *Challenge
	Answer    string
	Config    *config.Config
}

type Impl interface {
	// Issue generates a new challenge payload and its solution.
	Issue(lg *slog.Logger, in *IssueInput) (*Issued, error)

	// Validate reports whether the answer matches the stored solution. It
	// never fails: malformed answers are simply wrong.
	Validate(lg *slog.Logger, in *ValidateInput) bool
}
