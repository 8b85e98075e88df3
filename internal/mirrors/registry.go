package mirrors

import (
	"net/http"
	"time"

	"github.com/teamcutter/ipfilter/internal/domain"
)

// Registry is the fixed, ordered set of known providers.
type Registry struct {
	providers []domain.MirrorProvider
}

func NewRegistry(providers ...domain.MirrorProvider) *Registry {
	return &Registry{providers: providers}
}

// Default returns every built-in provider. cacheDir holds scraped catalogs.
func Default(client *http.Client, cacheDir string, catalogTTL time.Duration) *Registry {
	return NewRegistry(
		DavidMoore(),
		EmuleSecurity(),
		Blocklist(),
		NewSourceForge(client, cacheDir, catalogTTL),
	)
}

func (r *Registry) Providers() []domain.MirrorProvider {
	return r.providers
}

func (r *Registry) Get(name string) (domain.MirrorProvider, bool) {
	for _, p := range r.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}
