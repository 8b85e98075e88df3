package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/teamcutter/ipfilter/internal/domain"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownMirror   = errors.New("unknown mirror")
	ErrNoMirrors       = errors.New("provider has no mirrors")
)

type Providers interface {
	Get(name string) (domain.MirrorProvider, bool)
}

type Resolver struct {
	providers       Providers
	defaultProvider string
	defaultMirror   string
}

// Request picks a download location. URL, when set, wins over the rest.
type Request struct {
	Provider string
	Mirror   string
	URL      string
}

type Selection struct {
	Provider string
	Mirror   domain.Mirror
	URL      string
}

func New(providers Providers, defaultProvider, defaultMirror string) *Resolver {
	return &Resolver{
		providers:       providers,
		defaultProvider: defaultProvider,
		defaultMirror:   defaultMirror,
	}
}

func (r *Resolver) Resolve(ctx context.Context, req Request) (*Selection, error) {
	if req.URL != "" {
		u, err := url.Parse(req.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("invalid url %q", req.URL)
		}
		return &Selection{URL: req.URL}, nil
	}

	name := req.Provider
	mirrorID := req.Mirror
	if name == "" {
		name = r.defaultProvider
		if mirrorID == "" {
			mirrorID = r.defaultMirror
		}
	}

	provider, ok := r.providers.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	mirrors := provider.Mirrors(ctx)
	if len(mirrors) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoMirrors)
	}

	mirror, err := pick(mirrors, mirrorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return &Selection{
		Provider: provider.Name(),
		Mirror:   mirror,
		URL:      provider.URL(mirror),
	}, nil
}

func pick(mirrors []domain.Mirror, id string) (domain.Mirror, error) {
	if id == "" {
		return mirrors[0], nil
	}
	for _, m := range mirrors {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Mirror{}, fmt.Errorf("%w: %q", ErrUnknownMirror, id)
}
