package apps

import (
	"context"
	"fmt"

	"github.com/teamcutter/ipfilter/internal/domain"
	"github.com/teamcutter/ipfilter/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Enumerator probes a fixed list of targets. Probes run concurrently but
// results keep the list's order.
type Enumerator struct {
	targets []domain.Target
	enabled func(name string) bool
}

// NewEnumerator builds an enumerator over targets. enabled may be nil.
func NewEnumerator(targets []domain.Target, enabled func(name string) bool) *Enumerator {
	return &Enumerator{targets: targets, enabled: enabled}
}

// Builtin returns every supported target in enumeration order. dirs
// overrides a target's data directory by name.
func Builtin(dirs map[string]string, conflicts domain.ConflictHandler) []domain.Target {
	return []domain.Target{
		NewUTorrent(dirs[UTorrent], conflicts),
		NewBitTorrent(dirs[BitTorrent], conflicts),
		NewQBittorrent(dirs[QBittorrent]),
		NewTransmission(dirs[Transmission]),
	}
}

func (e *Enumerator) Targets() []domain.Target {
	return e.targets
}

// DetectInstalled never fails: a probe that errors or panics counts as
// "not installed".
func (e *Enumerator) DetectInstalled(ctx context.Context) []domain.DetectedApplication {
	found := make([]*domain.DetectedApplication, len(e.targets))

	var g errgroup.Group
	g.SetLimit(4)

	for i, t := range e.targets {
		if e.enabled != nil && !e.enabled(t.Name()) {
			log.Debug("target disabled", logging.KeyApp, t.Name())
			continue
		}

		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Warn("probe panicked", logging.KeyApp, t.Name(), logging.KeyError, fmt.Sprint(r))
				}
			}()

			app, err := t.Detect(ctx)
			if err != nil {
				log.Warn("probe failed", logging.KeyApp, t.Name(), logging.KeyError, err)
				return nil
			}
			found[i] = app
			return nil
		})
	}
	_ = g.Wait()

	var apps []domain.DetectedApplication
	for _, app := range found {
		if app != nil {
			apps = append(apps, *app)
		}
	}
	return apps
}
