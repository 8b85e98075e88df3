package apps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/teamcutter/ipfilter/internal/domain"
	"github.com/teamcutter/ipfilter/internal/logging"
)

var log = logging.L("apps")

type installInfo struct {
	Version  string
	Location string
}

// base holds what every target shares: where the client lives and how to
// recognise it.
type base struct {
	name        string
	displayName string
	processes   []string
	dir         string
	file        string
}

func (b *base) path() string {
	return filepath.Join(b.dir, b.file)
}

func (b *base) detect(self domain.Target) (*domain.DetectedApplication, error) {
	if info, ok := probeInstall(b.displayName); ok {
		return &domain.DetectedApplication{
			Name:            b.displayName,
			Version:         info.Version,
			InstallLocation: info.Location,
			Target:          self,
		}, nil
	}

	if b.dir == "" {
		return nil, nil
	}

	info, err := os.Stat(b.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	return &domain.DetectedApplication{
		Name:            b.displayName,
		InstallLocation: b.dir,
		Target:          self,
	}, nil
}

// begin is the last point an apply can be cancelled. Callers write
// immediately after it returns.
func (b *base) begin(ctx context.Context, progress domain.ProgressFunc) error {
	if ctx.Err() != nil {
		return domain.ErrCancelled
	}

	if runningCheck(ctx, b.processes) {
		log.Warn("client is running; the new list takes effect after a restart", logging.KeyApp, b.displayName)
	}

	report(progress, domain.ProgressEvent{
		Percent: 0,
		Caption: fmt.Sprintf("Updating %s", b.displayName),
		State:   domain.StateDecompressing,
	})

	if ctx.Err() != nil {
		return domain.ErrCancelled
	}
	return nil
}

func (b *base) finish(progress domain.ProgressFunc) {
	report(progress, domain.ProgressEvent{
		Percent: 100,
		Caption: fmt.Sprintf("Updated %s", b.displayName),
		State:   domain.StateDecompressing,
	})
	log.Info("filter list applied", logging.KeyApp, b.displayName, "path", b.path())
}

// FileTarget writes ipfilter.dat into a client's data directory.
type FileTarget struct {
	base
	conflicts domain.ConflictHandler
}

// NewUTorrent returns the µTorrent target. An empty dir selects the
// client's default location.
func NewUTorrent(dir string, conflicts domain.ConflictHandler) *FileTarget {
	return &FileTarget{
		base: base{
			name:        UTorrent,
			displayName: "µTorrent",
			processes:   []string{"uTorrent.exe", "uTorrent"},
			dir:         orDefault(dir, UTorrent),
			file:        "ipfilter.dat",
		},
		conflicts: conflicts,
	}
}

func NewBitTorrent(dir string, conflicts domain.ConflictHandler) *FileTarget {
	return &FileTarget{
		base: base{
			name:        BitTorrent,
			displayName: "BitTorrent",
			processes:   []string{"BitTorrent.exe", "BitTorrent"},
			dir:         orDefault(dir, BitTorrent),
			file:        "ipfilter.dat",
		},
		conflicts: conflicts,
	}
}

func NewTransmission(dir string) *FileTarget {
	return &FileTarget{
		base: base{
			name:        Transmission,
			displayName: "Transmission",
			processes:   []string{"transmission-qt.exe", "transmission-gtk", "transmission-qt", "transmission-daemon", "Transmission"},
			dir:         orDefault(dir, Transmission),
			file:        filepath.Join("blocklists", "ipfilter.dat"),
		},
	}
}

func (t *FileTarget) Name() string { return t.name }

func (t *FileTarget) Path() string { return t.path() }

func (t *FileTarget) Detect(_ context.Context) (*domain.DetectedApplication, error) {
	return t.detect(t)
}

func (t *FileTarget) Apply(ctx context.Context, result *domain.DownloadResult, progress domain.ProgressFunc) error {
	if err := t.begin(ctx, progress); err != nil {
		return err
	}

	if err := t.write(result.Payload); err != nil {
		return &domain.ApplicationError{App: t.displayName, Err: err}
	}

	t.finish(progress)
	return nil
}

// write replaces the filter file, asking the conflict handler what to do
// whenever the write fails.
func (t *FileTarget) write(data []byte) error {
	path := t.path()
	for {
		err := writeAtomic(path, data)
		if err == nil {
			return nil
		}
		if t.conflicts == nil {
			return err
		}

		switch t.conflicts.Resolve(t.displayName, path, err) {
		case domain.ConflictRetry:
			log.Info("retrying write", logging.KeyApp, t.displayName, "path", path, logging.KeyError, err)
		default:
			return errors.Join(domain.ErrSkipped, err)
		}
	}
}

func orDefault(dir, app string) string {
	if dir != "" {
		return dir
	}
	return defaultDir(app)
}

func report(progress domain.ProgressFunc, ev domain.ProgressEvent) {
	if progress != nil {
		progress(ev)
	}
}
