package apps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/teamcutter/ipfilter/internal/domain"
	"gopkg.in/ini.v1"
)

const (
	qbSection       = "BitTorrent"
	qbFilterPathKey = `Session\IPFilter`
	qbFilterOnKey   = `Session\IPFilteringEnabled`
)

// QBittorrentTarget writes the list next to qBittorrent's settings file and
// points the settings at it.
type QBittorrentTarget struct {
	base
	settings string
}

func NewQBittorrent(dir string) *QBittorrentTarget {
	b := base{
		name:        QBittorrent,
		displayName: "qBittorrent",
		processes:   []string{"qbittorrent.exe", "qbittorrent"},
		dir:         orDefault(dir, QBittorrent),
		file:        "ipfilter.dat",
	}
	return &QBittorrentTarget{
		base:     b,
		settings: filepath.Join(b.dir, qbittorrentSettingsFile()),
	}
}

func (q *QBittorrentTarget) Name() string { return q.name }

func (q *QBittorrentTarget) Path() string { return q.path() }

func (q *QBittorrentTarget) SettingsPath() string { return q.settings }

func (q *QBittorrentTarget) Detect(_ context.Context) (*domain.DetectedApplication, error) {
	return q.detect(q)
}

func (q *QBittorrentTarget) Apply(ctx context.Context, result *domain.DownloadResult, progress domain.ProgressFunc) error {
	if err := q.begin(ctx, progress); err != nil {
		return err
	}

	if err := writeAtomic(q.path(), result.Payload); err != nil {
		return &domain.ApplicationError{App: q.displayName, Err: err}
	}

	if err := q.enableFilter(); err != nil {
		return &domain.ApplicationError{
			App: q.displayName,
			Err: fmt.Errorf("filter list written to %s, but enabling it in %s failed: %w", q.path(), q.settings, err),
		}
	}

	q.finish(progress)
	return nil
}

func (q *QBittorrentTarget) enableFilter() error {
	cfg := ini.Empty()
	if _, err := os.Stat(q.settings); err == nil {
		cfg, err = ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, q.settings)
		if err != nil {
			return err
		}
	}

	sec := cfg.Section(qbSection)
	sec.Key(qbFilterPathKey).SetValue(filepath.ToSlash(q.path()))
	sec.Key(qbFilterOnKey).SetValue("true")

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return err
	}
	return writeAtomic(q.settings, buf.Bytes())
}
