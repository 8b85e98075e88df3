package mirrors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/teamcutter/ipfilter/internal/domain"
	"github.com/teamcutter/ipfilter/internal/logging"
)

var log = logging.L("mirrors")

const (
	sourceForgeCatalog = "https://sourceforge.net/settings/mirror_choices?projectname=ipfilter&filename=ipfilter.dat.gz"
	sourceForgeFile    = "sourceforge-mirrors.html"
)

var mirrorItem = regexp.MustCompile(`<li id="([a-z0-9-]+)">`)

// fallbackMirrors is used whenever the catalog can't be fetched or parsed.
var fallbackMirrors = []string{
	"netix", "phoenixnap", "deac-riga", "freefr", "kumisystems", "versaweb", "master",
}

// SourceForgeProvider scrapes the SourceForge mirror catalog. The raw page
// is cached under cacheDir for ttl.
type SourceForgeProvider struct {
	sync.RWMutex
	client     *http.Client
	cacheDir   string
	ttl        time.Duration
	catalogURL string

	loaded  bool
	mirrors []domain.Mirror
}

func NewSourceForge(client *http.Client, cacheDir string, ttl time.Duration) *SourceForgeProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SourceForgeProvider{
		client:     client,
		cacheDir:   cacheDir,
		ttl:        ttl,
		catalogURL: sourceForgeCatalog,
	}
}

func (s *SourceForgeProvider) Name() string        { return "sourceforge" }
func (s *SourceForgeProvider) Description() string { return "SourceForge file mirrors" }

func (s *SourceForgeProvider) URL(m domain.Mirror) string {
	return fmt.Sprintf("https://%s.dl.sourceforge.net/project/ipfilter/ipfilter.dat.gz", m.ID)
}

func (s *SourceForgeProvider) Mirrors(ctx context.Context) []domain.Mirror {
	s.Lock()
	defer s.Unlock()

	if !s.loaded {
		s.mirrors = s.load(ctx)
		s.loaded = true
	}

	out := make([]domain.Mirror, len(s.mirrors))
	copy(out, s.mirrors)
	return out
}

func (s *SourceForgeProvider) load(ctx context.Context) []domain.Mirror {
	if cached, ok := s.getFromCache(); ok {
		if mirrors := parseCatalog(cached); len(mirrors) > 0 {
			return mirrors
		}
	}

	page, err := s.fetchCatalog(ctx)
	if err != nil {
		log.Warn("couldn't load mirror catalog, using built-in list", logging.KeyError, err)
		return toMirrors(fallbackMirrors)
	}

	mirrors := parseCatalog(page)
	if len(mirrors) == 0 {
		log.Warn("mirror catalog had no mirrors, using built-in list")
		return toMirrors(fallbackMirrors)
	}

	if err := s.storeToCache(page); err != nil {
		log.Debug("couldn't cache mirror catalog", logging.KeyError, err)
	}
	return mirrors
}

func (s *SourceForgeProvider) fetchCatalog(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.catalogURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "ipfilter")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func parseCatalog(page []byte) []domain.Mirror {
	var ids []string
	seen := make(map[string]bool)
	for _, m := range mirrorItem.FindAllSubmatch(page, -1) {
		id := string(m[1])
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return toMirrors(ids)
}

func toMirrors(ids []string) []domain.Mirror {
	mirrors := make([]domain.Mirror, 0, len(ids))
	for _, id := range ids {
		mirrors = append(mirrors, domain.Mirror{ID: id, Name: id})
	}
	return mirrors
}

func (s *SourceForgeProvider) getFromCache() ([]byte, bool) {
	if s.cacheDir == "" {
		return nil, false
	}

	path := filepath.Join(s.cacheDir, sourceForgeFile)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}

	if time.Since(info.ModTime()) > s.ttl {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	return data, true
}

func (s *SourceForgeProvider) storeToCache(data []byte) error {
	if s.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.cacheDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.cacheDir, sourceForgeFile), data, 0644)
}
