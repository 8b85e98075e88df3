package state

import (
	"fmt"
	"path/filepath"

	"github.com/juju/utils/v4"
	"github.com/teamcutter/ipfilter/internal/domain"
	"github.com/teamcutter/ipfilter/internal/logging"
)

var log = logging.L("state")

// Open returns the run history for backend ("sqlite" or "json") at path.
func Open(backend, path string) (domain.History, error) {
	switch backend {
	case "", "sqlite":
		h, err := NewSQLite(path, filepath.Join(filepath.Dir(path), "history.json"))
		if err != nil {
			return nil, err
		}
		return h, nil
	case "json":
		return NewJSON(path), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}

func writeFile(path string, data []byte) error {
	return utils.AtomicWriteFile(path, data, 0644)
}
