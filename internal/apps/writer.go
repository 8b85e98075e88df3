package apps

import (
	"os"
	"path/filepath"

	"github.com/juju/utils/v4"
)

// writeAtomic replaces path with data via a temporary file and rename, so
// readers only ever see the old or the new contents.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return utils.AtomicWriteFile(path, data, 0644)
}
