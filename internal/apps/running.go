package apps

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// runningCheck is swapped out in tests.
var runningCheck = processRunning

// processRunning reports whether any process matches one of names,
// compared case-insensitively. Lookup errors count as not running.
func processRunning(ctx context.Context, names []string) bool {
	if len(names) == 0 {
		return false
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		log.Debug("couldn't list processes", "error", err)
		return false
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}

	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		if want[strings.ToLower(name)] {
			return true
		}
	}
	return false
}
