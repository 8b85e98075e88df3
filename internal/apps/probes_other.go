//go:build !windows

package apps

// probeInstall has no package database to consult outside Windows;
// detection falls back to the client's data directory.
func probeInstall(string) (*installInfo, bool) {
	return nil, false
}
