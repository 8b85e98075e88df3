package apps

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	UTorrent     = "utorrent"
	BitTorrent   = "bittorrent"
	QBittorrent  = "qbittorrent"
	Transmission = "transmission"
)

// defaultDir is where a client keeps its settings and filter list.
func defaultDir(app string) string {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	switch app {
	case UTorrent:
		return filepath.Join(cfg, "uTorrent")
	case BitTorrent:
		return filepath.Join(cfg, "BitTorrent")
	case QBittorrent:
		return filepath.Join(cfg, "qBittorrent")
	case Transmission:
		switch runtime.GOOS {
		case "darwin":
			return filepath.Join(cfg, "Transmission")
		case "windows":
			if local := os.Getenv("LOCALAPPDATA"); local != "" {
				return filepath.Join(local, "transmission")
			}
		}
		return filepath.Join(cfg, "transmission")
	}
	return ""
}

func qbittorrentSettingsFile() string {
	if runtime.GOOS == "windows" {
		return "qBittorrent.ini"
	}
	return "qBittorrent.conf"
}
