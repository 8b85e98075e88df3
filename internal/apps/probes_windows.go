//go:build windows

package apps

import (
	"strings"

	"golang.org/x/sys/windows/registry"
)

var uninstallPaths = []struct {
	root registry.Key
	path string
}{
	{registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
	{registry.LOCAL_MACHINE, `SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`},
	{registry.CURRENT_USER, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
}

// probeInstall looks for an uninstall entry whose DisplayName starts with
// displayName.
func probeInstall(displayName string) (*installInfo, bool) {
	prefix := strings.ToLower(displayName)

	for _, p := range uninstallPaths {
		if info, ok := searchUninstallKey(p.root, p.path, prefix); ok {
			return info, true
		}
	}
	return nil, false
}

func searchUninstallKey(root registry.Key, path, prefix string) (*installInfo, bool) {
	key, err := registry.OpenKey(root, path, registry.READ)
	if err != nil {
		return nil, false
	}
	defer key.Close()

	subkeys, err := key.ReadSubKeyNames(-1)
	if err != nil {
		return nil, false
	}

	for _, name := range subkeys {
		sub, err := registry.OpenKey(key, name, registry.READ)
		if err != nil {
			continue
		}

		display := readString(sub, "DisplayName")
		if !strings.HasPrefix(strings.ToLower(display), prefix) {
			sub.Close()
			continue
		}

		info := &installInfo{
			Version:  readString(sub, "DisplayVersion"),
			Location: readString(sub, "InstallLocation"),
		}
		sub.Close()
		return info, true
	}

	return nil, false
}

func readString(key registry.Key, name string) string {
	val, _, err := key.GetStringValue(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(val)
}
