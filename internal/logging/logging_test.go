package logging

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("fetcher")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("contacting", KeyURL, "http://example.com/ipfilter.dat.gz")

	out := buf.String()
	if !strings.Contains(out, "msg=contacting") {
		t.Fatalf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=fetcher") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "url=http://example.com/ipfilter.dat.gz") {
		t.Fatalf("expected url field, got: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	logger := L("cache")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)

	L("apps").Debug("probe", KeyApp, "qbittorrent")

	out := buf.String()
	if !strings.Contains(out, `"app":"qbittorrent"`) || !strings.Contains(out, `"component":"apps"`) {
		t.Fatalf("unexpected json output: %s", out)
	}
}

func TestWithAttrsKeepsSwitching(t *testing.T) {
	logger := L("manager").With("run", 7)

	var buf bytes.Buffer
	Init("text", "info", &buf)
	logger.Info("done")

	if !strings.Contains(buf.String(), "run=7") {
		t.Fatalf("expected attrs to survive handler switch: %s", buf.String())
	}
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ipfilter.log")

	w, err := OpenFile(path, 0, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":    "DEBUG",
		" INFO ":   "INFO",
		"error":    "ERROR",
		"":         "WARN",
		"nonsense": "WARN",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
