package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teamcutter/ipfilter/internal/domain"
)

func sampleRun(provider string, started time.Time) *domain.RunRecord {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.RunRecord{
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Provider:   provider,
		Mirror:     "github",
		URL:        "https://example.com/ipfilter.dat.gz",
		State:      "done",
		Timestamp:  &ts,
		Length:     1234,
		Targets: []domain.TargetRecord{
			{Name: "qBittorrent", Version: "4.6.0", Status: domain.TargetApplied},
			{Name: "µTorrent", Status: domain.TargetFailed, Error: "access denied"},
		},
	}
}

func backends(t *testing.T) map[string]domain.History {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := NewSQLite(filepath.Join(dir, "history.db"), "")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]domain.History{
		"sqlite": sqlite,
		"json":   NewJSON(filepath.Join(dir, "history.json")),
	}
}

func TestRecordAndList(t *testing.T) {
	for name, h := range backends(t) {
		t.Run(name, func(t *testing.T) {
			start := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

			first := sampleRun("davidmoore", start)
			if err := h.Record(first); err != nil {
				t.Fatal(err)
			}
			second := sampleRun("blocklist", start.Add(time.Hour))
			second.State = "cancelled"
			second.Error = "update was cancelled"
			second.Timestamp = nil
			second.Targets = nil
			if err := h.Record(second); err != nil {
				t.Fatal(err)
			}

			if first.ID == 0 || second.ID <= first.ID {
				t.Fatalf("ids = %d, %d", first.ID, second.ID)
			}

			runs, err := h.List(0)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != 2 {
				t.Fatalf("got %d runs", len(runs))
			}
			if runs[0].Provider != "blocklist" || runs[1].Provider != "davidmoore" {
				t.Fatalf("order = %s, %s", runs[0].Provider, runs[1].Provider)
			}

			got := runs[1]
			if !got.StartedAt.Equal(first.StartedAt) || !got.FinishedAt.Equal(first.FinishedAt) {
				t.Errorf("times = %v / %v", got.StartedAt, got.FinishedAt)
			}
			if got.Timestamp == nil || !got.Timestamp.Equal(*first.Timestamp) {
				t.Errorf("timestamp = %v", got.Timestamp)
			}
			if got.Length != 1234 || got.State != "done" || got.Mirror != "github" {
				t.Errorf("run = %+v", got)
			}
			if len(got.Targets) != 2 || got.Targets[0].Name != "qBittorrent" || got.Targets[1].Status != domain.TargetFailed {
				t.Errorf("targets = %+v", got.Targets)
			}
			if got.Targets[1].Error != "access denied" {
				t.Errorf("target error = %q", got.Targets[1].Error)
			}

			if runs[0].Timestamp != nil {
				t.Errorf("cancelled run should have no timestamp, got %v", runs[0].Timestamp)
			}
			if runs[0].Error != "update was cancelled" {
				t.Errorf("error = %q", runs[0].Error)
			}

			limited, err := h.List(1)
			if err != nil {
				t.Fatal(err)
			}
			if len(limited) != 1 || limited[0].ID != second.ID {
				t.Fatalf("limited = %+v", limited)
			}
		})
	}
}

func TestListEmpty(t *testing.T) {
	for name, h := range backends(t) {
		t.Run(name, func(t *testing.T) {
			runs, err := h.List(10)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != 0 {
				t.Fatalf("expected no runs, got %d", len(runs))
			}
		})
	}
}

func TestJSONHistoryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")

	if err := NewJSON(path).Record(sampleRun("davidmoore", time.Now())); err != nil {
		t.Fatal(err)
	}

	runs, err := NewJSON(path).List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != 1 {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestSQLiteImportsJSONHistory(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "history.json")

	old := NewJSON(jsonPath)
	for _, p := range []string{"davidmoore", "emule-security"} {
		if err := old.Record(sampleRun(p, time.Now())); err != nil {
			t.Fatal(err)
		}
	}

	h, err := NewSQLite(filepath.Join(dir, "history.db"), jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	runs, err := h.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Provider != "emule-security" {
		t.Fatalf("runs = %+v", runs)
	}
	if len(runs[0].Targets) != 2 {
		t.Errorf("targets not imported: %+v", runs[0].Targets)
	}

	if _, err := os.Stat(jsonPath); !os.IsNotExist(err) {
		t.Error("imported JSON history should be moved aside")
	}
	if _, err := os.Stat(jsonPath + ".bak"); err != nil {
		t.Errorf("backup missing: %v", err)
	}
}

func TestSQLiteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	h, err := NewSQLite(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Record(sampleRun("davidmoore", time.Now())); err != nil {
		t.Fatal(err)
	}
	h.Close()

	h, err = NewSQLite(path, "")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	runs, err := h.List(0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs = %v, %v", runs, err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	h, err := Open("json", filepath.Join(dir, "runs.json"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := h.(*JSONHistory); !ok {
		t.Fatalf("json backend = %T", h)
	}

	h, err = Open("sqlite", filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if _, ok := h.(*SQLiteHistory); !ok {
		t.Fatalf("sqlite backend = %T", h)
	}

	if _, err := Open("bolt", filepath.Join(dir, "x")); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestJSONDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := NewJSON(path).Record(sampleRun("davidmoore", time.Now())); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string][]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw["runs"]) != 1 || raw["runs"][0]["provider"] != "davidmoore" {
		t.Fatalf("document = %s", data)
	}
}
