package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/teamcutter/ipfilter/internal/domain"
)

type document struct {
	Runs []domain.RunRecord `json:"runs"`
}

// JSONHistory keeps run history in a single JSON document, oldest first.
type JSONHistory struct {
	mu   sync.RWMutex
	path string
	doc  *document
}

func NewJSON(path string) *JSONHistory {
	return &JSONHistory{
		path: path,
	}
}

func (m *JSONHistory) init() error {
	if m.doc != nil {
		return nil
	}
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		m.doc = &document{}
		return nil
	}
	if err != nil {
		return err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	m.doc = &doc
	return nil
}

func (m *JSONHistory) flush() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(m.path, data)
}

func (m *JSONHistory) Record(run *domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.init(); err != nil {
		return err
	}

	var last int64
	if n := len(m.doc.Runs); n > 0 {
		last = m.doc.Runs[n-1].ID
	}
	run.ID = last + 1

	m.doc.Runs = append(m.doc.Runs, *run)
	return m.flush()
}

// List returns up to limit runs, newest first. limit <= 0 means all.
func (m *JSONHistory) List(limit int) ([]domain.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.init(); err != nil {
		return nil, err
	}

	n := len(m.doc.Runs)
	if limit <= 0 || limit > n {
		limit = n
	}

	runs := make([]domain.RunRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		runs = append(runs, m.doc.Runs[i])
	}
	return runs, nil
}

func (m *JSONHistory) Close() error {
	return nil
}
