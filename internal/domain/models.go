package domain

import (
	"bytes"
	"io"
	"time"
)

type Mirror struct {
	ID          string
	Name        string
	Description string
}

type CompressionFormat int

const (
	FormatNone CompressionFormat = iota
	FormatGZip
	FormatZip
)

// DownloadResult is the outcome of a single download. Payload holds the
// decompressed list and is never mutated after the result is returned.
type DownloadResult struct {
	URL       string
	Payload   []byte
	Length    int64
	Format    CompressionFormat
	Timestamp *time.Time
	Err       error
}

// Reader returns a fresh reader positioned at the start of the payload.
func (r *DownloadResult) Reader() io.Reader {
	return bytes.NewReader(r.Payload)
}

func (r *DownloadResult) OK() bool {
	return r != nil && r.Err == nil
}

type RunState int

const (
	StateReady RunState = iota
	StateDownloading
	StateDecompressing
	StateCancelling
	StateCancelled
	StateDone
)

// ChunkSize is the unit of network reads and decompression writes.
const ChunkSize = 64 << 10

// Indeterminate marks a ProgressEvent whose percentage is unknown.
const Indeterminate = -1

type ProgressEvent struct {
	Percent int
	Caption string
	State   RunState
	Current int64
	Total   int64
}

// ProgressFunc receives progress updates. Implementations must not block.
type ProgressFunc func(ProgressEvent)

type DetectedApplication struct {
	Name            string
	Version         string
	InstallLocation string
	Target          Target
}

type TargetStatus string

const (
	TargetApplied TargetStatus = "applied"
	TargetFailed  TargetStatus = "failed"
	TargetSkipped TargetStatus = "skipped"
)

type TargetRecord struct {
	Name    string       `json:"name"`
	Version string       `json:"version"`
	Status  TargetStatus `json:"status"`
	Error   string       `json:"error,omitempty"`
}

type RunRecord struct {
	ID         int64          `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Provider   string         `json:"provider"`
	Mirror     string         `json:"mirror"`
	URL        string         `json:"url"`
	State      string         `json:"state"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
	Length     int64          `json:"length"`
	FromCache  bool           `json:"from_cache"`
	Error      string         `json:"error,omitempty"`
	Targets    []TargetRecord `json:"targets"`
}
