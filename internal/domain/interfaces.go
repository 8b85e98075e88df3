package domain

import (
	"context"
)

type MirrorProvider interface {
	Name() string
	Description() string
	// Mirrors lists the provider's download locations. Lookup failures
	// yield an empty slice.
	Mirrors(ctx context.Context) []Mirror
	// URL resolves a mirror from this provider without doing any I/O.
	URL(m Mirror) string
}

type Fetcher interface {
	Download(ctx context.Context, url string, progress ProgressFunc) *DownloadResult
}

type Extractor interface {
	Detect(contentType string, prefix []byte) CompressionFormat
	Decompress(ctx context.Context, format CompressionFormat, data []byte, progress ProgressFunc) ([]byte, error)
}

type Cache interface {
	Get() *DownloadResult
	Set(result *DownloadResult)
	Path() string
	Clear() error
}

// Target is the update strategy for one supported client application.
type Target interface {
	Name() string
	Detect(ctx context.Context) (*DetectedApplication, error)
	Apply(ctx context.Context, result *DownloadResult, progress ProgressFunc) error
}

type Enumerator interface {
	DetectInstalled(ctx context.Context) []DetectedApplication
}

type History interface {
	Record(run *RunRecord) error
	List(limit int) ([]RunRecord, error)
	Close() error
}

type ConflictDecision int

const (
	ConflictSkip ConflictDecision = iota
	ConflictRetry
)

// ConflictHandler decides what to do when a target's filter file cannot be written.
type ConflictHandler interface {
	Resolve(app, path string, err error) ConflictDecision
}
