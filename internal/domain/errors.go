package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCancelled       = errors.New("update was cancelled")
	ErrEmptyArchive    = errors.New("empty archive")
	ErrMultipleEntries = errors.New("unsupported multiple entries")
	ErrSkipped         = errors.New("skipped")
)

type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type FormatError struct {
	Format CompressionFormat
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

type CacheError struct {
	Op   string
	Path string
	Err  error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

type ApplicationError struct {
	App string
	Err error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: %v", e.App, e.Err)
}

func (e *ApplicationError) Unwrap() error { return e.Err }

// IsCancelled reports whether err is the distinguished cancellation signal.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
