package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/teamcutter/ipfilter/internal/domain"
	"github.com/teamcutter/ipfilter/internal/logging"
	"github.com/teamcutter/ipfilter/internal/version"
)

var log = logging.L("fetcher")

type HTTPFetcher struct {
	client    *http.Client
	extractor domain.Extractor
	retry     RetryConfig
}

func New(extractor domain.Extractor, timeout time.Duration, retry RetryConfig) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		extractor: extractor,
		retry:     retry,
	}
}

// Download fetches rawURL, decompresses it and returns the result. Errors
// are carried in the result; a cancelled ctx yields domain.ErrCancelled.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string, progress domain.ProgressFunc) (result *domain.DownloadResult) {
	result = &domain.DownloadResult{URL: rawURL}

	defer func() {
		if r := recover(); r != nil {
			result.Payload = nil
			result.Err = fmt.Errorf("download panicked: %v", r)
		}
	}()

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		result.Err = &domain.NetworkError{URL: rawURL, Err: fmt.Errorf("invalid url: %q", rawURL)}
		return result
	}

	report(progress, domain.ProgressEvent{
		Percent: 0,
		Caption: fmt.Sprintf("Contacting %s", u.Host),
		State:   domain.StateDownloading,
	})
	log.Info("contacting mirror", logging.KeyURL, rawURL)

	resp, err := f.get(ctx, rawURL)
	if err != nil {
		result.Err = f.classify(ctx, rawURL, err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Err = &domain.NetworkError{URL: rawURL, StatusCode: resp.StatusCode}
		return result
	}

	data, err := f.read(ctx, resp.Body, resp.ContentLength, progress)
	if err != nil {
		result.Err = f.classify(ctx, rawURL, err)
		return result
	}

	prefix := data[:min(len(data), 8)]
	result.Format = f.extractor.Detect(resp.Header.Get("Content-Type"), prefix)
	log.Debug("detected format", "format", result.Format, "contentType", resp.Header.Get("Content-Type"), "bytes", len(data))

	payload, err := f.extractor.Decompress(ctx, result.Format, data, progress)
	if err != nil {
		result.Err = err
		return result
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if ts, err := http.ParseTime(lm); err == nil {
			ts = ts.UTC()
			result.Timestamp = &ts
		} else {
			log.Debug("unparseable Last-Modified", "value", lm)
		}
	}

	result.Payload = payload
	result.Length = int64(len(payload))
	return result
}

// read streams body in ChunkSize pieces, reporting progress and checking
// for cancellation after every chunk.
func (f *HTTPFetcher) read(ctx context.Context, body io.Reader, length int64, progress domain.ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	if length > 0 && length < 1<<30 {
		buf.Grow(int(length))
	}

	chunk := make([]byte, domain.ChunkSize)
	var read int64

	for {
		n, err := io.ReadFull(body, chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			read += int64(n)

			report(progress, domain.ProgressEvent{
				Percent: percent(read, length),
				Caption: caption(read, length),
				State:   domain.StateDownloading,
				Current: read,
				Total:   max(length, 0),
			})
		}

		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, domain.ErrCancelled
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (f *HTTPFetcher) classify(ctx context.Context, rawURL string, err error) error {
	if errors.Is(err, domain.ErrCancelled) || errors.Is(ctx.Err(), context.Canceled) {
		return domain.ErrCancelled
	}
	var ne *domain.NetworkError
	if errors.As(err, &ne) {
		return ne
	}
	return &domain.NetworkError{URL: rawURL, Err: err}
}

func percent(read, length int64) int {
	if length <= 0 {
		return domain.Indeterminate
	}
	p := int(read * 100 / length)
	if p > 100 {
		p = 100
	}
	return p
}

func caption(read, length int64) string {
	if length <= 0 {
		return fmt.Sprintf("Downloaded %s", humanize.Bytes(uint64(read)))
	}
	return fmt.Sprintf("Downloaded %s of %s", humanize.Bytes(uint64(read)), humanize.Bytes(uint64(length)))
}

func report(progress domain.ProgressFunc, ev domain.ProgressEvent) {
	if progress != nil {
		progress(ev)
	}
}

func userAgent() string {
	return "ipfilter/" + version.Version
}
