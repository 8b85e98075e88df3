package extractor

import (
	"bytes"
	"context"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/teamcutter/ipfilter/internal/domain"
)

type GZIPDecoder struct{}

func NewGZIP() *GZIPDecoder {
	return &GZIPDecoder{}
}

// Decode inflates a gzip stream. The inflated size is unknown up front, so
// progress stays indeterminate until the stream ends.
func (gd *GZIPDecoder) Decode(ctx context.Context, data []byte, progress domain.ProgressFunc) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.FormatError{Format: domain.FormatGZip, Err: err}
	}
	defer zr.Close()

	report(progress, domain.ProgressEvent{
		Percent: domain.Indeterminate,
		Caption: "Decompressing...",
		State:   domain.StateDecompressing,
	})

	out := bytes.NewBuffer(make([]byte, 0, len(data)*4))
	buf := make([]byte, domain.ChunkSize)

	for {
		if ctx.Err() != nil {
			return nil, domain.ErrCancelled
		}

		n, err := zr.Read(buf)
		out.Write(buf[:n])

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domain.FormatError{Format: domain.FormatGZip, Err: err}
		}
	}

	report(progress, domain.ProgressEvent{
		Percent: 100,
		Caption: "Decompressed",
		State:   domain.StateDecompressing,
		Current: int64(out.Len()),
		Total:   int64(out.Len()),
	})
	return out.Bytes(), nil
}
