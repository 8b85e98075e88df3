package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
	"github.com/teamcutter/ipfilter/internal/domain"
)

type ZIPDecoder struct{}

func NewZIP() *ZIPDecoder {
	return &ZIPDecoder{}
}

// Decode extracts the single entry of a zip archive.
func (zd *ZIPDecoder) Decode(ctx context.Context, data []byte, progress domain.ProgressFunc) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &domain.FormatError{Format: domain.FormatZip, Err: err}
	}

	switch len(r.File) {
	case 0:
		return nil, &domain.FormatError{Format: domain.FormatZip, Err: domain.ErrEmptyArchive}
	case 1:
	default:
		return nil, &domain.FormatError{
			Format: domain.FormatZip,
			Err:    fmt.Errorf("%w: %d entries", domain.ErrMultipleEntries, len(r.File)),
		}
	}

	entry := r.File[0]
	total := int64(entry.UncompressedSize64)

	rc, err := entry.Open()
	if err != nil {
		return nil, &domain.FormatError{Format: domain.FormatZip, Err: err}
	}
	defer rc.Close()

	caption := fmt.Sprintf("Extracting %s...", entry.Name)
	report(progress, domain.ProgressEvent{
		Percent: 0,
		Caption: caption,
		State:   domain.StateDecompressing,
		Total:   total,
	})

	var out bytes.Buffer
	if total > 0 && total < 1<<30 {
		out.Grow(int(total))
	}
	buf := make([]byte, domain.ChunkSize)
	var written int64

	for {
		if ctx.Err() != nil {
			return nil, domain.ErrCancelled
		}

		n, err := rc.Read(buf)
		out.Write(buf[:n])
		written += int64(n)

		if n > 0 {
			report(progress, domain.ProgressEvent{
				Percent: percent(written, total),
				Caption: caption,
				State:   domain.StateDecompressing,
				Current: written,
				Total:   total,
			})
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domain.FormatError{Format: domain.FormatZip, Err: err}
		}
	}

	return out.Bytes(), nil
}

func percent(current, total int64) int {
	if total <= 0 {
		return domain.Indeterminate
	}
	p := int(current * 100 / total)
	if p > 100 {
		p = 100
	}
	return p
}
