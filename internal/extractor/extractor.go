package extractor

import (
	"context"
	"fmt"

	"github.com/teamcutter/ipfilter/internal/domain"
)

type Extractor struct {
	gzip *GZIPDecoder
	zip  *ZIPDecoder
}

func New() *Extractor {
	return &Extractor{
		gzip: NewGZIP(),
		zip:  NewZIP(),
	}
}

func (e *Extractor) Detect(contentType string, prefix []byte) domain.CompressionFormat {
	if format, ok := formatFromContentType(contentType); ok {
		return format
	}
	return sniff(prefix)
}

// Decompress returns the decoded payload. FormatNone passes data through
// unchanged.
func (e *Extractor) Decompress(ctx context.Context, format domain.CompressionFormat, data []byte, progress domain.ProgressFunc) ([]byte, error) {
	switch format {
	case domain.FormatGZip:
		return e.gzip.Decode(ctx, data, progress)
	case domain.FormatZip:
		return e.zip.Decode(ctx, data, progress)
	case domain.FormatNone:
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported compression format: %d", format)
	}
}

func report(progress domain.ProgressFunc, ev domain.ProgressEvent) {
	if progress != nil {
		progress(ev)
	}
}
