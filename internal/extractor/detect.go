package extractor

import (
	"encoding/binary"
	"mime"
	"strings"

	"github.com/teamcutter/ipfilter/internal/domain"
)

// zipLocalHeader is the little-endian signature of a zip local file header.
const zipLocalHeader = 0x04034b50

var contentTypes = map[string]domain.CompressionFormat{
	"application/gzip":            domain.FormatGZip,
	"application/x-gzip":          domain.FormatGZip,
	"application/x-gunzip":        domain.FormatGZip,
	"application/gzipped":         domain.FormatGZip,
	"application/gzip-compressed": domain.FormatGZip,
	"gzip/document":               domain.FormatGZip,

	"application/zip":              domain.FormatZip,
	"application/x-zip":            domain.FormatZip,
	"application/x-zip-compressed": domain.FormatZip,
	"multipart/x-zip":              domain.FormatZip,
}

func formatFromContentType(contentType string) (domain.CompressionFormat, bool) {
	if contentType == "" {
		return domain.FormatNone, false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}

	format, ok := contentTypes[strings.ToLower(strings.TrimSpace(mediaType))]
	return format, ok
}

func sniff(prefix []byte) domain.CompressionFormat {
	switch {
	case len(prefix) >= 2 && prefix[0] == 0x1f && prefix[1] == 0x8b:
		return domain.FormatGZip
	case len(prefix) >= 4 && binary.LittleEndian.Uint32(prefix) == zipLocalHeader:
		return domain.FormatZip
	default:
		return domain.FormatNone
	}
}
