package domain

func (s RunState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateDownloading:
		return "downloading"
	case StateDecompressing:
		return "decompressing"
	case StateCancelling:
		return "cancelling"
	case StateCancelled:
		return "cancelled"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Busy reports whether a run is in flight and a start request should cancel it.
func (s RunState) Busy() bool {
	return s == StateDownloading || s == StateDecompressing
}

func (f CompressionFormat) String() string {
	switch f {
	case FormatGZip:
		return "gzip"
	case FormatZip:
		return "zip"
	default:
		return "none"
	}
}
