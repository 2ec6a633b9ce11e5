package ir

// Version constants for the record format and writer.
const (
	// FormatVersion is the stored record format version.
	FormatVersion = "1"

	// WriterVersion is the deltasink writer version.
	WriterVersion = "0.1.0"
)
