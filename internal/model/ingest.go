package model

// IngestEnvelope carries one raw log line with source metadata.
// It is the transport contract between push-style receivers and ingestion.
type IngestEnvelope struct {
	Source string
	Line   string
	// Format names the wire format of Line when the producer rendered it
	// itself. Empty means the configured format.
	Format string
}
