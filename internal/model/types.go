package model

import "strings"

// Severity is the classification tag of a log line.
type Severity uint8

const (
	SeverityUnknown Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
)

var severityNames = [...]string{
	SeverityUnknown: "UNKNOWN",
	SeverityDebug:   "DEBUG",
	SeverityInfo:    "INFO",
	SeverityWarn:    "WARN",
	SeverityError:   "ERROR",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return severityNames[SeverityUnknown]
}

// ParseSeverity maps an exact severity name (case-insensitive) back to its value.
// It does not apply aliases; see logparse.NormalizeSeverity for that.
func ParseSeverity(name string) (Severity, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range severityNames {
		if n == upper {
			return Severity(i), true
		}
	}
	return SeverityUnknown, false
}

// LogEntry is the classified form of one raw line.
// Only the message of ERROR entries outlives classification.
type LogEntry struct {
	Severity Severity
	Message  string
}

// RankedMessage is one row of a top-K ranking.
type RankedMessage struct {
	Message string `json:"message" yaml:"message"`
	Count   uint64 `json:"count" yaml:"count"`
}

// Snapshot is a point-in-time top-K view, most frequent first.
type Snapshot []RankedMessage

// RankerStats describes the frequency table.
type RankerStats struct {
	Distinct    int    `json:"distinct"`
	Recorded    uint64 `json:"recorded"`
	Evictions   uint64 `json:"evictions"`
	Strategy    string `json:"strategy"`
	MaxKeys     int    `json:"max_keys"`
	Approximate bool   `json:"approximate"`
}

// IngestStats are the running tallies of the ingestion pipeline.
type IngestStats struct {
	Lines    uint64 `json:"lines"`
	Recorded uint64 `json:"recorded"`
	Skipped  uint64 `json:"skipped"`
	Blank    uint64 `json:"blank"`
	Batches  uint64 `json:"batches"`
	Running  bool   `json:"running"`
	LastErr  string `json:"last_error,omitempty"`
}

// Stats combines ranker and ingest statistics.
type Stats struct {
	Ranker RankerStats `json:"ranker"`
	Ingest IngestStats `json:"ingest"`
}
