package logparse

import (
	"fmt"
	"strings"

	"github.com/tinytelemetry/errtop/internal/model"
)

// Wire format names accepted by New.
const (
	FormatBracket  = "bracket"
	FormatKeyValue = "keyvalue"
	FormatJSON     = "json"
)

// Classifier turns one raw line into a LogEntry.
//
// Implementations must be safe for concurrent use and must never fail:
// malformed input yields a best-effort entry, typically UNKNOWN severity
// with the line text as message. Blank input yields the zero LogEntry.
type Classifier interface {
	Name() string
	Classify(line string) model.LogEntry
}

// Formats lists the supported wire formats.
func Formats() []string {
	return []string{FormatBracket, FormatKeyValue, FormatJSON}
}

// New returns the classifier for the named wire format.
// An empty name selects the bracket format.
func New(format string) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatBracket:
		return BracketClassifier{}, nil
	case FormatKeyValue, "kv", "logfmt":
		return KeyValueClassifier{}, nil
	case FormatJSON:
		return NewJSONClassifier(), nil
	default:
		return nil, fmt.Errorf("logparse: unknown format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
}
