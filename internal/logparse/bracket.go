package logparse

import (
	"strings"

	"github.com/tinytelemetry/errtop/internal/model"
)

// BracketClassifier understands lines shaped like "[ERROR] message".
//
// Only the INFO, WARN, ERROR and DEBUG tags are recognized. Any other leading
// token classifies as UNKNOWN; the message is then whatever follows the first
// delimiter (']', ':' or " - "), or the whole line when there is none.
type BracketClassifier struct{}

func (BracketClassifier) Name() string { return FormatBracket }

func (BracketClassifier) Classify(line string) model.LogEntry {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return model.LogEntry{}
	}

	if trimmed[0] == '[' {
		if end := strings.IndexByte(trimmed, ']'); end > 0 {
			rest := trimSeparator(trimmed[end+1:])
			if sev, ok := bracketTag(trimmed[1:end]); ok {
				return model.LogEntry{Severity: sev, Message: rest}
			}
			if rest == "" {
				rest = trimmed
			}
			return model.LogEntry{Severity: model.SeverityUnknown, Message: rest}
		}
	}

	return model.LogEntry{Severity: model.SeverityUnknown, Message: afterDelimiter(trimmed)}
}

func bracketTag(tag string) (model.Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "INFO":
		return model.SeverityInfo, true
	case "WARN":
		return model.SeverityWarn, true
	case "ERROR":
		return model.SeverityError, true
	case "DEBUG":
		return model.SeverityDebug, true
	}
	return model.SeverityUnknown, false
}

// trimSeparator strips the separator between a tag and its message:
// whitespace, optionally one ':' or '-', then whitespace again.
func trimSeparator(s string) string {
	s = strings.TrimLeft(s, " \t")
	if s != "" && (s[0] == ':' || s[0] == '-') {
		s = s[1:]
	}
	return strings.TrimSpace(s)
}

func afterDelimiter(line string) string {
	cut := -1
	width := 0
	if i := strings.IndexByte(line, ':'); i >= 0 {
		cut, width = i, 1
	}
	if i := strings.Index(line, " - "); i >= 0 && (cut < 0 || i < cut) {
		cut, width = i, 3
	}
	if cut < 0 {
		return line
	}
	if rest := strings.TrimSpace(line[cut+width:]); rest != "" {
		return rest
	}
	return line
}
