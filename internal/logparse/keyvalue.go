package logparse

import (
	"strings"

	"github.com/tinytelemetry/errtop/internal/model"
)

var (
	kvSeverityKeys = []string{"level", "lvl", "severity", "log.level"}
	kvMessageKeys  = []string{"msg", "message", "error", "err"}
)

// KeyValueClassifier understands logfmt-style lines such as
//
//	ts=2024-01-01T00:00:00Z level=error msg="db connection failed" attempt=3
//
// A line without a severity key is UNKNOWN. A line without a message key uses
// the text that is not part of any key=value pair, or the whole line.
type KeyValueClassifier struct{}

func (KeyValueClassifier) Name() string { return FormatKeyValue }

func (KeyValueClassifier) Classify(line string) model.LogEntry {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return model.LogEntry{}
	}

	fields, loose := splitKeyValues(trimmed)

	entry := model.LogEntry{Severity: model.SeverityUnknown}
	for _, key := range kvSeverityKeys {
		if v, ok := fields[key]; ok {
			entry.Severity = NormalizeSeverity(v)
			break
		}
	}
	for _, key := range kvMessageKeys {
		if v, ok := fields[key]; ok && strings.TrimSpace(v) != "" {
			entry.Message = strings.TrimSpace(v)
			return entry
		}
	}
	if loose != "" {
		entry.Message = loose
	} else if entry.Severity == model.SeverityUnknown {
		entry.Message = trimmed
	}
	return entry
}

// splitKeyValues scans logfmt pairs. Keys are lower-cased; the first
// occurrence of a key wins. Tokens that are not pairs are joined into loose.
func splitKeyValues(line string) (map[string]string, string) {
	fields := make(map[string]string, 4)
	var loose []string

	i := 0
	for i < len(line) {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= len(line) {
			break
		}

		start := i
		for i < len(line) && line[i] != '=' && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		if i >= len(line) || line[i] != '=' || i == start {
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
			loose = append(loose, line[start:i])
			continue
		}
		key := strings.ToLower(line[start:i])
		i++ // '='

		var value string
		if i < len(line) && line[i] == '"' {
			value, i = scanQuoted(line, i+1)
		} else {
			vstart := i
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
			value = line[vstart:i]
		}
		if _, seen := fields[key]; !seen {
			fields[key] = value
		}
	}
	return fields, strings.Join(loose, " ")
}

// scanQuoted reads a quoted value starting just after the opening quote and
// returns it unescaped together with the index after the closing quote.
// An unterminated quote consumes the rest of the line.
func scanQuoted(line string, i int) (string, int) {
	var b strings.Builder
	for i < len(line) {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			next := line[i+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(next)
			}
			i += 2
		case c == '"':
			return b.String(), i + 1
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}
