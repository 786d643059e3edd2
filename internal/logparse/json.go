package logparse

import (
	"strings"

	"github.com/tinytelemetry/errtop/internal/model"
	"github.com/valyala/fastjson"
)

// JSONClassifier understands one JSON object per line, covering the common
// shapes emitted by zap, logrus, pino, bunyan, slog and OTEL JSON exporters.
type JSONClassifier struct {
	pool *fastjson.ParserPool
}

// NewJSONClassifier creates a JSON classifier. Parsers are pooled so a single
// classifier can be shared between ingestion shards.
func NewJSONClassifier() *JSONClassifier {
	return &JSONClassifier{pool: &fastjson.ParserPool{}}
}

func (c *JSONClassifier) Name() string { return FormatJSON }

func (c *JSONClassifier) Classify(line string) model.LogEntry {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return model.LogEntry{}
	}

	p := c.pool.Get()
	defer c.pool.Put(p)

	v, err := p.Parse(trimmed)
	if err != nil || v.Type() != fastjson.TypeObject {
		return model.LogEntry{Severity: model.SeverityUnknown, Message: trimmed}
	}

	entry := model.LogEntry{
		Severity: jsonSeverity(v),
		Message:  jsonMessage(v),
	}
	if entry.Message == "" && entry.Severity == model.SeverityUnknown {
		entry.Message = trimmed
	}
	return entry
}

func jsonSeverity(v *fastjson.Value) model.Severity {
	lookups := []struct {
		path []string
		pino bool
	}{
		{[]string{"level"}, true},
		{[]string{"severityText"}, false},
		{[]string{"severity"}, false},
		{[]string{"lvl"}, true},
		{[]string{"log.level"}, false},
		{[]string{"log", "level"}, false},
		{[]string{"severityNumber"}, false},
	}
	for _, l := range lookups {
		f := v.Get(l.path...)
		if f == nil {
			continue
		}
		switch f.Type() {
		case fastjson.TypeString:
			if sev := NormalizeSeverity(string(f.GetStringBytes())); sev != model.SeverityUnknown {
				return sev
			}
		case fastjson.TypeNumber:
			n, err := f.Float64()
			if err == nil {
				if sev := SeverityFromNumber(int(n), l.pino); sev != model.SeverityUnknown {
					return sev
				}
			}
		}
	}
	return model.SeverityUnknown
}

func jsonMessage(v *fastjson.Value) string {
	for _, key := range []string{"msg", "message", "body", "error", "err"} {
		f := v.Get(key)
		if f == nil {
			continue
		}
		var s string
		switch f.Type() {
		case fastjson.TypeString:
			s = string(f.GetStringBytes())
		case fastjson.TypeObject:
			// OTEL AnyValue body, or an error object with its own message.
			s = string(f.GetStringBytes("stringValue"))
			if s == "" {
				s = string(f.GetStringBytes("message"))
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
