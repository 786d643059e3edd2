package logparse

import (
	"strings"

	"github.com/tinytelemetry/errtop/internal/model"
)

// NormalizeSeverity converts the many spellings of a severity level found in
// structured logs to one of the five ranked severities.
// FATAL and its relatives count as ERROR, TRACE counts as DEBUG.
func NormalizeSeverity(severity string) model.Severity {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "TRAC", "TRC", "DEBUG", "DEBU", "DBG", "DEB":
		return model.SeverityDebug
	case "INFO", "INFORMATION", "INF", "NOTICE":
		return model.SeverityInfo
	case "WARN", "WARNING", "WRNG", "WRN":
		return model.SeverityWarn
	case "ERROR", "ERR", "ERRO", "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "CRT", "PANIC", "PNC", "EMERG", "ALERT":
		return model.SeverityError
	}

	if len(normalized) >= 4 {
		switch normalized[:4] {
		case "INFO":
			return model.SeverityInfo
		case "WARN":
			return model.SeverityWarn
		case "ERRO", "FATA", "CRIT":
			return model.SeverityError
		case "DEBU", "TRAC":
			return model.SeverityDebug
		}
	}
	return model.SeverityUnknown
}

// SeverityFromNumber maps OTEL severity numbers (1-24) and pino/bunyan
// levels (10-60) to a severity. Values that fit neither scale are UNKNOWN.
func SeverityFromNumber(n int, pino bool) model.Severity {
	if pino {
		switch {
		case n <= 0:
			return model.SeverityUnknown
		case n < 30:
			return model.SeverityDebug
		case n < 40:
			return model.SeverityInfo
		case n < 50:
			return model.SeverityWarn
		default:
			return model.SeverityError
		}
	}
	switch {
	case n <= 0 || n > 24:
		return model.SeverityUnknown
	case n <= 8:
		return model.SeverityDebug
	case n <= 12:
		return model.SeverityInfo
	case n <= 16:
		return model.SeverityWarn
	default:
		return model.SeverityError
	}
}
