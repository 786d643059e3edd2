package logparse

import (
	"testing"

	"github.com/tinytelemetry/errtop/internal/model"
)

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected model.Severity
	}{
		// Standard forms
		{"DEBUG", model.SeverityDebug}, {"INFO", model.SeverityInfo},
		{"WARN", model.SeverityWarn}, {"ERROR", model.SeverityError},
		// Variants
		{"TRACE", model.SeverityDebug}, {"DBG", model.SeverityDebug},
		{"INFORMATION", model.SeverityInfo}, {"INF", model.SeverityInfo},
		{"WARNING", model.SeverityWarn}, {"WRN", model.SeverityWarn},
		{"ERR", model.SeverityError}, {"ERRO", model.SeverityError},
		{"FATAL", model.SeverityError}, {"CRITICAL", model.SeverityError},
		{"PANIC", model.SeverityError},
		// Case insensitive
		{"info", model.SeverityInfo}, {"warn", model.SeverityWarn}, {"error", model.SeverityError},
		// Prefix matching
		{"WARNING_LEVEL", model.SeverityWarn}, {"ERROR_CODE_42", model.SeverityError},
		{"FATAL_CRASH", model.SeverityError},
		// Unknown stays unknown
		{"", model.SeverityUnknown}, {"UNKNOWN", model.SeverityUnknown}, {"foo", model.SeverityUnknown},
		// Whitespace
		{"  INFO  ", model.SeverityInfo}, {"\tWARN\t", model.SeverityWarn},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeSeverity(tt.input)
			if got != tt.expected {
				t.Errorf("NormalizeSeverity(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSeverityFromNumber(t *testing.T) {
	tests := []struct {
		n        int
		pino     bool
		expected model.Severity
	}{
		{10, true, model.SeverityDebug},
		{30, true, model.SeverityInfo},
		{40, true, model.SeverityWarn},
		{50, true, model.SeverityError},
		{60, true, model.SeverityError},
		{0, true, model.SeverityUnknown},
		{1, false, model.SeverityDebug},
		{9, false, model.SeverityInfo},
		{13, false, model.SeverityWarn},
		{17, false, model.SeverityError},
		{21, false, model.SeverityError},
		{25, false, model.SeverityUnknown},
	}

	for _, tt := range tests {
		if got := SeverityFromNumber(tt.n, tt.pino); got != tt.expected {
			t.Errorf("SeverityFromNumber(%d, %v) = %v, want %v", tt.n, tt.pino, got, tt.expected)
		}
	}
}
