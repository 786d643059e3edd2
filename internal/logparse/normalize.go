package logparse

import (
	"fmt"
	"regexp"
	"strings"
)

// Message normalization modes accepted by NewNormalizer.
const (
	NormalizeExact  = "exact"
	NormalizeMasked = "masked"
)

// Normalizer maps a classified message to the key it is counted under.
type Normalizer func(message string) string

var (
	uuidRegex   = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	ipv4Regex   = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?\b`)
	hexRegex    = regexp.MustCompile(`(?i)\b(?:0x[0-9a-f]+|[0-9a-f]*\d[0-9a-f]*[a-f][0-9a-f]*|[0-9a-f]*[a-f][0-9a-f]*\d[0-9a-f]*)\b`)
	numberRegex = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	spaceRegex  = regexp.MustCompile(`\s+`)
)

// NewNormalizer returns the normalizer for mode. An empty mode is exact.
func NewNormalizer(mode string) (Normalizer, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", NormalizeExact:
		return Exact, nil
	case NormalizeMasked:
		return Mask, nil
	default:
		return nil, fmt.Errorf("logparse: unknown normalize mode %q (want %s or %s)", mode, NormalizeExact, NormalizeMasked)
	}
}

// Exact keys a message by its trimmed text.
func Exact(message string) string {
	return strings.TrimSpace(message)
}

// Mask replaces variable tokens so that messages differing only in ids,
// addresses or numbers share a key. It is lossy by construction.
func Mask(message string) string {
	s := strings.TrimSpace(message)
	s = uuidRegex.ReplaceAllString(s, "<uuid>")
	s = ipv4Regex.ReplaceAllString(s, "<ip>")
	s = hexRegex.ReplaceAllStringFunc(s, func(tok string) string {
		if len(tok) < 6 && !strings.HasPrefix(strings.ToLower(tok), "0x") {
			return tok
		}
		return "<hex>"
	})
	s = numberRegex.ReplaceAllString(s, "<num>")
	return spaceRegex.ReplaceAllString(s, " ")
}
