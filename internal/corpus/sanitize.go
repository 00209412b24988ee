package corpus

import (
	"strings"
	"time"
)

// instantFormat is the UTC instant form every date value is normalized to
// before indexing. Microsecond precision, always suffixed Z.
const instantFormat = "2006-01-02T15:04:05.000000Z"

// dateLayouts are the source formats accepted for string-typed date values,
// tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// formatInstant renders a time in the engine's date wire format.
func formatInstant(t time.Time) string {
	return t.UTC().Format(instantFormat)
}

// parseInstant normalizes a date string to the instant wire format.
// Unparseable and empty values become the empty string; the engine would
// reject them anyway and an empty date is the documented fallback.
func parseInstant(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return formatInstant(t)
		}
	}
	return ""
}

// sanitizeXML strips code points outside the legal XML 1.0 ranges. The
// engine parses update payloads with an XML tokenizer and rejects documents
// carrying illegal characters.
func sanitizeXML(s string) string {
	clean := true
	for _, r := range s {
		if !legalXMLRune(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if legalXMLRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func legalXMLRune(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}
