package poller

import (
	"regexp"
	"strings"
)

// Severity classifies one line of device log text
type Severity string

const (
	SeverityNeutral   Severity = "neutral"
	SeverityError     Severity = "error"
	SeverityWarning   Severity = "warning"
	SeverityOK        Severity = "ok"
	SeverityTimestamp Severity = "timestamp"
)

// Placeholder texts for empty and failed log panes
const (
	EmptyLogText  = "(empty)"
	FetchFailText = "Fetch failed"
)

// LogLine is one classified line
type LogLine struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

var timestampPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)

var (
	errorWords   = []string{"failed", "error", "not authorized", "disconnect"}
	warningWords = []string{"warning", "no internet", "connecting"}
	okWords      = []string{"connected", "saved", "updated", "time synchronized"}
)

// ClassifyLine returns the severity of a single line. A leading timestamp wins
// over any keyword.
func ClassifyLine(line string) Severity {
	if timestampPrefix.MatchString(line) {
		return SeverityTimestamp
	}
	lower := strings.ToLower(line)
	switch {
	case containsAny(lower, errorWords):
		return SeverityError
	case containsAny(lower, warningWords):
		return SeverityWarning
	case containsAny(lower, okWords):
		return SeverityOK
	}
	return SeverityNeutral
}

// ClassifyLog splits log text into trimmed, non-empty, classified lines. Text
// with no lines yields a single neutral "(empty)" line.
func ClassifyLog(text string) []LogLine {
	var out []LogLine
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r\n\v\f")
		if line == "" {
			continue
		}
		out = append(out, LogLine{Text: line, Severity: ClassifyLine(line)})
	}
	if len(out) == 0 {
		return []LogLine{{Text: EmptyLogText, Severity: SeverityNeutral}}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
