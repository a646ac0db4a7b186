// Package mention detects candidate name spans in free text. The detector is
// a pluggable capability: the redaction pipeline only depends on the Span
// contract, not on any particular heuristic.
package mention

import (
	"regexp"
	"strings"
)

// Span is one detected name-like occurrence.
type Span struct {
	Text  string
	Start int
	End   int
}

// Detector finds candidate person-name spans in plain text.
type Detector interface {
	Detect(text string) []Span
}

// RegexDetector is the default heuristic: runs of capitalized words, with a
// small stop list for sentence-leading words that are rarely names.
type RegexDetector struct {
	pattern  *regexp.Regexp
	stopList map[string]struct{}
}

var namePattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

var defaultStopWords = []string{
	"The", "This", "That", "These", "Those", "There", "Then", "They",
	"When", "Where", "While", "What", "Who", "Why", "How",
	"And", "But", "She", "Her", "His", "Him", "Our", "Your", "Its",
	"Today", "Tomorrow", "Yesterday",
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
	"January", "February", "March", "April", "May", "June", "July",
	"August", "September", "October", "November", "December",
}

func NewRegexDetector() *RegexDetector {
	stop := make(map[string]struct{}, len(defaultStopWords))
	for _, w := range defaultStopWords {
		stop[w] = struct{}{}
	}
	return &RegexDetector{pattern: namePattern, stopList: stop}
}

func (d *RegexDetector) Detect(text string) []Span {
	matches := d.pattern.FindAllStringIndex(text, -1)
	spans := make([]Span, 0, len(matches))
	for _, m := range matches {
		candidate := text[m[0]:m[1]]
		candidate, start := d.trimStopPrefix(candidate, m[0])
		if candidate == "" {
			continue
		}
		if _, stopped := d.stopList[candidate]; stopped {
			continue
		}
		spans = append(spans, Span{Text: candidate, Start: start, End: start + len(candidate)})
	}
	return spans
}

// trimStopPrefix drops leading stop words from a multi-word match, so
// "Then John Smith" detects as "John Smith".
func (d *RegexDetector) trimStopPrefix(candidate string, start int) (string, int) {
	for {
		word, rest, found := strings.Cut(candidate, " ")
		if _, stopped := d.stopList[word]; !stopped {
			return candidate, start
		}
		if !found {
			return "", start
		}
		trimmed := strings.TrimLeft(rest, " ")
		start += len(candidate) - len(trimmed)
		candidate = trimmed
	}
}
