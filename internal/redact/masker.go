package redact

import (
	"sort"
	"strings"

	"mosaic/api/internal/visibility"
)

// Candidate pairs a literal string that may occur in note text with the label
// it must be replaced by.
type Candidate struct {
	Text  string
	Label string
}

// Mention is a free-text name occurrence with no structured reference behind
// it. It carries its own visibility and label.
type Mention struct {
	Text         string
	Visibility   visibility.Visibility
	DisplayLabel string
}

// MaskCandidates builds mask candidates from raw references. Unlike the
// client-facing list, this includes removed references: their names must
// still be scrubbed from body text even though the reference itself is never
// serialized. Approved references need no masking and contribute nothing.
func MaskCandidates(refs []Reference) []Candidate {
	out := make([]Candidate, 0, len(refs))
	for _, ref := range refs {
		if ref.Type != TypePerson || ref.Person == nil {
			continue
		}
		effective := EffectiveVisibility(ref)
		if effective == visibility.Approved {
			continue
		}
		label := DisplayLabel(effective, ref.Person.CanonicalName, ref.Relationship, false)
		if effective == visibility.Removed {
			label = anonymousFallback
		}
		if name := strings.TrimSpace(ref.Person.CanonicalName); name != "" {
			out = append(out, Candidate{Text: name, Label: label})
		}
		for _, alias := range ref.Person.Aliases {
			if alias = strings.TrimSpace(alias); alias != "" {
				out = append(out, Candidate{Text: alias, Label: label})
			}
		}
	}
	return out
}

// MentionCandidates builds mask candidates from mention rows. A mention with
// an empty display label derives one from its own visibility so a half-written
// row can never surface its literal text.
func MentionCandidates(mentions []Mention) []Candidate {
	out := make([]Candidate, 0, len(mentions))
	for _, m := range mentions {
		text := strings.TrimSpace(m.Text)
		if text == "" || m.Visibility == visibility.Approved {
			continue
		}
		label := m.DisplayLabel
		if label == "" {
			if m.Visibility == visibility.Blurred {
				label = Initials(text)
			} else {
				label = anonymousFallback
			}
		}
		out = append(out, Candidate{Text: text, Label: label})
	}
	return out
}

// Mask rewrites an HTML note body, replacing every candidate occurrence in
// text content with its label. Tag markup is never scanned or altered.
// Matching is case-insensitive, longest-candidate-first, and left-to-right:
// once a span is consumed it is not matched again, so "John Smith" wins over
// "John" and output labels are not re-substituted within a pass. Unmatched
// content is preserved byte for byte.
func Mask(html string, candidates []Candidate) string {
	cands := prepareCandidates(candidates)
	if len(cands) == 0 {
		return html
	}

	var out strings.Builder
	out.Grow(len(html))

	pos := 0
	for pos < len(html) {
		if html[pos] == '<' {
			end := strings.IndexByte(html[pos:], '>')
			if end < 0 {
				out.WriteString(html[pos:])
				break
			}
			out.WriteString(html[pos : pos+end+1])
			pos += end + 1
			continue
		}
		next := strings.IndexByte(html[pos:], '<')
		var segment string
		if next < 0 {
			segment = html[pos:]
			pos = len(html)
		} else {
			segment = html[pos : pos+next]
			pos += next
		}
		maskText(&out, segment, cands)
	}
	return out.String()
}

func prepareCandidates(candidates []Candidate) []Candidate {
	cands := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		text := strings.TrimSpace(c.Text)
		if text == "" || strings.EqualFold(text, c.Label) {
			continue
		}
		cands = append(cands, Candidate{Text: text, Label: c.Label})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return len(cands[i].Text) > len(cands[j].Text)
	})
	return cands
}

func maskText(out *strings.Builder, text string, cands []Candidate) {
	pos := 0
	for pos < len(text) {
		matched := false
		for _, c := range cands {
			end := pos + len(c.Text)
			if end > len(text) {
				continue
			}
			if !strings.EqualFold(text[pos:end], c.Text) {
				continue
			}
			if !boundaryBefore(text, pos) || !boundaryAfter(text, end) {
				continue
			}
			out.WriteString(c.Label)
			pos = end
			matched = true
			break
		}
		if !matched {
			out.WriteByte(text[pos])
			pos++
		}
	}
}

// Word boundaries keep "John" from matching inside "Johnson". Bytes beyond
// ASCII are treated as word bytes, which is conservative for multi-byte text.
func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b >= 0x80
}

func boundaryBefore(text string, pos int) bool {
	return pos == 0 || !isWordByte(text[pos-1])
}

func boundaryAfter(text string, end int) bool {
	return end == len(text) || !isWordByte(text[end])
}
