// Package redact projects raw person references and note bodies into
// client-safe representations. Nothing in this package does I/O; callers load
// a single snapshot of persons and preferences and pass it in.
package redact

import (
	"strings"

	"mosaic/api/internal/visibility"
)

type ReferenceType string

const (
	TypePerson ReferenceType = "person"
	TypeLink   ReferenceType = "link"
)

// PersonData is the slice of a person record the redactor needs, together
// with the preference rows relevant to the note being rendered.
type PersonData struct {
	ID             string
	CanonicalName  string
	Aliases        []string
	BaseVisibility visibility.Visibility
	// AuthorPref is the person's preference for the note's author, GlobalPref
	// their default. Nil means no row, which is distinct from pending.
	AuthorPref *visibility.Visibility
	GlobalPref *visibility.Visibility
}

// Reference is one raw event reference plus the person snapshot it points at.
// Person is nil for link references, and also when the person row could not
// be loaded; that failure renders anonymously rather than failing the page.
type Reference struct {
	ID           string
	EventID      string
	Type         ReferenceType
	Role         string
	Relationship string
	URL          string
	Override     *visibility.Visibility
	AddedBy      string
	Person       *PersonData
}

// MaskPayload carries the raw identifying strings the content masker needs.
// It exists only for the in-process masking step; anything serialized to a
// non-owner must have it stripped first.
type MaskPayload struct {
	CanonicalName string   `json:"canonicalName"`
	Aliases       []string `json:"aliases"`
}

type RedactedReference struct {
	ID           string                `json:"id"`
	EventID      string                `json:"eventId"`
	Type         ReferenceType         `json:"type"`
	Role         string                `json:"role,omitempty"`
	Relationship string                `json:"relationship,omitempty"`
	URL          string                `json:"url,omitempty"`
	Visibility   visibility.Visibility `json:"visibility"`
	DisplayLabel string                `json:"displayLabel,omitempty"`
	Payload      *MaskPayload          `json:"-"`
}

type Options struct {
	// IncludeAuthorPayload attaches raw name data for the masking step.
	IncludeAuthorPayload bool
	// IncludeRelationship suffixes the relationship onto approved labels.
	IncludeRelationship bool
}

// EffectiveVisibility resolves one reference against its person snapshot.
// A person reference with no person data resolves to anonymized: an
// unavailable record is not consent.
func EffectiveVisibility(ref Reference) visibility.Visibility {
	if ref.Type == TypeLink {
		if ref.Override != nil {
			return visibility.Normalize(string(*ref.Override))
		}
		return visibility.Approved
	}
	if ref.Person == nil {
		return visibility.Anonymized
	}
	return visibility.Resolve(ref.Override, ref.Person.AuthorPref, ref.Person.GlobalPref, ref.Person.BaseVisibility)
}

// BaselineVisibility resolves a reference ignoring its own override. This is
// the ceiling a proposed override is checked against.
func BaselineVisibility(ref Reference) visibility.Visibility {
	if ref.Person == nil {
		return visibility.Anonymized
	}
	return visibility.Baseline(ref.Person.AuthorPref, ref.Person.GlobalPref, ref.Person.BaseVisibility)
}

// References builds the client-safe reference list. Removed references are
// dropped entirely; every surviving person reference carries only its
// computed display label, never a raw name, unless its effective visibility
// is approved.
func References(refs []Reference, opts Options) []RedactedReference {
	out := make([]RedactedReference, 0, len(refs))
	for _, ref := range refs {
		effective := EffectiveVisibility(ref)
		if effective == visibility.Removed {
			continue
		}

		item := RedactedReference{
			ID:         ref.ID,
			EventID:    ref.EventID,
			Type:       ref.Type,
			Role:       ref.Role,
			URL:        ref.URL,
			Visibility: effective,
		}

		if ref.Type == TypePerson {
			name := ""
			if ref.Person != nil {
				name = ref.Person.CanonicalName
			}
			item.DisplayLabel = DisplayLabel(effective, name, ref.Relationship, opts.IncludeRelationship)
			if effective == visibility.Approved {
				item.Relationship = ref.Relationship
			}
			if opts.IncludeAuthorPayload && ref.Person != nil {
				item.Payload = &MaskPayload{
					CanonicalName: ref.Person.CanonicalName,
					Aliases:       append([]string(nil), ref.Person.Aliases...),
				}
			}
		}

		out = append(out, item)
	}
	return out
}

// DisplayLabel computes the rendered label for one person reference.
func DisplayLabel(effective visibility.Visibility, canonicalName, relationship string, includeRelationship bool) string {
	switch effective {
	case visibility.Approved:
		label := canonicalName
		if includeRelationship && relationship != "" {
			label = label + " (" + strings.ToLower(relationship) + ")"
		}
		return label
	case visibility.Blurred:
		return Initials(canonicalName)
	default:
		return AnonymousLabel(relationship)
	}
}

// Initials derives a blurred label from a canonical name: first letter of the
// first and last whitespace-delimited tokens, each followed by a period.
func Initials(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return anonymousFallback
	}
	first := initialOf(fields[0])
	if len(fields) == 1 {
		return first
	}
	return first + " " + initialOf(fields[len(fields)-1])
}

func initialOf(token string) string {
	for _, r := range token {
		return string(r) + "."
	}
	return ""
}

const anonymousFallback = "someone"

// relationshipPhrases maps a relationship_to_subject value onto the phrase an
// anonymized reference renders as. Anything outside this table falls back to
// "someone".
var relationshipPhrases = map[string]string{
	"mother":      "their mother",
	"father":      "their father",
	"parent":      "a parent",
	"stepmother":  "their stepmother",
	"stepfather":  "their stepfather",
	"sister":      "a sister",
	"brother":     "a brother",
	"sibling":     "a sibling",
	"daughter":    "a daughter",
	"son":         "a son",
	"child":       "a child",
	"grandmother": "their grandmother",
	"grandfather": "their grandfather",
	"grandparent": "a grandparent",
	"grandchild":  "a grandchild",
	"aunt":        "an aunt",
	"uncle":       "an uncle",
	"cousin":      "a cousin",
	"niece":       "a niece",
	"nephew":      "a nephew",
	"wife":        "their wife",
	"husband":     "their husband",
	"spouse":      "their spouse",
	"partner":     "their partner",
	"fiance":      "their fiance",
	"fiancee":     "their fiancee",
	"friend":      "a friend",
	"neighbor":    "a neighbor",
	"roommate":    "a roommate",
	"colleague":   "a colleague",
	"coworker":    "a coworker",
	"classmate":   "a classmate",
	"teacher":     "a teacher",
	"student":     "a student",
	"mentor":      "a mentor",
	"caregiver":   "a caregiver",
	"nurse":       "a nurse",
	"doctor":      "a doctor",
}

// AnonymousLabel returns the relationship-derived phrase for an anonymized or
// pending reference, or "someone" when the relationship is not recognized.
func AnonymousLabel(relationship string) string {
	phrase, ok := relationshipPhrases[strings.ToLower(strings.TrimSpace(relationship))]
	if !ok {
		return anonymousFallback
	}
	return phrase
}
