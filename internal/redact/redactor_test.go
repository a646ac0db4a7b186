package redact

import (
	"testing"

	"mosaic/api/internal/visibility"
)

func vp(v visibility.Visibility) *visibility.Visibility { return &v }

func personRef(id string, person *PersonData, override *visibility.Visibility, relationship string) Reference {
	return Reference{
		ID:           id,
		EventID:      "evt-1",
		Type:         TypePerson,
		Relationship: relationship,
		Override:     override,
		Person:       person,
	}
}

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"John Smith":        "J. S.",
		"John":              "J.",
		"Mary Ann Whitmore": "M. W.",
		"  ":                "someone",
	}
	for name, want := range cases {
		if got := Initials(name); got != want {
			t.Errorf("Initials(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestAnonymousLabel(t *testing.T) {
	if got := AnonymousLabel("Cousin"); got != "a cousin" {
		t.Errorf("AnonymousLabel(Cousin) = %q", got)
	}
	if got := AnonymousLabel("aunt"); got != "an aunt" {
		t.Errorf("AnonymousLabel(aunt) = %q", got)
	}
	if got := AnonymousLabel("landlord"); got != "someone" {
		t.Errorf("unknown relationship should yield someone, got %q", got)
	}
}

func TestReferencesDropsRemoved(t *testing.T) {
	refs := []Reference{
		personRef("ref-1", &PersonData{ID: "p1", CanonicalName: "John Smith", BaseVisibility: visibility.Removed}, nil, "friend"),
		personRef("ref-2", &PersonData{ID: "p2", CanonicalName: "Jane Doe", BaseVisibility: visibility.Approved}, nil, ""),
	}
	out := References(refs, Options{})
	if len(out) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(out))
	}
	if out[0].ID != "ref-2" || out[0].DisplayLabel != "Jane Doe" {
		t.Fatalf("unexpected survivor: %+v", out[0])
	}
}

func TestReferencesNeverExposeRawNames(t *testing.T) {
	refs := []Reference{
		personRef("ref-1", &PersonData{ID: "p1", CanonicalName: "John Smith", BaseVisibility: visibility.Blurred}, nil, ""),
		personRef("ref-2", &PersonData{ID: "p2", CanonicalName: "Jane Doe", BaseVisibility: visibility.Anonymized}, nil, "cousin"),
	}
	out := References(refs, Options{})
	if out[0].DisplayLabel != "J. S." {
		t.Errorf("blurred label = %q, want initials", out[0].DisplayLabel)
	}
	if out[1].DisplayLabel != "a cousin" {
		t.Errorf("anonymized label = %q, want relationship phrase", out[1].DisplayLabel)
	}
	for _, item := range out {
		if item.Payload != nil {
			t.Errorf("payload must be absent without IncludeAuthorPayload")
		}
	}
}

func TestReferencesAuthorPayload(t *testing.T) {
	refs := []Reference{
		personRef("ref-1", &PersonData{ID: "p1", CanonicalName: "John Smith", Aliases: []string{"Johnny"}, BaseVisibility: visibility.Blurred}, nil, ""),
	}
	out := References(refs, Options{IncludeAuthorPayload: true})
	if out[0].Payload == nil || out[0].Payload.CanonicalName != "John Smith" || len(out[0].Payload.Aliases) != 1 {
		t.Fatalf("expected mask payload, got %+v", out[0].Payload)
	}
}

func TestReferenceOverridePrecedence(t *testing.T) {
	person := &PersonData{ID: "p1", CanonicalName: "John Smith", BaseVisibility: visibility.Approved}
	ref := personRef("ref-1", person, vp(visibility.Anonymized), "friend")
	if got := EffectiveVisibility(ref); got != visibility.Anonymized {
		t.Fatalf("override should win, got %s", got)
	}
	if got := BaselineVisibility(ref); got != visibility.Approved {
		t.Fatalf("baseline should ignore the override, got %s", got)
	}
}

func TestMissingPersonFailsClosed(t *testing.T) {
	ref := personRef("ref-1", nil, vp(visibility.Approved), "")
	if got := EffectiveVisibility(ref); got != visibility.Anonymized {
		t.Fatalf("missing person data should resolve anonymized, got %s", got)
	}
}

func TestLinkReferences(t *testing.T) {
	refs := []Reference{
		{ID: "ref-1", EventID: "evt-1", Type: TypeLink, URL: "https://example.com/a"},
		{ID: "ref-2", EventID: "evt-1", Type: TypeLink, URL: "https://example.com/b", Override: vp(visibility.Removed)},
	}
	out := References(refs, Options{})
	if len(out) != 1 || out[0].URL != "https://example.com/a" {
		t.Fatalf("removed link should be dropped, got %+v", out)
	}
	if out[0].DisplayLabel != "" {
		t.Fatalf("links have no label, got %q", out[0].DisplayLabel)
	}
}

func TestApprovedRelationshipSuffix(t *testing.T) {
	refs := []Reference{
		personRef("ref-1", &PersonData{ID: "p1", CanonicalName: "Jane Doe", BaseVisibility: visibility.Approved}, nil, "Sister"),
	}
	out := References(refs, Options{IncludeRelationship: true})
	if out[0].DisplayLabel != "Jane Doe (sister)" {
		t.Fatalf("label = %q", out[0].DisplayLabel)
	}
}
