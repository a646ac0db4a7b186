package store

import "time"

// User is an authoring identity (a contributor to the shared subject's feed).
type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Relation              string
	Trusted               bool
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Person is a mentionable individual, independent of any single note. Person
// rows are never hard-deleted; withdrawal is expressed as base_visibility
// 'removed'.
type Person struct {
	ID             string
	CanonicalName  string
	BaseVisibility string
	CreatedBy      string
	ClaimedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Event is one note about the shared subject. Body is HTML.
type Event struct {
	ID         string
	Title      string
	Body       string
	AuthorID   string
	AuthorName string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EventReference links a note to a mentioned person or an external link.
type EventReference struct {
	ID                 string
	EventID            string
	Type               string // 'person' or 'link'
	PersonID           string // empty for links
	URL                string // empty for persons
	Role               string
	Relationship       string
	VisibilityOverride string // empty means no override
	AddedBy            string
	CreatedAt          time.Time
}

// VisibilityPreference is one preference row. ContributorID is empty for the
// person's global default; the (person_id, contributor_id) pair is unique and
// writes are upserts.
type VisibilityPreference struct {
	PersonID      string
	ContributorID string
	Visibility    string
	UpdatedAt     time.Time
}

// PreferenceSet is the per-person snapshot handed to the resolver.
type PreferenceSet struct {
	Global        *string
	ByContributor map[string]string
}

// Mention is a free-text name occurrence with no structured reference yet.
type Mention struct {
	ID           string
	EventID      string
	MentionText  string
	Visibility   string
	DisplayLabel string
	CreatedAt    time.Time
}

// Attachment is an uploaded object tied to a note; the bytes live in object
// storage, this row is the catalog entry.
type Attachment struct {
	ID          string
	EventID     string
	FileName    string
	ContentType string
	Size        int64
	ObjectKey   string
	UploadedBy  string
	CreatedAt   time.Time
}

// CommitInfo describes one revision in an event's body archive.
type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
