package app

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"mosaic/api/internal/store"
	"mosaic/api/internal/util"
)

// fakeStore is an in-memory stand-in for the Postgres store. It also serves
// as the refresh session store, mirroring the Postgres fallback in
// production.
type fakeStore struct {
	mu sync.Mutex

	users       map[string]store.User
	persons     map[string]store.Person
	aliases     map[string][]string
	events      map[string]store.Event
	eventOrder  []string
	refs        map[string]store.EventReference
	prefs       map[string]map[string]string // personID -> contributorID ('' = global)
	mentions    map[string]store.Mention
	attachments map[string]store.Attachment
	maskedTitle map[string]string
	maskedText  map[string]string
	revokedJTI  map[string]bool
	refresh     map[string]string // tokenHash -> userID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]store.User),
		persons:     make(map[string]store.Person),
		aliases:     make(map[string][]string),
		events:      make(map[string]store.Event),
		refs:        make(map[string]store.EventReference),
		prefs:       make(map[string]map[string]string),
		mentions:    make(map[string]store.Mention),
		attachments: make(map[string]store.Attachment),
		maskedTitle: make(map[string]string),
		maskedText:  make(map[string]string),
		revokedJTI:  make(map[string]bool),
		refresh:     make(map[string]string),
	}
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) EnsureUserByName(ctx context.Context, name string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.DisplayName == name {
			return u, nil
		}
	}
	user := store.User{ID: util.NewID("usr"), DisplayName: name, CreatedAt: time.Now()}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokedJTI[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revokedJTI[jti], nil
}

func (f *fakeStore) InsertPerson(ctx context.Context, item store.Person) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persons[item.ID] = item
	return nil
}

func (f *fakeStore) GetPerson(ctx context.Context, personID string) (store.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	person, ok := f.persons[personID]
	if !ok {
		return store.Person{}, sql.ErrNoRows
	}
	return person, nil
}

func (f *fakeStore) GetPersonClaimedBy(ctx context.Context, contributorID string) (store.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.persons {
		if p.ClaimedBy == contributorID && contributorID != "" {
			return p, nil
		}
	}
	return store.Person{}, sql.ErrNoRows
}

func (f *fakeStore) FindPersonByName(ctx context.Context, name string) (store.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.persons {
		if strings.EqualFold(p.CanonicalName, name) {
			return p, nil
		}
		for _, alias := range f.aliases[p.ID] {
			if strings.EqualFold(alias, name) {
				return p, nil
			}
		}
	}
	return store.Person{}, sql.ErrNoRows
}

func (f *fakeStore) UpdatePersonName(ctx context.Context, personID, canonicalName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	person, ok := f.persons[personID]
	if !ok {
		return sql.ErrNoRows
	}
	person.CanonicalName = canonicalName
	f.persons[personID] = person
	return nil
}

func (f *fakeStore) UpdatePersonBaseVisibility(ctx context.Context, personID, baseVisibility string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	person, ok := f.persons[personID]
	if !ok {
		return sql.ErrNoRows
	}
	person.BaseVisibility = baseVisibility
	f.persons[personID] = person
	return nil
}

func (f *fakeStore) ClaimPerson(ctx context.Context, personID, contributorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	person, ok := f.persons[personID]
	if !ok {
		return sql.ErrNoRows
	}
	if person.ClaimedBy != "" && person.ClaimedBy != contributorID {
		return sql.ErrNoRows
	}
	person.ClaimedBy = contributorID
	f.persons[personID] = person
	return nil
}

func (f *fakeStore) InsertAlias(ctx context.Context, personID, alias string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.aliases[personID] {
		if strings.EqualFold(existing, alias) {
			return nil
		}
	}
	f.aliases[personID] = append(f.aliases[personID], alias)
	return nil
}

func (f *fakeStore) GetAliasesForPeople(ctx context.Context, personIDs []string) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]string, len(personIDs))
	for _, id := range personIDs {
		if aliases := f.aliases[id]; len(aliases) > 0 {
			out[id] = append([]string(nil), aliases...)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPersonsByIDs(ctx context.Context, personIDs []string) (map[string]store.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]store.Person, len(personIDs))
	for _, id := range personIDs {
		if p, ok := f.persons[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeStore) InsertReference(ctx context.Context, item store.EventReference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[item.ID] = item
	return nil
}

func (f *fakeStore) GetReference(ctx context.Context, referenceID string) (store.EventReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refs[referenceID]
	if !ok {
		return store.EventReference{}, sql.ErrNoRows
	}
	return ref, nil
}

func (f *fakeStore) ListReferencesByEvents(ctx context.Context, eventIDs []string) (map[string][]store.EventReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[string][]store.EventReference)
	for _, ref := range f.refs {
		if _, ok := wanted[ref.EventID]; ok {
			out[ref.EventID] = append(out[ref.EventID], ref)
		}
	}
	return out, nil
}

func (f *fakeStore) ListReferencesByPerson(ctx context.Context, personID string) ([]store.EventReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.EventReference
	for _, ref := range f.refs {
		if ref.Type == "person" && ref.PersonID == personID {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateReferenceOverride(ctx context.Context, referenceID, visibilityOverride string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refs[referenceID]
	if !ok {
		return sql.ErrNoRows
	}
	ref.VisibilityOverride = visibilityOverride
	f.refs[referenceID] = ref
	return nil
}

func (f *fakeStore) UpsertPreference(ctx context.Context, personID, contributorID, vis string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prefs[personID] == nil {
		f.prefs[personID] = make(map[string]string)
	}
	f.prefs[personID][contributorID] = vis
	return nil
}

func (f *fakeStore) DeletePreference(ctx context.Context, personID, contributorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.prefs[personID], contributorID)
	return nil
}

func (f *fakeStore) GetPreferences(ctx context.Context, personID string) (store.PreferenceSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.preferenceSetLocked(personID), nil
}

func (f *fakeStore) GetPreferencesForPeople(ctx context.Context, personIDs []string) (map[string]store.PreferenceSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]store.PreferenceSet, len(personIDs))
	for _, id := range personIDs {
		out[id] = f.preferenceSetLocked(id)
	}
	return out, nil
}

func (f *fakeStore) preferenceSetLocked(personID string) store.PreferenceSet {
	set := store.PreferenceSet{ByContributor: make(map[string]string)}
	for contributorID, vis := range f.prefs[personID] {
		if contributorID == "" {
			v := vis
			set.Global = &v
			continue
		}
		set.ByContributor[contributorID] = vis
	}
	return set
}

func (f *fakeStore) ListAuthorPreferences(ctx context.Context, personID string) ([]store.VisibilityPreference, map[string]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []store.VisibilityPreference
	contributors := make(map[string]store.User)
	for contributorID, vis := range f.prefs[personID] {
		if contributorID == "" {
			continue
		}
		rows = append(rows, store.VisibilityPreference{
			PersonID:      personID,
			ContributorID: contributorID,
			Visibility:    vis,
		})
		if user, ok := f.users[contributorID]; ok {
			contributors[contributorID] = user
		}
	}
	return rows, contributors, nil
}

func (f *fakeStore) InsertMention(ctx context.Context, item store.Mention) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mentions[item.ID] = item
	return nil
}

func (f *fakeStore) ListMentionsByEvents(ctx context.Context, eventIDs []string) (map[string][]store.Mention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[string][]store.Mention)
	for _, m := range f.mentions {
		if _, ok := wanted[m.EventID]; ok {
			out[m.EventID] = append(out[m.EventID], m)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertEvent(ctx context.Context, item store.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[item.ID] = item
	f.eventOrder = append(f.eventOrder, item.ID)
	return nil
}

func (f *fakeStore) UpdateEventBody(ctx context.Context, eventID, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[eventID]
	if !ok {
		return sql.ErrNoRows
	}
	event.Title = title
	event.Body = body
	event.UpdatedAt = time.Now()
	f.events[eventID] = event
	return nil
}

func (f *fakeStore) UpdateEventMaskedText(ctx context.Context, eventID, maskedTitle, maskedText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[eventID]; !ok {
		return sql.ErrNoRows
	}
	f.maskedTitle[eventID] = maskedTitle
	f.maskedText[eventID] = maskedText
	return nil
}

func (f *fakeStore) DeleteEvent(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[eventID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.events, eventID)
	delete(f.maskedTitle, eventID)
	delete(f.maskedText, eventID)
	for i, id := range f.eventOrder {
		if id == eventID {
			f.eventOrder = append(f.eventOrder[:i], f.eventOrder[i+1:]...)
			break
		}
	}
	for id, ref := range f.refs {
		if ref.EventID == eventID {
			delete(f.refs, id)
		}
	}
	for id, m := range f.mentions {
		if m.EventID == eventID {
			delete(f.mentions, id)
		}
	}
	for id, att := range f.attachments {
		if att.EventID == eventID {
			delete(f.attachments, id)
		}
	}
	return nil
}

func (f *fakeStore) GetEvent(ctx context.Context, eventID string) (store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[eventID]
	if !ok {
		return store.Event{}, sql.ErrNoRows
	}
	return event, nil
}

func (f *fakeStore) GetEventsByIDs(ctx context.Context, eventIDs []string) (map[string]store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]store.Event, len(eventIDs))
	for _, id := range eventIDs {
		if event, ok := f.events[id]; ok {
			out[id] = event
		}
	}
	return out, nil
}

func (f *fakeStore) ListEvents(ctx context.Context, limit, offset int) ([]store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Event
	// Newest first, matching the Postgres query ordering.
	for i := len(f.eventOrder) - 1; i >= 0; i-- {
		out = append(out, f.events[f.eventOrder[i]])
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) InsertAttachment(ctx context.Context, item store.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachments[item.ID] = item
	return nil
}

func (f *fakeStore) GetAttachment(ctx context.Context, attachmentID string) (store.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	att, ok := f.attachments[attachmentID]
	if !ok {
		return store.Attachment{}, sql.ErrNoRows
	}
	return att, nil
}

func (f *fakeStore) ListAttachmentsByEvent(ctx context.Context, eventID string) ([]store.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Attachment
	for _, att := range f.attachments {
		if att.EventID == eventID {
			out = append(out, att)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attachments[attachmentID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.attachments, attachmentID)
	return nil
}

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = userID
	return nil
}

func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	userID, ok := f.refresh[tokenHash]
	f.mu.Unlock()
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return f.GetUserByID(ctx, userID)
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}
