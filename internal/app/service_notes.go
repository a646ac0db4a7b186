package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"mosaic/api/internal/archive"
	"mosaic/api/internal/export"
	"mosaic/api/internal/redact"
	"mosaic/api/internal/search"
	"mosaic/api/internal/store"
	"mosaic/api/internal/util"
	"mosaic/api/internal/visibility"
)

// NoteView is one rendered note. Body and references are already redacted
// for the viewer; raw names never appear in a non-author view.
type NoteView struct {
	ID          string                     `json:"id"`
	Title       string                     `json:"title"`
	Body        string                     `json:"body"`
	AuthorID    string                     `json:"authorId"`
	AuthorName  string                     `json:"authorName"`
	IsAuthor    bool                       `json:"isAuthor"`
	CreatedAt   time.Time                  `json:"createdAt"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
	References  []redact.RedactedReference `json:"references"`
	Attachments []AttachmentView           `json:"attachments,omitempty"`
}

type AttachmentView struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ReferenceInput struct {
	Type         string `json:"type"` // 'person' or 'link'
	PersonID     string `json:"personId"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Role         string `json:"role"`
	Relationship string `json:"relationship"`
}

type CreateNoteInput struct {
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	References []ReferenceInput `json:"references"`
}

type UpdateNoteInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// renderContext is one batched snapshot of everything needed to render a set
// of events. All rows are fetched up front so a page renders from a single
// consistent read.
type renderContext struct {
	refs     map[string][]redact.Reference
	mentions map[string][]redact.Mention
}

func (s *Service) loadRenderContext(ctx context.Context, events []store.Event) (renderContext, error) {
	eventIDs := make([]string, 0, len(events))
	authorByEvent := make(map[string]string, len(events))
	for _, event := range events {
		eventIDs = append(eventIDs, event.ID)
		authorByEvent[event.ID] = event.AuthorID
	}

	refsByEvent, err := s.store.ListReferencesByEvents(ctx, eventIDs)
	if err != nil {
		return renderContext{}, err
	}

	personIDs := make([]string, 0)
	seen := make(map[string]struct{})
	for _, refs := range refsByEvent {
		for _, ref := range refs {
			if ref.Type != "person" || ref.PersonID == "" {
				continue
			}
			if _, ok := seen[ref.PersonID]; ok {
				continue
			}
			seen[ref.PersonID] = struct{}{}
			personIDs = append(personIDs, ref.PersonID)
		}
	}

	persons, err := s.store.GetPersonsByIDs(ctx, personIDs)
	if err != nil {
		return renderContext{}, err
	}
	aliases, err := s.store.GetAliasesForPeople(ctx, personIDs)
	if err != nil {
		return renderContext{}, err
	}
	prefs, err := s.store.GetPreferencesForPeople(ctx, personIDs)
	if err != nil {
		return renderContext{}, err
	}
	mentionsByEvent, err := s.store.ListMentionsByEvents(ctx, eventIDs)
	if err != nil {
		return renderContext{}, err
	}

	rc := renderContext{
		refs:     make(map[string][]redact.Reference, len(eventIDs)),
		mentions: make(map[string][]redact.Mention, len(eventIDs)),
	}
	for eventID, rows := range refsByEvent {
		authorID := authorByEvent[eventID]
		out := make([]redact.Reference, 0, len(rows))
		for _, row := range rows {
			out = append(out, buildReference(row, authorID, persons, aliases, prefs))
		}
		rc.refs[eventID] = out
	}
	for eventID, rows := range mentionsByEvent {
		out := make([]redact.Mention, 0, len(rows))
		for _, row := range rows {
			out = append(out, redact.Mention{
				Text:         row.MentionText,
				Visibility:   visibility.Normalize(row.Visibility),
				DisplayLabel: row.DisplayLabel,
			})
		}
		rc.mentions[eventID] = out
	}
	return rc, nil
}

func buildReference(row store.EventReference, authorID string, persons map[string]store.Person, aliases map[string][]string, prefs map[string]store.PreferenceSet) redact.Reference {
	ref := redact.Reference{
		ID:           row.ID,
		EventID:      row.EventID,
		Type:         redact.ReferenceType(row.Type),
		Role:         row.Role,
		Relationship: row.Relationship,
		URL:          row.URL,
		Override:     overridePtr(row.VisibilityOverride),
		AddedBy:      row.AddedBy,
	}
	if row.Type != "person" {
		return ref
	}
	person, ok := persons[row.PersonID]
	if !ok {
		// Person row missing; the redactor renders this anonymized.
		return ref
	}
	set := prefs[row.PersonID]
	ref.Person = &redact.PersonData{
		ID:             person.ID,
		CanonicalName:  person.CanonicalName,
		Aliases:        aliases[row.PersonID],
		BaseVisibility: visibility.Normalize(person.BaseVisibility),
		AuthorPref:     contributorPref(set, authorID),
		GlobalPref:     globalPref(set),
	}
	return ref
}

func (s *Service) renderNote(event store.Event, rc renderContext, viewerID string) NoteView {
	refs := rc.refs[event.ID]
	mentions := rc.mentions[event.ID]
	isAuthor := viewerID != "" && viewerID == event.AuthorID

	view := NoteView{
		ID:         event.ID,
		Title:      event.Title,
		AuthorID:   event.AuthorID,
		AuthorName: event.AuthorName,
		IsAuthor:   isAuthor,
		CreatedAt:  event.CreatedAt,
		UpdatedAt:  event.UpdatedAt,
	}

	if isAuthor {
		view.Body = event.Body
		view.References = authorReferences(refs)
		return view
	}

	// Titles carry names as readily as bodies do, so they go through the
	// same candidate set.
	view.Title = maskedBody(event.Title, refs, mentions)
	view.Body = maskedBody(event.Body, refs, mentions)
	view.References = redact.References(refs, redact.Options{IncludeRelationship: true})
	return view
}

// authorReferences renders the author's own view: removed people still
// disappear, everyone else shows under their canonical name.
func authorReferences(refs []redact.Reference) []redact.RedactedReference {
	out := make([]redact.RedactedReference, 0, len(refs))
	for _, ref := range refs {
		effective := redact.EffectiveVisibility(ref)
		if effective == visibility.Removed {
			continue
		}
		item := redact.RedactedReference{
			ID:           ref.ID,
			EventID:      ref.EventID,
			Type:         ref.Type,
			Role:         ref.Role,
			Relationship: ref.Relationship,
			URL:          ref.URL,
			Visibility:   effective,
		}
		if ref.Person != nil {
			item.DisplayLabel = ref.Person.CanonicalName
		}
		out = append(out, item)
	}
	return out
}

func maskedBody(body string, refs []redact.Reference, mentions []redact.Mention) string {
	cands := redact.MaskCandidates(refs)
	cands = append(cands, redact.MentionCandidates(mentions)...)
	return redact.Mask(body, cands)
}

// Feed lists the newest notes, each redacted for the caller.
func (s *Service) Feed(ctx context.Context, session Session, limit, offset int) ([]NoteView, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	if offset < 0 {
		offset = 0
	}
	events, err := s.store.ListEvents(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	rc, err := s.loadRenderContext(ctx, events)
	if err != nil {
		return nil, err
	}
	views := make([]NoteView, 0, len(events))
	for _, event := range events {
		views = append(views, s.renderNote(event, rc, session.UserID))
	}
	return views, nil
}

func (s *Service) GetNote(ctx context.Context, session Session, eventID string) (NoteView, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return NoteView{}, err
	}
	rc, err := s.loadRenderContext(ctx, []store.Event{event})
	if err != nil {
		return NoteView{}, err
	}
	view := s.renderNote(event, rc, session.UserID)

	attachments, err := s.store.ListAttachmentsByEvent(ctx, eventID)
	if err != nil {
		return NoteView{}, err
	}
	for _, att := range attachments {
		view.Attachments = append(view.Attachments, AttachmentView{
			ID:          att.ID,
			FileName:    att.FileName,
			ContentType: att.ContentType,
			Size:        att.Size,
			CreatedAt:   att.CreatedAt,
		})
	}
	return view, nil
}

func (s *Service) CreateNote(ctx context.Context, session Session, input CreateNoteInput) (NoteView, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return NoteView{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "title is required", nil)
	}
	if strings.TrimSpace(input.Body) == "" {
		return NoteView{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "body is required", nil)
	}

	now := time.Now()
	event := store.Event{
		ID:         util.NewID("evt"),
		Title:      title,
		Body:       input.Body,
		AuthorID:   session.UserID,
		AuthorName: session.UserName,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return NoteView{}, err
	}

	referencedNames, err := s.insertReferences(ctx, session, event.ID, input.References)
	if err != nil {
		return NoteView{}, err
	}
	if err := s.detectMentions(ctx, event.ID, input.Body, referencedNames, nil); err != nil {
		return NoteView{}, err
	}

	if s.archive != nil {
		if err := s.archive.EnsureEventRepo(event.ID, archive.Revision{Title: title, Body: input.Body}, session.UserName); err != nil {
			return NoteView{}, err
		}
	}

	s.refreshEventRendering(ctx, event.ID)
	return s.GetNote(ctx, session, event.ID)
}

func (s *Service) insertReferences(ctx context.Context, session Session, eventID string, inputs []ReferenceInput) (map[string]struct{}, error) {
	names := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		switch in.Type {
		case "link":
			if strings.TrimSpace(in.URL) == "" {
				return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "link references require a url", nil)
			}
			err := s.store.InsertReference(ctx, store.EventReference{
				ID:        util.NewID("ref"),
				EventID:   eventID,
				Type:      "link",
				URL:       in.URL,
				Role:      in.Role,
				AddedBy:   session.UserID,
				CreatedAt: time.Now(),
			})
			if err != nil {
				return nil, err
			}
		case "person", "":
			person, err := s.resolveReferencedPerson(ctx, session, in)
			if err != nil {
				return nil, err
			}
			err = s.store.InsertReference(ctx, store.EventReference{
				ID:           util.NewID("ref"),
				EventID:      eventID,
				Type:         "person",
				PersonID:     person.ID,
				Role:         in.Role,
				Relationship: in.Relationship,
				AddedBy:      session.UserID,
				CreatedAt:    time.Now(),
			})
			if err != nil {
				return nil, err
			}
			names[strings.ToLower(person.CanonicalName)] = struct{}{}
		default:
			return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "reference type must be person or link", nil)
		}
	}
	return names, nil
}

// resolveReferencedPerson finds the person a structured reference points at,
// matching existing names case-insensitively before minting a new record.
// New records start pending until the person states a preference.
func (s *Service) resolveReferencedPerson(ctx context.Context, session Session, in ReferenceInput) (store.Person, error) {
	if id := strings.TrimSpace(in.PersonID); id != "" {
		return s.store.GetPerson(ctx, id)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Person{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "person references require a personId or name", nil)
	}

	person, err := s.store.FindPersonByName(ctx, name)
	if err == nil {
		return person, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.Person{}, err
	}

	person = store.Person{
		ID:             util.NewID("per"),
		CanonicalName:  name,
		BaseVisibility: string(visibility.Pending),
		CreatedBy:      session.UserID,
	}
	if err := s.store.InsertPerson(ctx, person); err != nil {
		return store.Person{}, err
	}
	return person, nil
}

// detectMentions scans the body text for name-like spans that have no
// structured reference and records them pending, so the masker covers them
// until someone claims or approves the name.
func (s *Service) detectMentions(ctx context.Context, eventID, body string, referencedNames map[string]struct{}, existing []store.Mention) error {
	known := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		known[strings.ToLower(m.MentionText)] = struct{}{}
	}

	text := stripHTML(body)
	for _, span := range s.detector.Detect(text) {
		key := strings.ToLower(span.Text)
		if _, ok := referencedNames[key]; ok {
			continue
		}
		if _, ok := known[key]; ok {
			continue
		}
		known[key] = struct{}{}
		err := s.store.InsertMention(ctx, store.Mention{
			ID:          util.NewID("mnt"),
			EventID:     eventID,
			MentionText: span.Text,
			Visibility:  string(visibility.Pending),
			CreatedAt:   time.Now(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) UpdateNote(ctx context.Context, session Session, eventID string, input UpdateNoteInput) (NoteView, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return NoteView{}, err
	}
	if event.AuthorID != session.UserID {
		return NoteView{}, domainError(http.StatusForbidden, "FORBIDDEN", "only the author can edit a note", nil)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = event.Title
	}
	body := input.Body
	if strings.TrimSpace(body) == "" {
		return NoteView{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "body is required", nil)
	}

	if err := s.store.UpdateEventBody(ctx, eventID, title, body); err != nil {
		return NoteView{}, err
	}

	refsByEvent, err := s.store.ListReferencesByEvents(ctx, []string{eventID})
	if err != nil {
		return NoteView{}, err
	}
	referencedNames, err := s.referencedNames(ctx, refsByEvent[eventID])
	if err != nil {
		return NoteView{}, err
	}
	mentionsByEvent, err := s.store.ListMentionsByEvents(ctx, []string{eventID})
	if err != nil {
		return NoteView{}, err
	}
	if err := s.detectMentions(ctx, eventID, body, referencedNames, mentionsByEvent[eventID]); err != nil {
		return NoteView{}, err
	}

	if s.archive != nil {
		if _, err := s.archive.SaveRevision(eventID, archive.Revision{Title: title, Body: body}, session.UserName, "Edit note"); err != nil {
			return NoteView{}, err
		}
	}

	s.refreshEventRendering(ctx, eventID)
	return s.GetNote(ctx, session, eventID)
}

func (s *Service) referencedNames(ctx context.Context, refs []store.EventReference) (map[string]struct{}, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.Type == "person" && ref.PersonID != "" {
			ids = append(ids, ref.PersonID)
		}
	}
	persons, err := s.store.GetPersonsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(persons))
	for _, p := range persons {
		names[strings.ToLower(p.CanonicalName)] = struct{}{}
	}
	return names, nil
}

// RevisionView is one archived body revision, redacted for the viewer.
type RevisionView struct {
	Hash      string    `json:"hash"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Service) NoteHistory(ctx context.Context, session Session, eventID string, limit int) ([]store.CommitInfo, error) {
	if s.archive == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "revision history is not configured", nil)
	}
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.archive.History(eventID, limit)
}

// NoteRevision returns one archived revision. Revisions are stored raw, so
// the redaction pipeline runs again at read time with current preferences.
func (s *Service) NoteRevision(ctx context.Context, session Session, eventID, hash string) (RevisionView, error) {
	if s.archive == nil {
		return RevisionView{}, domainError(http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE", "revision history is not configured", nil)
	}
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return RevisionView{}, err
	}
	rev, err := s.archive.RevisionAt(eventID, hash)
	if err != nil {
		return RevisionView{}, err
	}

	view := RevisionView{Hash: hash, Title: rev.Title, Body: rev.Body}
	if session.UserID != event.AuthorID {
		rc, err := s.loadRenderContext(ctx, []store.Event{event})
		if err != nil {
			return RevisionView{}, err
		}
		view.Title = maskedBody(rev.Title, rc.refs[event.ID], rc.mentions[event.ID])
		view.Body = maskedBody(rev.Body, rc.refs[event.ID], rc.mentions[event.ID])
	}
	return view, nil
}

// LoadRenderedNote hands the exporter a fully redacted note. Neither the raw
// title nor the raw body reaches the rendering process regardless of who asked.
func (s *Service) LoadRenderedNote(ctx context.Context, eventID, version string) (export.Note, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return export.Note{}, export.ErrContentUnavailable
	}

	title, body := event.Title, event.Body
	updatedAt := event.UpdatedAt
	if version != "" && version != "latest" {
		if s.archive == nil {
			return export.Note{}, export.ErrContentUnavailable
		}
		rev, err := s.archive.RevisionAt(eventID, version)
		if err != nil {
			return export.Note{}, export.ErrContentUnavailable
		}
		title, body = rev.Title, rev.Body
	}

	rc, err := s.loadRenderContext(ctx, []store.Event{event})
	if err != nil {
		return export.Note{}, err
	}
	refs := rc.refs[event.ID]

	note := export.Note{
		ID:         event.ID,
		Title:      maskedBody(title, refs, rc.mentions[event.ID]),
		BodyHTML:   maskedBody(body, refs, rc.mentions[event.ID]),
		AuthorName: event.AuthorName,
		UpdatedAt:  updatedAt,
	}
	for _, ref := range redact.References(refs, redact.Options{IncludeRelationship: true}) {
		if ref.Type != redact.TypePerson {
			continue
		}
		note.References = append(note.References, export.NoteReference{
			Label: ref.DisplayLabel,
			Role:  ref.Role,
		})
	}
	return note, nil
}

func (s *Service) ExportNote(ctx context.Context, session Session, eventID, version, format string) (*export.Result, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or html", nil)
	}
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, export.Request{
		EventID: eventID,
		Version: version,
		Format:  parsed,
	})
}

// DeleteNote removes a note, its stored attachments and its search entry.
// The git archive keeps its history; revisions are only reachable through
// the note, so deleting the row makes them inert.
func (s *Service) DeleteNote(ctx context.Context, session Session, eventID string) error {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.AuthorID != session.UserID {
		return domainError(http.StatusForbidden, "FORBIDDEN", "only the author can delete a note", nil)
	}

	attachments, err := s.store.ListAttachmentsByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEvent(ctx, eventID); err != nil {
		return err
	}

	// Best effort: the rows are gone, stragglers in object storage or the
	// index are harmless and cheap to retry elsewhere.
	if s.media != nil {
		for _, att := range attachments {
			_ = s.media.Delete(ctx, att.ObjectKey)
		}
	}
	if s.search != nil {
		s.search.DeleteNote(eventID)
	}
	return nil
}

// DeleteAttachment removes one attachment row and its stored object.
func (s *Service) DeleteAttachment(ctx context.Context, session Session, attachmentID string) error {
	att, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	event, err := s.store.GetEvent(ctx, att.EventID)
	if err != nil {
		return err
	}
	if event.AuthorID != session.UserID {
		return domainError(http.StatusForbidden, "FORBIDDEN", "only the author can delete an attachment", nil)
	}
	if err := s.store.DeleteAttachment(ctx, attachmentID); err != nil {
		return err
	}
	if s.media != nil {
		_ = s.media.Delete(ctx, att.ObjectKey)
	}
	return nil
}

func (s *Service) UploadAttachment(ctx context.Context, session Session, eventID, filename, contentType string, body io.Reader, size int64) (AttachmentView, error) {
	if s.media == nil {
		return AttachmentView{}, domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "attachment storage is not configured", nil)
	}
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return AttachmentView{}, err
	}
	if event.AuthorID != session.UserID {
		return AttachmentView{}, domainError(http.StatusForbidden, "FORBIDDEN", "only the author can attach files", nil)
	}
	if strings.TrimSpace(filename) == "" {
		return AttachmentView{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "filename is required", nil)
	}

	attachmentID := util.NewID("att")
	key, err := s.media.Put(ctx, eventID, attachmentID, filename, contentType, body, size)
	if err != nil {
		return AttachmentView{}, err
	}

	item := store.Attachment{
		ID:          attachmentID,
		EventID:     eventID,
		FileName:    filename,
		ContentType: contentType,
		Size:        size,
		ObjectKey:   key,
		UploadedBy:  session.UserID,
		CreatedAt:   time.Now(),
	}
	if err := s.store.InsertAttachment(ctx, item); err != nil {
		return AttachmentView{}, err
	}
	return AttachmentView{
		ID:          item.ID,
		FileName:    item.FileName,
		ContentType: item.ContentType,
		Size:        item.Size,
		CreatedAt:   item.CreatedAt,
	}, nil
}

func (s *Service) AttachmentURL(ctx context.Context, session Session, attachmentID string) (string, error) {
	if s.media == nil {
		return "", domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "attachment storage is not configured", nil)
	}
	att, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return "", err
	}
	return s.media.PresignedGetURL(ctx, att.ObjectKey, 15*time.Minute)
}

func (s *Service) SearchNotes(ctx context.Context, session Session, q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "search is not configured", nil)
	}
	return s.search.Search(q), nil
}

// refreshEventRendering recomputes the note's redacted title and text and pushes them to
// the search index. Best effort; rendering errors never fail the write that
// triggered them.
func (s *Service) refreshEventRendering(ctx context.Context, eventID string) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return
	}
	rc, err := s.loadRenderContext(ctx, []store.Event{event})
	if err != nil {
		return
	}
	refs, mentions := rc.refs[event.ID], rc.mentions[event.ID]
	maskedTitle := maskedBody(event.Title, refs, mentions)
	masked := stripHTML(maskedBody(event.Body, refs, mentions))
	_ = s.store.UpdateEventMaskedText(ctx, eventID, maskedTitle, masked)

	if s.search != nil {
		s.search.IndexNote(search.NoteRecord{
			ID:         event.ID,
			Title:      maskedTitle,
			Body:       masked,
			AuthorID:   event.AuthorID,
			AuthorName: event.AuthorName,
		})
	}
}

// refreshPersonRendering re-renders every note that references the person.
// Preference changes ripple into stored masked text and the search index.
func (s *Service) refreshPersonRendering(ctx context.Context, personID string) {
	refs, err := s.store.ListReferencesByPerson(ctx, personID)
	if err != nil {
		return
	}
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.EventID]; ok {
			continue
		}
		seen[ref.EventID] = struct{}{}
		s.refreshEventRendering(ctx, ref.EventID)
	}
}

// stripHTML flattens markup to plain text for mention detection and search
// indexing. Tags become single spaces so adjacent words stay separated.
func stripHTML(html string) string {
	var b strings.Builder
	b.Grow(len(html))
	inTag := false
	for i := 0; i < len(html); i++ {
		switch {
		case html[i] == '<':
			inTag = true
		case html[i] == '>':
			if inTag {
				inTag = false
				b.WriteByte(' ')
			}
		case !inTag:
			b.WriteByte(html[i])
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
