package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"mosaic/api/internal/store"
	"mosaic/api/internal/util"
	"mosaic/api/internal/visibility"
)

// UpdateIdentityInput is the POST /api/identity body. Which fields are
// required depends on Scope.
type UpdateIdentityInput struct {
	Scope         string `json:"scope"`
	ReferenceID   string `json:"referenceId"`
	Visibility    string `json:"visibility"`
	ContributorID string `json:"contributorId"`
	Name          string `json:"name"`
}

// IdentitySummary answers GET /api/identity: how the calling contributor's
// own identity currently renders across the platform.
func (s *Service) IdentitySummary(ctx context.Context, session Session) (map[string]any, error) {
	person, err := s.store.GetPersonClaimedBy(ctx, session.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{
			"person":            nil,
			"defaultVisibility": string(visibility.Pending),
			"defaultSource":     "unknown",
			"authorPreferences": []map[string]any{},
			"notes":             []map[string]any{},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	prefs, err := s.store.GetPreferences(ctx, person.ID)
	if err != nil {
		return nil, err
	}

	defaultVisibility, defaultSource := defaultVisibilityAndSource(person, prefs)

	authorRows, contributors, err := s.store.ListAuthorPreferences(ctx, person.ID)
	if err != nil {
		return nil, err
	}
	authorPrefs := make([]map[string]any, 0, len(authorRows))
	for _, row := range authorRows {
		entry := map[string]any{
			"contributorId": row.ContributorID,
			"visibility":    string(visibility.Normalize(row.Visibility)),
		}
		if contributor, ok := contributors[row.ContributorID]; ok {
			entry["name"] = contributor.DisplayName
			entry["relation"] = contributor.Relation
		}
		authorPrefs = append(authorPrefs, entry)
	}

	notes, err := s.identityNotes(ctx, person, prefs)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"person": map[string]any{
			"id":   person.ID,
			"name": person.CanonicalName,
		},
		"defaultVisibility": string(defaultVisibility),
		"defaultSource":     defaultSource,
		"authorPreferences": authorPrefs,
		"notes":             notes,
	}, nil
}

// defaultVisibilityAndSource picks the person's current default and names the
// layer it came from: an explicit preference row, the person record, or
// nothing at all.
func defaultVisibilityAndSource(person store.Person, prefs store.PreferenceSet) (visibility.Visibility, string) {
	if prefs.Global != nil {
		return visibility.Normalize(*prefs.Global), "preference"
	}
	if strings.TrimSpace(person.BaseVisibility) != "" {
		return visibility.Normalize(person.BaseVisibility), "person"
	}
	return visibility.Pending, "unknown"
}

// identityNotes lists every note referencing this person, with both the
// effective visibility and the baseline the note override is checked against.
// One snapshot of preferences covers all rows.
func (s *Service) identityNotes(ctx context.Context, person store.Person, prefs store.PreferenceSet) ([]map[string]any, error) {
	refs, err := s.store.ListReferencesByPerson(ctx, person.ID)
	if err != nil {
		return nil, err
	}

	eventIDs := make([]string, 0, len(refs))
	for _, ref := range refs {
		eventIDs = append(eventIDs, ref.EventID)
	}
	events, err := s.store.GetEventsByIDs(ctx, eventIDs)
	if err != nil {
		return nil, err
	}

	// Titles shown here belong to other authors' notes, so they get the
	// same redaction as any non-author view.
	eventList := make([]store.Event, 0, len(events))
	for _, event := range events {
		eventList = append(eventList, event)
	}
	rc, err := s.loadRenderContext(ctx, eventList)
	if err != nil {
		return nil, err
	}

	base := visibility.Normalize(person.BaseVisibility)
	notes := make([]map[string]any, 0, len(refs))
	for _, ref := range refs {
		event, ok := events[ref.EventID]
		if !ok {
			continue
		}
		authorPref := contributorPref(prefs, event.AuthorID)
		baseline := visibility.Baseline(authorPref, globalPref(prefs), base)
		override := overridePtr(ref.VisibilityOverride)
		effective := visibility.Resolve(override, authorPref, globalPref(prefs), base)

		title := event.Title
		if event.AuthorID != person.ClaimedBy {
			title = maskedBody(title, rc.refs[event.ID], rc.mentions[event.ID])
		}

		entry := map[string]any{
			"referenceId":         ref.ID,
			"visibilityOverride":  nilIfEmpty(ref.VisibilityOverride),
			"effectiveVisibility": string(effective),
			"baseVisibility":      string(baseline),
			"event": map[string]any{
				"id":         event.ID,
				"title":      title,
				"authorName": event.AuthorName,
				"createdAt":  event.CreatedAt,
			},
		}
		notes = append(notes, entry)
	}
	return notes, nil
}

// UpdateIdentity applies one POST /api/identity action.
func (s *Service) UpdateIdentity(ctx context.Context, session Session, input UpdateIdentityInput) (map[string]any, error) {
	switch strings.TrimSpace(input.Scope) {
	case "note":
		return s.setNoteOverride(ctx, session, input)
	case "default":
		return s.setDefaultPreference(ctx, session, input)
	case "author":
		return s.setAuthorPreference(ctx, session, input)
	case "claim":
		return s.claimIdentity(ctx, session, input)
	case "display_name":
		return s.setDisplayName(ctx, session, input)
	default:
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "scope must be one of note, default, author, claim, display_name", nil)
	}
}

// setNoteOverride changes one reference's note-level override. The candidate
// must not be less private than the resolved baseline.
func (s *Service) setNoteOverride(ctx context.Context, session Session, input UpdateIdentityInput) (map[string]any, error) {
	if strings.TrimSpace(input.ReferenceID) == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "referenceId is required", nil)
	}
	candidate, err := visibility.Parse(input.Visibility)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	}

	person, err := s.requireClaimedPerson(ctx, session)
	if err != nil {
		return nil, err
	}

	ref, err := s.store.GetReference(ctx, input.ReferenceID)
	if err != nil {
		return nil, err
	}
	if ref.Type != "person" || ref.PersonID != person.ID {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Reference not found", nil)
	}

	event, err := s.store.GetEvent(ctx, ref.EventID)
	if err != nil {
		return nil, err
	}
	prefs, err := s.store.GetPreferences(ctx, person.ID)
	if err != nil {
		return nil, err
	}

	baseline := visibility.Baseline(
		contributorPref(prefs, event.AuthorID),
		globalPref(prefs),
		visibility.Normalize(person.BaseVisibility),
	)
	if !visibility.CanSetNoteOverride(candidate, baseline) {
		return nil, domainError(http.StatusBadRequest, "INVARIANT_VIOLATION",
			"visibility cannot be less private than the resolved baseline",
			map[string]any{"baseline": string(baseline)})
	}

	if err := s.store.UpdateReferenceOverride(ctx, ref.ID, string(candidate)); err != nil {
		return nil, err
	}

	s.refreshEventRendering(ctx, ref.EventID)

	effective := visibility.Resolve(&candidate,
		contributorPref(prefs, event.AuthorID),
		globalPref(prefs),
		visibility.Normalize(person.BaseVisibility),
	)
	return map[string]any{
		"ok":                  true,
		"referenceId":         ref.ID,
		"visibilityOverride":  string(candidate),
		"effectiveVisibility": string(effective),
	}, nil
}

// setDefaultPreference upserts the person's global default; an empty
// visibility clears the row so the person record applies again.
func (s *Service) setDefaultPreference(ctx context.Context, session Session, input UpdateIdentityInput) (map[string]any, error) {
	person, err := s.requireClaimedPerson(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.writePreference(ctx, person, "", input.Visibility)
}

// setAuthorPreference upserts the person's per-author preference; an empty
// visibility clears the row.
func (s *Service) setAuthorPreference(ctx context.Context, session Session, input UpdateIdentityInput) (map[string]any, error) {
	if strings.TrimSpace(input.ContributorID) == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "contributorId is required", nil)
	}
	person, err := s.requireClaimedPerson(ctx, session)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUserByID(ctx, input.ContributorID); err != nil {
		return nil, err
	}
	return s.writePreference(ctx, person, input.ContributorID, input.Visibility)
}

func (s *Service) writePreference(ctx context.Context, person store.Person, contributorID, raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		if err := s.store.DeletePreference(ctx, person.ID, contributorID); err != nil {
			return nil, err
		}
		s.refreshPersonRendering(ctx, person.ID)
		return map[string]any{"ok": true, "cleared": true}, nil
	}

	vis, err := visibility.Parse(raw)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	}
	if err := s.store.UpsertPreference(ctx, person.ID, contributorID, string(vis)); err != nil {
		return nil, err
	}
	s.refreshPersonRendering(ctx, person.ID)
	return map[string]any{"ok": true, "visibility": string(vis)}, nil
}

// claimIdentity connects the calling contributor to a Person record, matching
// case-insensitively against canonical names and aliases before creating a
// fresh record.
func (s *Service) claimIdentity(ctx context.Context, session Session, input UpdateIdentityInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = session.UserName
	}
	if name == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "name is required", nil)
	}

	if existing, err := s.store.GetPersonClaimedBy(ctx, session.UserID); err == nil {
		return map[string]any{
			"ok":     true,
			"person": map[string]any{"id": existing.ID, "name": existing.CanonicalName},
		}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	person, err := s.store.FindPersonByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		person = store.Person{
			ID:             util.NewID("per"),
			CanonicalName:  name,
			BaseVisibility: string(visibility.Pending),
			CreatedBy:      session.UserID,
		}
		if err := s.store.InsertPerson(ctx, person); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if err := s.store.ClaimPerson(ctx, person.ID, session.UserID); err != nil {
		return nil, err
	}

	return map[string]any{
		"ok":     true,
		"person": map[string]any{"id": person.ID, "name": person.CanonicalName},
	}, nil
}

// setDisplayName renames the claimed person. The old canonical name is kept
// as an alias so the masker still scrubs it from note bodies.
func (s *Service) setDisplayName(ctx context.Context, session Session, input UpdateIdentityInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "name is required", nil)
	}
	person, err := s.requireClaimedPerson(ctx, session)
	if err != nil {
		return nil, err
	}

	if person.CanonicalName != "" && !strings.EqualFold(person.CanonicalName, name) {
		if err := s.store.InsertAlias(ctx, person.ID, person.CanonicalName); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdatePersonName(ctx, person.ID, name); err != nil {
		return nil, err
	}
	s.refreshPersonRendering(ctx, person.ID)

	return map[string]any{
		"ok":     true,
		"person": map[string]any{"id": person.ID, "name": name},
	}, nil
}

// SetPersonVisibility records a base visibility for an unclaimed person, on
// their behalf. Reserved for trusted contributors; once the person claims
// their identity they manage visibility themselves.
func (s *Service) SetPersonVisibility(ctx context.Context, session Session, personID, raw string) (map[string]any, error) {
	if !session.Trusted {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "only trusted contributors can set visibility for others", nil)
	}
	vis, err := visibility.Parse(raw)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "unknown visibility value", nil)
	}
	person, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	if person.ClaimedBy != "" {
		return nil, domainError(http.StatusConflict, "PERSON_CLAIMED", "this person manages their own visibility", nil)
	}

	if err := s.store.UpdatePersonBaseVisibility(ctx, person.ID, string(vis)); err != nil {
		return nil, err
	}
	s.refreshPersonRendering(ctx, person.ID)

	return map[string]any{
		"ok":             true,
		"personId":       person.ID,
		"baseVisibility": string(vis),
	}, nil
}

func (s *Service) requireClaimedPerson(ctx context.Context, session Session) (store.Person, error) {
	person, err := s.store.GetPersonClaimedBy(ctx, session.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Person{}, domainError(http.StatusBadRequest, "NO_IDENTITY_CLAIM", "claim your identity first", nil)
	}
	if err != nil {
		return store.Person{}, err
	}
	return person, nil
}

func contributorPref(prefs store.PreferenceSet, contributorID string) *visibility.Visibility {
	raw, ok := prefs.ByContributor[contributorID]
	if !ok {
		return nil
	}
	vis := visibility.Normalize(raw)
	return &vis
}

func globalPref(prefs store.PreferenceSet) *visibility.Visibility {
	if prefs.Global == nil {
		return nil
	}
	vis := visibility.Normalize(*prefs.Global)
	return &vis
}

func overridePtr(raw string) *visibility.Visibility {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	vis := visibility.Normalize(raw)
	return &vis
}

func nilIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
