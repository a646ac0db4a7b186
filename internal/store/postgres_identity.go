package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ── Persons ──

func (s *PostgresStore) InsertPerson(ctx context.Context, item Person) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO persons (id, canonical_name, base_visibility, created_by, claimed_by)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.CanonicalName, item.BaseVisibility, item.CreatedBy, item.ClaimedBy)
	if err != nil {
		return fmt.Errorf("insert person: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, personID string) (Person, error) {
	var item Person
	err := s.db.QueryRowContext(ctx, `
		SELECT id, canonical_name, base_visibility, created_by, claimed_by, created_at, updated_at
		FROM persons WHERE id=$1
	`, personID).Scan(&item.ID, &item.CanonicalName, &item.BaseVisibility, &item.CreatedBy, &item.ClaimedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Person{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetPersonClaimedBy(ctx context.Context, contributorID string) (Person, error) {
	var item Person
	err := s.db.QueryRowContext(ctx, `
		SELECT id, canonical_name, base_visibility, created_by, claimed_by, created_at, updated_at
		FROM persons WHERE claimed_by=$1
	`, contributorID).Scan(&item.ID, &item.CanonicalName, &item.BaseVisibility, &item.CreatedBy, &item.ClaimedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Person{}, err
	}
	return item, nil
}

// FindPersonByName matches a canonical name or alias case-insensitively.
func (s *PostgresStore) FindPersonByName(ctx context.Context, name string) (Person, error) {
	var item Person
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.canonical_name, p.base_visibility, p.created_by, p.claimed_by, p.created_at, p.updated_at
		FROM persons p
		WHERE LOWER(p.canonical_name) = LOWER($1)
			OR EXISTS (
				SELECT 1 FROM person_aliases a
				WHERE a.person_id = p.id AND LOWER(a.alias) = LOWER($1)
			)
		LIMIT 1
	`, name).Scan(&item.ID, &item.CanonicalName, &item.BaseVisibility, &item.CreatedBy, &item.ClaimedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Person{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdatePersonName(ctx context.Context, personID, canonicalName string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE persons SET canonical_name=$2, updated_at=NOW() WHERE id=$1
	`, personID, canonicalName)
	if err != nil {
		return fmt.Errorf("update person name: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) UpdatePersonBaseVisibility(ctx context.Context, personID, baseVisibility string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE persons SET base_visibility=$2, updated_at=NOW() WHERE id=$1
	`, personID, baseVisibility)
	if err != nil {
		return fmt.Errorf("update person visibility: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresStore) ClaimPerson(ctx context.Context, personID, contributorID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE persons SET claimed_by=$2, updated_at=NOW()
		WHERE id=$1 AND (claimed_by='' OR claimed_by=$2)
	`, personID, contributorID)
	if err != nil {
		return fmt.Errorf("claim person: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ── Aliases ──

func (s *PostgresStore) InsertAlias(ctx context.Context, personID, alias string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO person_aliases (person_id, alias)
		VALUES ($1, $2)
		ON CONFLICT (person_id, alias) DO NOTHING
	`, personID, alias)
	if err != nil {
		return fmt.Errorf("insert alias: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAliasesForPeople(ctx context.Context, personIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(personIDs))
	if len(personIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(personIDs))
	for _, id := range personIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT person_id, alias FROM person_aliases
		WHERE person_id IN (%s)
		ORDER BY person_id, alias
	`, placeholders(1, len(personIDs)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var personID, alias string
		if err := rows.Scan(&personID, &alias); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		out[personID] = append(out[personID], alias)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aliases: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetPersonsByIDs(ctx context.Context, personIDs []string) (map[string]Person, error) {
	out := make(map[string]Person, len(personIDs))
	if len(personIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(personIDs))
	for _, id := range personIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT id, canonical_name, base_visibility, created_by, claimed_by, created_at, updated_at
		FROM persons WHERE id IN (%s)
	`, placeholders(1, len(personIDs)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item Person
		if err := rows.Scan(&item.ID, &item.CanonicalName, &item.BaseVisibility, &item.CreatedBy, &item.ClaimedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return out, nil
}

// ── Event references ──

func (s *PostgresStore) InsertReference(ctx context.Context, item EventReference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_references (id, event_id, type, person_id, url, role, relationship, visibility_override, added_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.EventID, item.Type, item.PersonID, item.URL, item.Role, item.Relationship, item.VisibilityOverride, item.AddedBy)
	if err != nil {
		return fmt.Errorf("insert reference: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReference(ctx context.Context, referenceID string) (EventReference, error) {
	var item EventReference
	err := s.db.QueryRowContext(ctx, `
		SELECT id, event_id, type, person_id, url, role, relationship, visibility_override, added_by, created_at
		FROM event_references WHERE id=$1
	`, referenceID).Scan(&item.ID, &item.EventID, &item.Type, &item.PersonID, &item.URL, &item.Role, &item.Relationship, &item.VisibilityOverride, &item.AddedBy, &item.CreatedAt)
	if err != nil {
		return EventReference{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListReferencesByEvents(ctx context.Context, eventIDs []string) (map[string][]EventReference, error) {
	out := make(map[string][]EventReference, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(eventIDs))
	for _, id := range eventIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT id, event_id, type, person_id, url, role, relationship, visibility_override, added_by, created_at
		FROM event_references
		WHERE event_id IN (%s)
		ORDER BY created_at
	`, placeholders(1, len(eventIDs)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item EventReference
		if err := rows.Scan(&item.ID, &item.EventID, &item.Type, &item.PersonID, &item.URL, &item.Role, &item.Relationship, &item.VisibilityOverride, &item.AddedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		out[item.EventID] = append(out[item.EventID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListReferencesByPerson(ctx context.Context, personID string) ([]EventReference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, type, person_id, url, role, relationship, visibility_override, added_by, created_at
		FROM event_references
		WHERE person_id=$1
		ORDER BY created_at DESC
	`, personID)
	if err != nil {
		return nil, fmt.Errorf("list person references: %w", err)
	}
	defer rows.Close()

	items := make([]EventReference, 0)
	for rows.Next() {
		var item EventReference
		if err := rows.Scan(&item.ID, &item.EventID, &item.Type, &item.PersonID, &item.URL, &item.Role, &item.Relationship, &item.VisibilityOverride, &item.AddedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateReferenceOverride(ctx context.Context, referenceID, visibilityOverride string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE event_references SET visibility_override=$2 WHERE id=$1
	`, referenceID, visibilityOverride)
	if err != nil {
		return fmt.Errorf("update reference override: %w", err)
	}
	return requireRow(result)
}

// ── Visibility preferences ──

// UpsertPreference writes one preference row atomically on the unique
// (person_id, contributor_id) key. contributorID '' is the global default.
func (s *PostgresStore) UpsertPreference(ctx context.Context, personID, contributorID, vis string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visibility_preferences (person_id, contributor_id, visibility)
		VALUES ($1, $2, $3)
		ON CONFLICT (person_id, contributor_id) DO UPDATE SET visibility=EXCLUDED.visibility, updated_at=NOW()
	`, personID, contributorID, vis)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePreference(ctx context.Context, personID, contributorID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM visibility_preferences WHERE person_id=$1 AND contributor_id=$2
	`, personID, contributorID)
	if err != nil {
		return fmt.Errorf("delete preference: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPreferences(ctx context.Context, personID string) (PreferenceSet, error) {
	sets, err := s.GetPreferencesForPeople(ctx, []string{personID})
	if err != nil {
		return PreferenceSet{}, err
	}
	set, ok := sets[personID]
	if !ok {
		return PreferenceSet{ByContributor: map[string]string{}}, nil
	}
	return set, nil
}

// GetPreferencesForPeople loads every preference row for a set of persons in
// one query. Feed rendering calls this once per request so every reference in
// a response resolves against the same snapshot.
func (s *PostgresStore) GetPreferencesForPeople(ctx context.Context, personIDs []string) (map[string]PreferenceSet, error) {
	out := make(map[string]PreferenceSet, len(personIDs))
	if len(personIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(personIDs))
	for _, id := range personIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT person_id, contributor_id, visibility
		FROM visibility_preferences
		WHERE person_id IN (%s)
	`, placeholders(1, len(personIDs)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var personID, contributorID, vis string
		if err := rows.Scan(&personID, &contributorID, &vis); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		set, ok := out[personID]
		if !ok {
			set = PreferenceSet{ByContributor: map[string]string{}}
		}
		if contributorID == "" {
			value := vis
			set.Global = &value
		} else {
			set.ByContributor[contributorID] = vis
		}
		out[personID] = set
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate preferences: %w", err)
	}
	return out, nil
}

// ListAuthorPreferences returns the per-author rows for one person, joined
// with the contributor's name and relation for the settings page.
func (s *PostgresStore) ListAuthorPreferences(ctx context.Context, personID string) ([]VisibilityPreference, map[string]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vp.person_id, vp.contributor_id, vp.visibility, vp.updated_at,
			u.id, u.display_name, u.relation
		FROM visibility_preferences vp
		JOIN users u ON u.id = vp.contributor_id
		WHERE vp.person_id=$1 AND vp.contributor_id <> ''
		ORDER BY u.display_name
	`, personID)
	if err != nil {
		return nil, nil, fmt.Errorf("list author preferences: %w", err)
	}
	defer rows.Close()

	prefs := make([]VisibilityPreference, 0)
	users := make(map[string]User)
	for rows.Next() {
		var pref VisibilityPreference
		var user User
		if err := rows.Scan(&pref.PersonID, &pref.ContributorID, &pref.Visibility, &pref.UpdatedAt, &user.ID, &user.DisplayName, &user.Relation); err != nil {
			return nil, nil, fmt.Errorf("scan author preference: %w", err)
		}
		prefs = append(prefs, pref)
		users[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate author preferences: %w", err)
	}
	return prefs, users, nil
}

// ── Mentions ──

func (s *PostgresStore) InsertMention(ctx context.Context, item Mention) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mentions (id, event_id, mention_text, visibility, display_label)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, mention_text) DO NOTHING
	`, item.ID, item.EventID, item.MentionText, item.Visibility, item.DisplayLabel)
	if err != nil {
		return fmt.Errorf("insert mention: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMentionsByEvents(ctx context.Context, eventIDs []string) (map[string][]Mention, error) {
	out := make(map[string][]Mention, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(eventIDs))
	for _, id := range eventIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT id, event_id, mention_text, visibility, display_label, created_at
		FROM mentions
		WHERE event_id IN (%s)
		ORDER BY created_at
	`, placeholders(1, len(eventIDs)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item Mention
		if err := rows.Scan(&item.ID, &item.EventID, &item.MentionText, &item.Visibility, &item.DisplayLabel, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		out[item.EventID] = append(out[item.EventID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentions: %w", err)
	}
	return out, nil
}
