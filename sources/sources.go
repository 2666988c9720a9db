// Package sources manages scrape-source configurations: the sites to
// harvest and the per-field HTML selector definitions used to extract
// article data from their listing pages.
package sources

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Custom errors for source operations
var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrTagNotFound       = errors.New("tag config not found")
	ErrDuplicateURL      = errors.New("source with this URL already exists")
	ErrDuplicateField    = errors.New("source already has a tag config for this field")
	ErrInvalidSourceType = errors.New("source_type must be website, rss, or atom")
)

// Well-known field names. Any other non-empty name is accepted as a
// custom field.
const (
	FieldTitle           = "title"
	FieldLink            = "link"
	FieldPublicationDate = "publication_date"
	FieldSummary         = "summary"
)

// Source is a configured external site to harvest. TargetURL is both
// the page fetched and the base for resolving relative article links.
// ListSelector identifies the repeating element wrapping one article on
// the listing page; it is unused for feed sources.
type Source struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	TargetURL    string    `json:"target_url"`
	SourceType   string    `json:"source_type"` // "website", "rss", "atom"
	ListSelector string    `json:"list_selector,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FieldTagConfig maps one logical field of a source to an HTML
// selector. TagName and ClassName concatenate into the selector string;
// NextSibling marks fields whose value lives in the sibling element
// following the matched list item.
type FieldTagConfig struct {
	ID          int64     `json:"id"`
	SourceID    uuid.UUID `json:"source_id"`
	FieldName   string    `json:"field_name"`
	TagName     string    `json:"tag_name"`
	ClassName   string    `json:"class_name,omitempty"`
	NextSibling bool      `json:"next_sibling"`
	CreatedAt   time.Time `json:"created_at"`
}

// SourceStore manages sources and their tag configs using SQLite.
type SourceStore struct {
	db *sql.DB
}

// NewSourceStore creates a new source store with the given database
// path.
func NewSourceStore(dbPath string) (*SourceStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SourceStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the sources and source_tags tables if they don't
// exist.
func (s *SourceStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		target_url TEXT NOT NULL UNIQUE,
		source_type TEXT NOT NULL DEFAULT 'website',
		list_selector TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS source_tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		field_name TEXT NOT NULL,
		tag_name TEXT NOT NULL,
		class_name TEXT,
		next_sibling INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		UNIQUE(source_id, field_name)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SourceStore) Close() error {
	return s.db.Close()
}

// CreateSource creates a new source.
func (s *SourceStore) CreateSource(title, targetURL, sourceType, listSelector string) (*Source, error) {
	if err := ValidateSourceType(sourceType); err != nil {
		return nil, err
	}

	now := time.Now()
	source := &Source{
		ID:           uuid.New(),
		Title:        title,
		TargetURL:    targetURL,
		SourceType:   sourceType,
		ListSelector: listSelector,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `
		INSERT INTO sources (id, title, target_url, source_type, list_selector, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		source.ID.String(),
		source.Title,
		source.TargetURL,
		source.SourceType,
		nullableString(source.ListSelector),
		formatTime(source.CreatedAt),
		formatTime(source.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateURL
		}
		return nil, fmt.Errorf("failed to insert source: %w", err)
	}

	return source, nil
}

// GetSource retrieves a source by ID.
func (s *SourceStore) GetSource(sourceID uuid.UUID) (*Source, error) {
	query := `
		SELECT id, title, target_url, source_type, list_selector, created_at, updated_at
		FROM sources
		WHERE id = ?
	`

	source, err := scanSource(s.db.QueryRow(query, sourceID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}

	return source, nil
}

// ListSources returns all sources, newest first.
func (s *SourceStore) ListSources() ([]Source, error) {
	query := `
		SELECT id, title, target_url, source_type, list_selector, created_at, updated_at
		FROM sources
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *source)
	}

	return sources, rows.Err()
}

// SourceUpdate represents fields that can be updated on a source.
type SourceUpdate struct {
	Title        *string
	TargetURL    *string
	SourceType   *string
	ListSelector *string
}

// UpdateSource updates a source with the provided fields.
func (s *SourceStore) UpdateSource(sourceID uuid.UUID, update SourceUpdate) error {
	setClauses := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}

	if update.Title != nil {
		setClauses = append(setClauses, "title = ?")
		args = append(args, *update.Title)
	}
	if update.TargetURL != nil {
		setClauses = append(setClauses, "target_url = ?")
		args = append(args, *update.TargetURL)
	}
	if update.SourceType != nil {
		if err := ValidateSourceType(*update.SourceType); err != nil {
			return err
		}
		setClauses = append(setClauses, "source_type = ?")
		args = append(args, *update.SourceType)
	}
	if update.ListSelector != nil {
		setClauses = append(setClauses, "list_selector = ?")
		args = append(args, nullableString(*update.ListSelector))
	}

	args = append(args, sourceID.String())
	query := fmt.Sprintf("UPDATE sources SET %s WHERE id = ?", strings.Join(setClauses, ", "))

	result, err := s.db.Exec(query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateURL
		}
		return fmt.Errorf("failed to update source: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSourceNotFound
	}

	return nil
}

// DeleteSource deletes a source. Its tag configs are removed by the
// foreign-key cascade.
func (s *SourceStore) DeleteSource(sourceID uuid.UUID) error {
	result, err := s.db.Exec("DELETE FROM sources WHERE id = ?", sourceID.String())
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSourceNotFound
	}

	return nil
}

// CreateTagConfig adds a field selector definition to a source. At most
// one config may exist per field name per source.
func (s *SourceStore) CreateTagConfig(sourceID uuid.UUID, fieldName, tagName, className string, nextSibling bool) (*FieldTagConfig, error) {
	if fieldName == "" {
		return nil, errors.New("field_name must not be empty")
	}
	if tagName == "" && className == "" {
		return nil, errors.New("tag_name and class_name must not both be empty")
	}

	// Check the parent source first so the caller gets a clear error
	// instead of a bare foreign-key violation.
	if _, err := s.GetSource(sourceID); err != nil {
		return nil, err
	}

	tag := &FieldTagConfig{
		SourceID:    sourceID,
		FieldName:   fieldName,
		TagName:     tagName,
		ClassName:   className,
		NextSibling: nextSibling,
		CreatedAt:   time.Now(),
	}

	query := `
		INSERT INTO source_tags (source_id, field_name, tag_name, class_name, next_sibling, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query,
		tag.SourceID.String(),
		tag.FieldName,
		tag.TagName,
		nullableString(tag.ClassName),
		boolToInt(tag.NextSibling),
		formatTime(tag.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateField
		}
		return nil, fmt.Errorf("failed to insert tag config: %w", err)
	}

	tag.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get tag config id: %w", err)
	}

	return tag, nil
}

// TagsForSource returns all field selector definitions for a source.
// An empty result is not an error here; the scrape pipeline decides how
// to treat an unconfigured source.
func (s *SourceStore) TagsForSource(sourceID uuid.UUID) ([]FieldTagConfig, error) {
	query := `
		SELECT id, source_id, field_name, tag_name, class_name, next_sibling, created_at
		FROM source_tags
		WHERE source_id = ?
		ORDER BY id
	`

	rows, err := s.db.Query(query, sourceID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query tag configs: %w", err)
	}
	defer rows.Close()

	var tags []FieldTagConfig
	for rows.Next() {
		var tag FieldTagConfig
		var idStr, createdAtStr string
		var className sql.NullString
		var nextSibling int

		if err := rows.Scan(&tag.ID, &idStr, &tag.FieldName, &tag.TagName, &className, &nextSibling, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan tag config: %w", err)
		}

		tag.SourceID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse source ID: %w", err)
		}
		tag.ClassName = className.String
		tag.NextSibling = nextSibling != 0
		tag.CreatedAt = parseTime(createdAtStr)

		tags = append(tags, tag)
	}

	return tags, rows.Err()
}

// DeleteTagConfig removes one field selector definition.
func (s *SourceStore) DeleteTagConfig(tagID int64) error {
	result, err := s.db.Exec("DELETE FROM source_tags WHERE id = ?", tagID)
	if err != nil {
		return fmt.Errorf("failed to delete tag config: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTagNotFound
	}

	return nil
}

// ValidateSourceType validates that the source type is one of the
// supported kinds.
func ValidateSourceType(sourceType string) error {
	if sourceType != "website" && sourceType != "rss" && sourceType != "atom" {
		return ErrInvalidSourceType
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanSource.
type scanner interface {
	Scan(dest ...any) error
}

// scanSource parses SQL row data into a Source struct.
func scanSource(row scanner) (*Source, error) {
	var source Source
	var idStr, createdAtStr, updatedAtStr string
	var listSelector sql.NullString

	err := row.Scan(&idStr, &source.Title, &source.TargetURL, &source.SourceType,
		&listSelector, &createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	source.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source ID: %w", err)
	}
	source.ListSelector = listSelector.String
	source.CreatedAt = parseTime(createdAtStr)
	source.UpdatedAt = parseTime(updatedAtStr)

	return &source, nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeLayout is RFC 3339 with a fixed-width nanosecond fraction so the
// stored strings sort in time order regardless of sub-second precision.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Helper functions for time formatting
func formatTime(t time.Time) string {
	// Strip monotonic clock for consistent storage and comparisons
	return t.UTC().Truncate(0).Format(timeLayout)
}

func parseTime(s string) time.Time {
	// Try RFC3339Nano first, fall back to RFC3339 for compatibility
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	// Strip monotonic clock for consistent comparisons
	return t.Truncate(0)
}
