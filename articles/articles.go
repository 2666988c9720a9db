// Package articles persists scraped articles and their title-fragment
// keyword index, and answers paginated filter/search queries over them.
package articles

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jcleroy/newsdex/index"
)

// Custom errors for article operations
var (
	ErrArticleNotFound = errors.New("article not found")
)

// Article is one persisted news article. URL is unique within a source;
// PublishedAt and Summary are optional.
type Article struct {
	ID          uuid.UUID  `json:"id"`
	SourceID    uuid.UUID  `json:"source_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Summary     *string    `json:"summary,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ArticleStore manages articles and their keyword index using SQLite.
type ArticleStore struct {
	db *sql.DB
}

// NewArticleStore creates a new article store with the given database
// path.
func NewArticleStore(dbPath string) (*ArticleStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &ArticleStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the articles and article_indexes tables if they
// don't exist.
func (s *ArticleStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		summary TEXT,
		published_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(source_id, url)
	);
	CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source_id);
	CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at DESC);

	CREATE TABLE IF NOT EXISTS article_indexes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		title_fragment TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_article_indexes_fragment ON article_indexes(title_fragment);
	CREATE INDEX IF NOT EXISTS idx_article_indexes_article ON article_indexes(article_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *ArticleStore) Close() error {
	return s.db.Close()
}

// FindByURL retrieves an article by its (source, url) identity. Returns
// ErrArticleNotFound when absent; callers use this to report duplicates
// across scrape runs.
func (s *ArticleStore) FindByURL(sourceID uuid.UUID, url string) (*Article, error) {
	query := selectArticleColumns + " WHERE source_id = ? AND url = ?"

	article, err := scanArticle(s.db.QueryRow(query, sourceID.String(), url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query article: %w", err)
	}

	return article, nil
}

// GetArticle retrieves an article by ID.
func (s *ArticleStore) GetArticle(id uuid.UUID) (*Article, error) {
	query := selectArticleColumns + " WHERE id = ?"

	article, err := scanArticle(s.db.QueryRow(query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query article: %w", err)
	}

	return article, nil
}

// Upsert stores an article keyed by (source, url). On first insert the
// title is tokenized and its fragments written to the keyword index in
// the same transaction; updates never regenerate index rows, so the
// index reflects the title the article was first created with.
func (s *ArticleStore) Upsert(article Article) (*Article, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	existing, err := scanArticle(tx.QueryRow(
		selectArticleColumns+" WHERE source_id = ? AND url = ?",
		article.SourceID.String(), article.URL,
	))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to query article: %w", err)
	}

	if existing != nil {
		existing.Title = article.Title
		existing.Summary = article.Summary
		if article.PublishedAt != nil {
			existing.PublishedAt = article.PublishedAt
		}
		existing.UpdatedAt = now

		_, err = tx.Exec(
			`UPDATE articles SET title = ?, summary = ?, published_at = ?, updated_at = ? WHERE id = ?`,
			existing.Title,
			nullableStringPtr(existing.Summary),
			nullableTime(existing.PublishedAt),
			formatTime(now),
			existing.ID.String(),
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to update article: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit: %w", err)
		}
		return existing, false, nil
	}

	created := article
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	_, err = tx.Exec(
		`INSERT INTO articles (id, source_id, title, url, summary, published_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID.String(),
		created.SourceID.String(),
		created.Title,
		created.URL,
		nullableStringPtr(created.Summary),
		nullableTime(created.PublishedAt),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert article: %w", err)
	}

	if err := appendFragmentsTx(tx, created.ID, index.Tokenize(created.Title), now); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}
	return &created, true, nil
}

// AppendFragments writes index rows for an article. The rows are
// deduplicated against nothing — callers pass an already-unique
// fragment set (the tokenizer guarantees this).
func (s *ArticleStore) AppendFragments(articleID uuid.UUID, fragments []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendFragmentsTx(tx, articleID, fragments, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

// FragmentsForArticle returns the indexed fragments of one article,
// ordered by insertion.
func (s *ArticleStore) FragmentsForArticle(articleID uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT title_fragment FROM article_indexes WHERE article_id = ? ORDER BY id",
		articleID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fragments: %w", err)
	}
	defer rows.Close()

	var fragments []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("failed to scan fragment: %w", err)
		}
		fragments = append(fragments, f)
	}
	return fragments, rows.Err()
}

// CountBySource returns the number of stored articles for one source.
func (s *ArticleStore) CountBySource(sourceID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM articles WHERE source_id = ?",
		sourceID.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

// DeleteArticle removes an article; its index rows go with it via the
// foreign-key cascade.
func (s *ArticleStore) DeleteArticle(id uuid.UUID) error {
	result, err := s.db.Exec("DELETE FROM articles WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrArticleNotFound
	}
	return nil
}

// appendFragmentsTx inserts index rows inside an open transaction so
// article creation and indexing commit as one unit.
func appendFragmentsTx(tx *sql.Tx, articleID uuid.UUID, fragments []string, now time.Time) error {
	if len(fragments) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(
		"INSERT INTO article_indexes (article_id, title_fragment, created_at) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare fragment insert: %w", err)
	}
	defer stmt.Close()

	for _, fragment := range fragments {
		if _, err := stmt.Exec(articleID.String(), fragment, formatTime(now)); err != nil {
			return fmt.Errorf("failed to insert fragment %q: %w", fragment, err)
		}
	}
	return nil
}

const selectArticleColumns = `
	SELECT id, source_id, title, url, summary, published_at, created_at, updated_at
	FROM articles`

// scanner abstracts *sql.Row and *sql.Rows for scanArticle.
type scanner interface {
	Scan(dest ...any) error
}

// scanArticle parses SQL row data into an Article struct.
func scanArticle(row scanner) (*Article, error) {
	var article Article
	var idStr, sourceIDStr, createdAtStr, updatedAtStr string
	var summary, publishedAtStr sql.NullString

	err := row.Scan(&idStr, &sourceIDStr, &article.Title, &article.URL,
		&summary, &publishedAtStr, &createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	article.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse article ID: %w", err)
	}
	article.SourceID, err = uuid.Parse(sourceIDStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source ID: %w", err)
	}

	if summary.Valid {
		article.Summary = &summary.String
	}
	if publishedAtStr.Valid {
		t := parseTime(publishedAtStr.String)
		article.PublishedAt = &t
	}
	article.CreatedAt = parseTime(createdAtStr)
	article.UpdatedAt = parseTime(updatedAtStr)

	return &article, nil
}

func nullableStringPtr(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// timeLayout is RFC 3339 with a fixed-width nanosecond fraction.
// Timestamps are stored as UTC strings in this layout so SQLite's
// string ordering matches time order even across mixed sub-second
// precision (RFC3339Nano strips trailing zeros, which breaks that).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Truncate(0).Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}

// placeholders builds "?, ?, ?" for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
