package articles

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jcleroy/newsdex/index"
)

// Pagination bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter narrows a paginated article query. Title is a keyword search
// resolved through the fragment index; RecentDays, when positive,
// expresses "published within the last N days" and takes precedence
// over PublishedAfter/PublishedBefore.
type Filter struct {
	SourceID        *uuid.UUID
	Title           string
	PublishedAfter  *time.Time
	PublishedBefore *time.Time
	RecentDays      int
	SortField       string // "publicationDate", "createdAt", "title"
	SortOrder       string // "ASC", "DESC"
}

// PageResult is one page of a filtered article query.
type PageResult struct {
	Items       []Article `json:"items"`
	Total       int       `json:"total"`
	Page        int       `json:"page"`
	PageSize    int       `json:"page_size"`
	TotalPages  int       `json:"total_pages"`
	HasNext     bool      `json:"has_next"`
	HasPrevious bool      `json:"has_previous"`
}

// sortColumns whitelists sortable fields and maps them to columns.
var sortColumns = map[string]string{
	"publicationDate": "published_at",
	"createdAt":       "created_at",
	"title":           "title",
}

// QueryPaginated returns one page of articles matching the filter.
// When a title keyword is present it is tokenized with the same rule
// used at index time and resolved to the set of article ids whose index
// contains every token; a keyword that matches nothing short-circuits
// to an empty page without touching the articles table.
func (s *ArticleStore) QueryPaginated(page, pageSize int, filter Filter) (*PageResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	where, args := buildWhereClause(filter)

	// Keyword search joins through the fragment index first.
	if tokens := index.Tokenize(filter.Title); len(tokens) > 0 {
		ids, err := s.resolveKeywordIDs(tokens)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return &PageResult{
				Items:      []Article{},
				Total:      0,
				Page:       page,
				PageSize:   pageSize,
				TotalPages: 0,
			}, nil
		}
		where = append(where, fmt.Sprintf("id IN (%s)", placeholders(len(ids))))
		for _, id := range ids {
			args = append(args, id)
		}
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM articles"+whereSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}

	result := &PageResult{
		Items:      []Article{},
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	result.HasNext = page < result.TotalPages
	result.HasPrevious = page > 1

	if total == 0 {
		return result, nil
	}

	offset := (page - 1) * pageSize
	query := selectArticleColumns + whereSQL + buildOrderClause(filter) + " LIMIT ? OFFSET ?"
	args = append(args, pageSize, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		result.Items = append(result.Items, *article)
	}

	return result, rows.Err()
}

// resolveKeywordIDs returns the ids of articles whose index contains
// every one of the given fragments (AND semantics).
func (s *ArticleStore) resolveKeywordIDs(tokens []string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT article_id
		FROM article_indexes
		WHERE title_fragment IN (%s)
		GROUP BY article_id
		HAVING COUNT(DISTINCT title_fragment) = ?`,
		placeholders(len(tokens)))

	args := make([]any, 0, len(tokens)+1)
	for _, token := range tokens {
		args = append(args, token)
	}
	args = append(args, len(tokens))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve keyword: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan article id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// buildWhereClause assembles the non-keyword filter predicates.
func buildWhereClause(filter Filter) ([]string, []any) {
	var where []string
	var args []any

	if filter.SourceID != nil {
		where = append(where, "source_id = ?")
		args = append(args, filter.SourceID.String())
	}

	if filter.RecentDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -filter.RecentDays)
		where = append(where, "published_at >= ?")
		args = append(args, formatTime(cutoff))
	} else {
		if filter.PublishedAfter != nil {
			where = append(where, "published_at >= ?")
			args = append(args, formatTime(*filter.PublishedAfter))
		}
		if filter.PublishedBefore != nil {
			where = append(where, "published_at <= ?")
			args = append(args, formatTime(*filter.PublishedBefore))
		}
	}

	return where, args
}

// buildOrderClause maps the filter's sort spec onto a whitelisted ORDER
// BY clause; anything unrecognized falls back to publication date
// descending.
func buildOrderClause(filter Filter) string {
	column, ok := sortColumns[filter.SortField]
	if !ok {
		column = "published_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	return fmt.Sprintf(" ORDER BY %s %s", column, order)
}
