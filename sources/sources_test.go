package sources

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a test source store
func createTestSourceStore(t *testing.T) *SourceStore {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSourceStore(dbPath)
	require.NoError(t, err, "should create source store")
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestSource(t *testing.T, store *SourceStore) *Source {
	source, err := store.CreateSource("Hacker News", "https://news.ycombinator.com", "website", ".athing")
	require.NoError(t, err)
	return source
}

func TestNewSourceStore_CreatesDatabase(t *testing.T) {
	store := createTestSourceStore(t)

	all, err := store.ListSources()
	require.NoError(t, err, "should be able to query database")
	assert.Empty(t, all, "new database should have no sources")
}

func TestCreateSource(t *testing.T) {
	store := createTestSourceStore(t)

	source, err := store.CreateSource("Example", "https://example.com/news", "website", "article.item")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, source.ID)
	assert.Equal(t, "Example", source.Title)
	assert.Equal(t, "https://example.com/news", source.TargetURL)
	assert.Equal(t, "website", source.SourceType)
	assert.Equal(t, "article.item", source.ListSelector)
	assert.False(t, source.CreatedAt.IsZero())
}

func TestCreateSource_InvalidType(t *testing.T) {
	store := createTestSourceStore(t)

	_, err := store.CreateSource("Example", "https://example.com", "carrier-pigeon", "")
	assert.ErrorIs(t, err, ErrInvalidSourceType)
}

func TestCreateSource_DuplicateURL(t *testing.T) {
	store := createTestSourceStore(t)
	createTestSource(t, store)

	_, err := store.CreateSource("Other Title", "https://news.ycombinator.com", "website", ".other")
	assert.ErrorIs(t, err, ErrDuplicateURL)
}

func TestGetSource(t *testing.T) {
	store := createTestSourceStore(t)
	created := createTestSource(t, store)

	got, err := store.GetSource(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, created.ListSelector, got.ListSelector)
}

func TestGetSource_NotFound(t *testing.T) {
	store := createTestSourceStore(t)

	_, err := store.GetSource(uuid.New())
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestListSources(t *testing.T) {
	store := createTestSourceStore(t)
	createTestSource(t, store)
	_, err := store.CreateSource("Lobsters", "https://lobste.rs", "website", ".story")
	require.NoError(t, err)

	all, err := store.ListSources()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateSource(t *testing.T) {
	store := createTestSourceStore(t)
	created := createTestSource(t, store)

	newTitle := "HN Front Page"
	newSelector := "tr.athing"
	err := store.UpdateSource(created.ID, SourceUpdate{
		Title:        &newTitle,
		ListSelector: &newSelector,
	})
	require.NoError(t, err)

	got, err := store.GetSource(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "HN Front Page", got.Title)
	assert.Equal(t, "tr.athing", got.ListSelector)
	assert.Equal(t, created.TargetURL, got.TargetURL, "unset fields should be untouched")
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt) || got.UpdatedAt.Equal(created.UpdatedAt))
}

func TestUpdateSource_NotFound(t *testing.T) {
	store := createTestSourceStore(t)

	title := "nope"
	err := store.UpdateSource(uuid.New(), SourceUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestDeleteSource(t *testing.T) {
	store := createTestSourceStore(t)
	created := createTestSource(t, store)

	require.NoError(t, store.DeleteSource(created.ID))

	_, err := store.GetSource(created.ID)
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestDeleteSource_NotFound(t *testing.T) {
	store := createTestSourceStore(t)

	err := store.DeleteSource(uuid.New())
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestCreateTagConfig(t *testing.T) {
	store := createTestSourceStore(t)
	source := createTestSource(t, store)

	tag, err := store.CreateTagConfig(source.ID, FieldTitle, "span", "titleline", false)
	require.NoError(t, err)

	assert.NotZero(t, tag.ID)
	assert.Equal(t, source.ID, tag.SourceID)
	assert.Equal(t, FieldTitle, tag.FieldName)
	assert.Equal(t, "span", tag.TagName)
	assert.Equal(t, "titleline", tag.ClassName)
	assert.False(t, tag.NextSibling)
}

func TestCreateTagConfig_DuplicateField(t *testing.T) {
	store := createTestSourceStore(t)
	source := createTestSource(t, store)

	_, err := store.CreateTagConfig(source.ID, FieldTitle, "span", "titleline", false)
	require.NoError(t, err)

	_, err = store.CreateTagConfig(source.ID, FieldTitle, "h2", "", false)
	assert.ErrorIs(t, err, ErrDuplicateField, "one config per field per source")
}

func TestCreateTagConfig_SourceNotFound(t *testing.T) {
	store := createTestSourceStore(t)

	_, err := store.CreateTagConfig(uuid.New(), FieldTitle, "span", "", false)
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestTagsForSource(t *testing.T) {
	store := createTestSourceStore(t)
	source := createTestSource(t, store)

	_, err := store.CreateTagConfig(source.ID, FieldTitle, "span", "titleline", false)
	require.NoError(t, err)
	_, err = store.CreateTagConfig(source.ID, FieldPublicationDate, "span", "age", true)
	require.NoError(t, err)

	tags, err := store.TagsForSource(source.ID)
	require.NoError(t, err)
	require.Len(t, tags, 2)

	byField := make(map[string]FieldTagConfig)
	for _, tag := range tags {
		byField[tag.FieldName] = tag
	}
	assert.True(t, byField[FieldPublicationDate].NextSibling)
	assert.False(t, byField[FieldTitle].NextSibling)
}

func TestDeleteSource_CascadesTags(t *testing.T) {
	store := createTestSourceStore(t)
	source := createTestSource(t, store)

	_, err := store.CreateTagConfig(source.ID, FieldTitle, "span", "", false)
	require.NoError(t, err)

	require.NoError(t, store.DeleteSource(source.ID))

	tags, err := store.TagsForSource(source.ID)
	require.NoError(t, err)
	assert.Empty(t, tags, "tag configs should be deleted with the source")
}

func TestDeleteTagConfig(t *testing.T) {
	store := createTestSourceStore(t)
	source := createTestSource(t, store)

	tag, err := store.CreateTagConfig(source.ID, FieldSummary, "p", "summary", false)
	require.NoError(t, err)

	require.NoError(t, store.DeleteTagConfig(tag.ID))

	tags, err := store.TagsForSource(source.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestDeleteTagConfig_NotFound(t *testing.T) {
	store := createTestSourceStore(t)

	err := store.DeleteTagConfig(99999)
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestValidateSourceType(t *testing.T) {
	for _, valid := range []string{"website", "rss", "atom"} {
		assert.NoError(t, ValidateSourceType(valid), valid)
	}
	assert.ErrorIs(t, ValidateSourceType("newsletter"), ErrInvalidSourceType)
	assert.ErrorIs(t, ValidateSourceType(""), ErrInvalidSourceType)
}
