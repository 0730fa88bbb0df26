package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweist/docket-watcher/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, models.ArchiveItem{
		Title:      "Session decision: 123/2025",
		CaseNumber: "123/2025",
		Type:       models.ArchiveTypeContract,
		Content:    "Outcome: adjourned",
		Tags:       []string{"court session", "auto-transfer"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Title, got.Title)
	assert.Equal(t, models.ArchiveTypeContract, got.Type)
	assert.Equal(t, []string{"court session", "auto-transfer"}, got.Tags)
	assert.Equal(t, saved.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	require.NoError(t, s.Delete(ctx, saved.ID))
	_, err = s.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, s.Delete(ctx, saved.ID), ErrItemNotFound)
}

func TestStore_ListAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, item := range []models.ArchiveItem{
		{Title: "Lease contract", CaseNumber: "10/2025", ClientName: "Ahmed", Type: models.ArchiveTypeContract},
		{Title: "Hearing recording", CaseNumber: "11/2025", ClientName: "Sara", Type: models.ArchiveTypeAudio},
		{Title: "Scanned judgment", ClientName: "Omar", Type: models.ArchiveTypeOCR},
	} {
		item.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		_, err := s.Save(ctx, item)
		require.NoError(t, err)
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Scanned judgment", all[0].Title, "newest first")

	found, err := s.Search(ctx, "sara")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Hearing recording", found[0].Title)

	found, err = s.Search(ctx, "10/2025")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Lease contract", found[0].Title)

	found, err = s.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

func TestStore_Folders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	items := []models.ArchiveItem{
		{Title: "a", CaseNumber: "1/2025", ClientName: "Ahmed", CreatedAt: base},
		{Title: "b", CaseNumber: "2/2025", CreatedAt: base.Add(time.Hour)},
		{Title: "c", CaseNumber: "1/2025", CreatedAt: base.Add(2 * time.Hour)},
		{Title: "loose", CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, item := range items {
		item.Type = models.ArchiveTypeOCR
		_, err := s.Save(ctx, item)
		require.NoError(t, err)
	}

	folders, err := s.Folders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 2)

	assert.Equal(t, "1/2025", folders[0].CaseNumber)
	assert.Equal(t, "Ahmed", folders[0].ClientName)
	assert.Len(t, folders[0].Items, 2)
	assert.Equal(t, base.Add(2*time.Hour).UnixMilli(), folders[0].LastUpdated.UnixMilli())

	assert.Equal(t, "2/2025", folders[1].CaseNumber)
	assert.Len(t, folders[1].Items, 1)
}

func TestStore_Restore(t *testing.T) {
	src := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 5, 19, 15, 30, 0, 0, time.UTC)

	saved, err := src.Save(ctx, models.ArchiveItem{
		Title:      "Session decision: 6/2025",
		CaseNumber: "6/2025",
		ClientName: "Acme",
		Type:       models.ArchiveTypeContract,
		Content:    "Decision:\nCase dismissed",
		CreatedAt:  at,
		Tags:       []string{"court session"},
	})
	require.NoError(t, err)

	items, err := src.List(ctx)
	require.NoError(t, err)

	dst := newTestStore(t)
	require.NoError(t, dst.Restore(ctx, items))
	// restoring twice replaces instead of duplicating
	require.NoError(t, dst.Restore(ctx, items))

	restored, err := dst.List(ctx)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, saved.ID, restored[0].ID)
	assert.Equal(t, "Acme", restored[0].ClientName)
	assert.Equal(t, []string{"court session"}, restored[0].Tags)
	assert.Equal(t, at.UnixMilli(), restored[0].CreatedAt.UnixMilli())
}

func TestStore_RestoreRejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Restore(ctx, []models.ArchiveItem{
		{ID: "kept", Title: "a", Type: models.ArchiveTypeOCR},
		{Title: "no id", Type: models.ArchiveTypeOCR},
	})
	require.Error(t, err)

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNewStore_DirectoryError(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))

	_, err := NewStore(filepath.Join(parent, "archive.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating archive directory")
}
