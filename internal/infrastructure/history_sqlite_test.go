package infrastructure

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anventec/dlpal/internal/domain"
)

func setupTestRepo(t *testing.T) (*SQLiteHistoryRepository, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "history-test-*")
	require.NoError(t, err)

	repo, err := NewSQLiteHistoryRepository(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return repo, cleanup
}

func testRequest() domain.DownloadRequest {
	return domain.DownloadRequest{
		VideoID:        "abc123",
		Title:          "Test Video",
		DestinationDir: "/tmp/out",
		WantVideo:      true,
		VideoFormatID:  "v1",
	}
}

func TestHistoryRepository_CreateAndFind(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	record := domain.NewHistoryRecord("session-1", testRequest())
	require.NoError(t, repo.Create(record))

	found, err := repo.FindByID("session-1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", found.VideoID)
	assert.Equal(t, domain.HistoryActive, found.Status)
}

func TestHistoryRepository_UpdateTerminalStatus(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	record := domain.NewHistoryRecord("session-1", testRequest())
	require.NoError(t, repo.Create(record))

	record.MarkCompleted("/tmp/out/Test Video.mp4")
	require.NoError(t, repo.Update(record))

	found, err := repo.FindByID("session-1")
	require.NoError(t, err)
	assert.Equal(t, domain.HistoryCompleted, found.Status)
	assert.Equal(t, "/tmp/out/Test Video.mp4", found.OutputPath)
	assert.NotNil(t, found.CompletedAt)
}

func TestHistoryRepository_FindRecent(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, repo.Create(domain.NewHistoryRecord(id, testRequest())))
	}

	records, err := repo.FindRecent(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	all, err := repo.FindRecent(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestHistoryRepository_GetStats(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	done := domain.NewHistoryRecord("s1", testRequest())
	done.MarkCompleted("/tmp/a.mp4")
	require.NoError(t, repo.Create(done))

	failed := domain.NewHistoryRecord("s2", testRequest())
	failed.MarkFailed(errors.New("network interrupted"))
	require.NoError(t, repo.Create(failed))

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestHistoryRepository_Delete(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	require.NoError(t, repo.Create(domain.NewHistoryRecord("s1", testRequest())))
	require.NoError(t, repo.Delete("s1"))

	_, err := repo.FindByID("s1")
	require.Error(t, err)
}
