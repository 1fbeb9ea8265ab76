package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/pipeline"
	"github.com/fuunylmz/Re-aniname/internal/placement"
)

func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()
	db, err := OpenPath(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleReport(id string, started time.Time) *pipeline.Report {
	ok := media.NewScannedFile("/in/Show.S01E02.mkv", 10)
	ok.Attach(media.MediaInfo{Kind: media.KindAnime, Title: "Show", Year: media.Int(2023), Season: media.Int(1), Episode: media.Int(2), CatalogID: 99})
	_ = ok.Transition(media.StatusProcessing)
	_ = ok.Transition(media.StatusSuccess)

	bad := media.NewScannedFile("/in/bad.mkv", 10)
	bad.Fail(assert.AnError)

	r := &pipeline.Report{
		ID:         id,
		Root:       "/in",
		OutputDir:  "/lib",
		Mode:       placement.ModeLink,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Files: []pipeline.FileReport{
			{File: ok, Result: &placement.Result{Destination: "/lib/Anime/Show (2023)/Season 01/S01E02.mkv", AlreadyPresent: true}, Duration: 1500 * time.Millisecond},
			{File: bad},
		},
		Summary: pipeline.Summary{Total: 2, Succeeded: 1, Failed: 1, AlreadyPresent: 1},
	}
	r.Cache.Hits = 3
	return r
}

func TestOpen_Migrates(t *testing.T) {
	db := setupTestDB(t)
	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)

	reopened, err := OpenPath(db.Path())
	require.NoError(t, err)
	defer reopened.Close()
	v, err = reopened.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)
}

func TestOpenInMemory(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Record(context.Background(), sampleReport("mem", time.Now())))
}

func TestRecordAndGetBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.Record(ctx, sampleReport("b1", started)))

	batch, files, err := db.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "link", batch.Mode)
	assert.Equal(t, 2, batch.Total)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 3, batch.CacheHits)
	assert.True(t, batch.StartedAt.Equal(started))

	require.Len(t, files, 2)
	assert.Equal(t, "success", files[0].Status)
	assert.Equal(t, "Show", files[0].Title)
	assert.Equal(t, 2023, *files[0].Year)
	assert.Equal(t, int64(99), files[0].CatalogID)
	assert.True(t, files[0].AlreadyPresent)
	assert.Equal(t, int64(1500), files[0].DurationMs)

	assert.Equal(t, "failed", files[1].Status)
	assert.Nil(t, files[1].Year)
	assert.NotEmpty(t, files[1].Error)
}

func TestGetBatch_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, _, err := db.GetBatch(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBatchesAndPrune(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, db.Record(ctx, sampleReport(id, base.AddDate(0, i, 0))))
	}

	list, err := db.ListBatches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)

	n, err := db.PruneBefore(ctx, base.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, files, err := db.GetBatch(ctx, "mid")
	require.NoError(t, err)
	assert.Len(t, files, 2)
	_, _, err = db.GetBatch(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
}
