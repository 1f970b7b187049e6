package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"fieldload/domain/core"
	"fieldload/domain/fieldvalue"
	"fieldload/internal/errors"
	"fieldload/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun() fieldvalue.BatchSummary {
	return fieldvalue.BatchSummary{
		RunID:             core.NewRunID(),
		Source:            "data/values.xlsx",
		EnvironmentID:     "42",
		FieldName:         "Estado",
		RowsSeen:          12,
		UniqueSent:        8,
		DuplicatesSkipped: 2,
		SkippedEmpty:      1,
		Errors:            2,
		ParseErrors:       1,
		StartedAt:         time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC),
		Duration:          2500 * time.Millisecond,
		Latency:           fieldvalue.LatencyStats{Count: 10, Mean: 40 * time.Millisecond, P95: 90 * time.Millisecond},
	}
}

func TestRunRecordRoundTrip(t *testing.T) {
	in := sampleRun()

	rec := toRecord(in)
	assert.False(t, rec.SourceError.Valid)
	assert.Equal(t, int64(2500), rec.DurationMs)
	assert.InDelta(t, 40.0, rec.LatencyMeanMs, 0.001)

	out := rec.summary()
	assert.Equal(t, in.RunID, out.RunID)
	assert.Equal(t, in.Duration, out.Duration)
	assert.Equal(t, in.Latency.Mean, out.Latency.Mean)
	assert.Equal(t, in.Latency.P95, out.Latency.P95)
	assert.True(t, out.Balanced())
}

func TestRunRecordKeepsSourceError(t *testing.T) {
	in := sampleRun()
	in.SourceError = "source file not found: x.xlsx"

	rec := toRecord(in)
	assert.True(t, rec.SourceError.Valid)
	assert.Equal(t, in.SourceError, rec.summary().SourceError)
}

func TestNopRunRepository(t *testing.T) {
	repo := NopRunRepository{}
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, sampleRun()))
	runs, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = repo.Get(ctx, "anything")
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}

// TestRunRepositoryPostgres needs a scratch database in TEST_DATABASE_URL
func TestRunRepositoryPostgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migration.NewRunner().Run(ctx, db))

	repo := NewRunRepository(db)
	run := sampleRun()
	require.NoError(t, repo.Record(ctx, run))
	require.NoError(t, repo.Record(ctx, run))

	got, err := repo.Get(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.UniqueSent, got.UniqueSent)
	assert.True(t, got.StartedAt.Equal(run.StartedAt))

	recent, err := repo.ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	_, err = repo.Get(ctx, core.NewRunID())
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}
