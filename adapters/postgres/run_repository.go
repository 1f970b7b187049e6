package postgres

import (
	"context"
	"database/sql"
	"time"

	"fieldload/domain/core"
	"fieldload/domain/fieldvalue"
	"fieldload/internal/errors"
	"fieldload/ports"

	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// runRecord is the load_runs row layout
type runRecord struct {
	RunID             string         `db:"run_id"`
	Source            string         `db:"source"`
	EnvironmentID     string         `db:"environment_id"`
	FieldName         string         `db:"field_name"`
	RowsSeen          int64          `db:"rows_seen"`
	UniqueSent        int64          `db:"unique_sent"`
	DuplicatesSkipped int64          `db:"duplicates_skipped"`
	SkippedEmpty      int64          `db:"skipped_empty"`
	Errors            int64          `db:"errors"`
	ParseErrors       int64          `db:"parse_errors"`
	SourceError       sql.NullString `db:"source_error"`
	StartedAt         time.Time      `db:"started_at"`
	DurationMs        int64          `db:"duration_ms"`
	Calls             int            `db:"calls"`
	LatencyMeanMs     float64        `db:"latency_mean_ms"`
	LatencyP95Ms      float64        `db:"latency_p95_ms"`
}

const runColumns = `run_id, source, environment_id, field_name, rows_seen, unique_sent,
	duplicates_skipped, skipped_empty, errors, parse_errors, source_error, started_at,
	duration_ms, calls, latency_mean_ms, latency_p95_ms`

func toRecord(s fieldvalue.BatchSummary) runRecord {
	return runRecord{
		RunID:             s.RunID.String(),
		Source:            s.Source,
		EnvironmentID:     s.EnvironmentID,
		FieldName:         s.FieldName,
		RowsSeen:          s.RowsSeen,
		UniqueSent:        s.UniqueSent,
		DuplicatesSkipped: s.DuplicatesSkipped,
		SkippedEmpty:      s.SkippedEmpty,
		Errors:            s.Errors,
		ParseErrors:       s.ParseErrors,
		SourceError:       sql.NullString{String: s.SourceError, Valid: s.SourceError != ""},
		StartedAt:         s.StartedAt,
		DurationMs:        s.Duration.Milliseconds(),
		Calls:             s.Latency.Count,
		LatencyMeanMs:     toMillis(s.Latency.Mean),
		LatencyP95Ms:      toMillis(s.Latency.P95),
	}
}

func (r runRecord) summary() fieldvalue.BatchSummary {
	return fieldvalue.BatchSummary{
		RunID:             core.RunID(r.RunID),
		Source:            r.Source,
		EnvironmentID:     r.EnvironmentID,
		FieldName:         r.FieldName,
		RowsSeen:          r.RowsSeen,
		UniqueSent:        r.UniqueSent,
		DuplicatesSkipped: r.DuplicatesSkipped,
		SkippedEmpty:      r.SkippedEmpty,
		Errors:            r.Errors,
		ParseErrors:       r.ParseErrors,
		SourceError:       r.SourceError.String,
		StartedAt:         r.StartedAt,
		Duration:          time.Duration(r.DurationMs) * time.Millisecond,
		Latency: fieldvalue.LatencyStats{
			Count: r.Calls,
			Mean:  fromMillis(r.LatencyMeanMs),
			P95:   fromMillis(r.LatencyP95Ms),
		},
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Record inserts a finished run. Recording the same run twice is a no-op.
func (r *RunRepositoryImpl) Record(ctx context.Context, summary fieldvalue.BatchSummary) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO load_runs (`+runColumns+`)
		VALUES (:run_id, :source, :environment_id, :field_name, :rows_seen, :unique_sent,
			:duplicates_skipped, :skipped_empty, :errors, :parse_errors, :source_error, :started_at,
			:duration_ms, :calls, :latency_mean_ms, :latency_p95_ms)
		ON CONFLICT (run_id) DO NOTHING
	`, toRecord(summary))
	if err != nil {
		return errors.DatabaseError("failed to record run "+summary.RunID.String(), err)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepositoryImpl) Get(ctx context.Context, runID core.RunID) (*fieldvalue.BatchSummary, error) {
	var rec runRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+runColumns+` FROM load_runs WHERE run_id = $1`, runID.String())
	if err == sql.ErrNoRows {
		return nil, errors.InvalidInput("run not found: " + runID.String())
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to get run "+runID.String(), err)
	}
	s := rec.summary()
	return &s, nil
}

// ListRecent returns the most recent runs first, optionally limited
func (r *RunRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]fieldvalue.BatchSummary, error) {
	query := `SELECT ` + runColumns + ` FROM load_runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	var records []runRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}

	out := make([]fieldvalue.BatchSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.summary())
	}
	return out, nil
}

// NopRunRepository discards run summaries. It is used when no database is
// configured.
type NopRunRepository struct{}

var _ ports.RunRepository = NopRunRepository{}

func (NopRunRepository) Record(ctx context.Context, summary fieldvalue.BatchSummary) error {
	return nil
}

func (NopRunRepository) Get(ctx context.Context, runID core.RunID) (*fieldvalue.BatchSummary, error) {
	return nil, errors.ConfigInvalid("run ledger disabled: DATABASE_URL is not set")
}

func (NopRunRepository) ListRecent(ctx context.Context, limit int) ([]fieldvalue.BatchSummary, error) {
	return nil, nil
}
