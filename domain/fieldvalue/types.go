package fieldvalue

import (
	"fmt"
	"time"

	"fieldload/domain/core"
)

// Spreadsheet columns read by the loader. Other columns are ignored.
const (
	ColumnValue    = "valor"
	ColumnAcronym  = "sigla"
	ColumnParentID = "filtro"
)

// Row is one spreadsheet line keyed by column header. Missing cells are
// always present as "".
type Row map[string]string

// Get returns the cell for column, or "" when the column is absent
func (r Row) Get(column string) string {
	if r == nil {
		return ""
	}
	return r[column]
}

// RequestKey identifies one upsert call. It is also the literal request URL.
type RequestKey string

func (k RequestKey) String() string { return string(k) }

// Outcome classifies what happened to a single row
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeSkippedDuplicate
	OutcomeSkippedEmpty
	OutcomeRequestError
	OutcomeParseError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeSkippedDuplicate:
		return "skipped_duplicate"
	case OutcomeSkippedEmpty:
		return "skipped_empty"
	case OutcomeRequestError:
		return "request_error"
	case OutcomeParseError:
		return "parse_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// IsError reports whether the outcome counts toward BatchSummary.Errors
func (o Outcome) IsError() bool {
	return o == OutcomeRequestError || o == OutcomeParseError
}

// UpsertResult is the classified result of one HTTP call
type UpsertResult struct {
	Key        RequestKey
	Outcome    Outcome
	StatusCode int
	Body       string
	Err        error
	Latency    time.Duration
}

// BatchSummary aggregates the outcomes of one run.
//
// ParseErrors are soft failures: they are counted in both UniqueSent and
// Errors, so RowsSeen == UniqueSent + DuplicatesSkipped + SkippedEmpty +
// Errors - ParseErrors.
type BatchSummary struct {
	RunID             core.RunID
	Source            string
	EnvironmentID     string
	FieldName         string
	RowsSeen          int64
	UniqueSent        int64
	DuplicatesSkipped int64
	SkippedEmpty      int64
	Errors            int64
	ParseErrors       int64
	SourceError       string
	StartedAt         time.Time
	Duration          time.Duration
	Latency           LatencyStats
}

// Balanced reports whether every seen row is accounted for exactly once
func (s BatchSummary) Balanced() bool {
	return s.RowsSeen == s.UniqueSent+s.DuplicatesSkipped+s.SkippedEmpty+s.Errors-s.ParseErrors
}

// LatencyStats summarizes the duration of the HTTP calls made during a run
type LatencyStats struct {
	Count  int
	Mean   time.Duration
	Median time.Duration
	P95    time.Duration
	Max    time.Duration
	StdDev time.Duration
}
