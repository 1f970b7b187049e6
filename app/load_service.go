package app

import (
	"context"
	"log"

	"fieldload/adapters/excel"
	"fieldload/domain/core"
	"fieldload/domain/fieldvalue"
	"fieldload/internal/diaglog"
	"fieldload/internal/errors"
	"fieldload/internal/ingest"
	"fieldload/ports"
)

// LoadService runs one spreadsheet through the ingest pipeline and records
// the outcome in the run ledger
type LoadService struct {
	requester ports.Requester
	runs      ports.RunRepository
	logger    diaglog.Logger
}

// LoadRequest defines the inputs of one load run
type LoadRequest struct {
	SourceFile    string
	BaseURL       string
	EnvironmentID string
	FieldName     string
	PageSize      int
	Workers       int
}

// NewLoadService creates a load service
func NewLoadService(requester ports.Requester, runs ports.RunRepository, logger diaglog.Logger) *LoadService {
	if logger == nil {
		logger = diaglog.Nop
	}
	return &LoadService{
		requester: requester,
		runs:      runs,
		logger:    logger,
	}
}

// Load processes every row of req.SourceFile. A missing or unreadable file
// is not an error: it yields a summary with SourceError set. Each call uses
// a fresh dedup gate.
func (s *LoadService) Load(ctx context.Context, req LoadRequest) (fieldvalue.BatchSummary, error) {
	if err := req.validate(); err != nil {
		return fieldvalue.BatchSummary{}, err
	}

	source := excel.NewRowStream(req.SourceFile, req.PageSize, s.logger)
	defer source.Close()

	keys := ingest.NewKeyBuilder(req.BaseURL)
	dispatcher := ingest.NewDispatcher(
		keys,
		ingest.NewDedupGate(),
		ingest.NewUpserter(s.requester, nil, s.logger),
		ingest.Options{Concurrency: req.Workers, Logger: s.logger},
	)

	s.logger.Infof("loading %s into field %q of environment %s via %s", req.SourceFile, req.FieldName, req.EnvironmentID, keys.Endpoint())
	summary := dispatcher.Run(ctx, source, req.EnvironmentID, req.FieldName)
	summary.Source = req.SourceFile

	if s.runs != nil {
		if err := s.runs.Record(ctx, summary); err != nil {
			log.Printf("[LoadService] warning: could not record run %s: %v", summary.RunID, err)
			s.logger.Warnf("run ledger: %v", err)
		}
	}
	s.logger.Infof("run %s done: %d rows, %d sent, %d duplicates, %d empty, %d errors",
		summary.RunID, summary.RowsSeen, summary.UniqueSent, summary.DuplicatesSkipped, summary.SkippedEmpty, summary.Errors)

	return summary, nil
}

// RecentRuns lists recorded runs, newest first
func (s *LoadService) RecentRuns(ctx context.Context, limit int) ([]fieldvalue.BatchSummary, error) {
	if s.runs == nil {
		return nil, nil
	}
	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	return runs, nil
}

// FindRun returns one recorded run
func (s *LoadService) FindRun(ctx context.Context, id string) (*fieldvalue.BatchSummary, error) {
	runID, err := core.ParseRunID(id)
	if err != nil {
		return nil, errors.InvalidInput(err.Error())
	}
	if s.runs == nil {
		return nil, errors.ConfigInvalid("run ledger disabled")
	}
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get run %s", runID)
	}
	return run, nil
}

func (r LoadRequest) validate() error {
	if r.SourceFile == "" {
		return errors.InvalidInput("source file is required")
	}
	if r.BaseURL == "" {
		return errors.InvalidInput("catalog base URL is required")
	}
	if r.FieldName == "" {
		return errors.InvalidInput("field name is required")
	}
	return nil
}
