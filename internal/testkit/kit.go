package testkit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fieldload/adapters/excel"
	"fieldload/domain/core"
	"fieldload/domain/fieldvalue"
	"fieldload/ports"

	"github.com/go-chi/chi/v5"
)

// FieldValuesPath is the upsert endpoint path served by CatalogServer
const FieldValuesPath = "/api/v2/fieldValues"

// Reply describes how the fake catalog answers one request
type Reply struct {
	Status      int
	ContentType string
	Body        string
	Delay       time.Duration
}

// Responder picks a Reply for an incoming request
type Responder func(r *http.Request) Reply

// CatalogServer is a fake catalog service that records every upsert call
type CatalogServer struct {
	*httptest.Server

	mu        sync.Mutex
	calls     []RecordedCall
	responder Responder
	inflight  int32
	maxFlight int32
}

// RecordedCall is one request seen by the fake
type RecordedCall struct {
	Method        string
	RequestURI    string
	Query         map[string]string
	Authorization string
	ContentType   string
}

// NewCatalogServer starts a fake catalog that answers 200 with a small JSON
// body unless a responder is given.
func NewCatalogServer(responder Responder) *CatalogServer {
	if responder == nil {
		responder = func(*http.Request) Reply {
			return Reply{Status: http.StatusOK, ContentType: "application/json", Body: `{"ok":true}`}
		}
	}
	s := &CatalogServer{responder: responder}

	r := chi.NewRouter()
	r.Post(FieldValuesPath, s.handleUpsert)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown route", http.StatusNotFound)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// BaseURL returns the server root with a trailing slash, the form the
// key builder expects
func (s *CatalogServer) BaseURL() string {
	return s.URL + "/"
}

func (s *CatalogServer) handleUpsert(w http.ResponseWriter, r *http.Request) {
	n := atomic.AddInt32(&s.inflight, 1)
	defer atomic.AddInt32(&s.inflight, -1)
	for {
		max := atomic.LoadInt32(&s.maxFlight)
		if n <= max || atomic.CompareAndSwapInt32(&s.maxFlight, max, n) {
			break
		}
	}

	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	s.mu.Lock()
	s.calls = append(s.calls, RecordedCall{
		Method:        r.Method,
		RequestURI:    r.RequestURI,
		Query:         query,
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
	})
	s.mu.Unlock()

	reply := s.responder(r)
	if reply.Delay > 0 {
		time.Sleep(reply.Delay)
	}
	if reply.ContentType != "" {
		w.Header().Set("Content-Type", reply.ContentType)
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(reply.Body))
}

// Calls returns a copy of the recorded calls
func (s *CatalogServer) Calls() []RecordedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of upsert calls received
func (s *CatalogServer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// MaxInFlight returns the highest number of concurrent requests observed
func (s *CatalogServer) MaxInFlight() int {
	return int(atomic.LoadInt32(&s.maxFlight))
}

// WriteValuesFixture writes rows to a values.xlsx file in dir with the
// standard valor/sigla/filtro columns
func WriteValuesFixture(dir string, rows []fieldvalue.Row) (string, error) {
	path := filepath.Join(dir, "values.xlsx")
	if err := excel.WriteRows(path, []string{fieldvalue.ColumnValue, fieldvalue.ColumnAcronym, fieldvalue.ColumnParentID}, rows); err != nil {
		return "", fmt.Errorf("write fixture: %w", err)
	}
	return path, nil
}

// SliceSource is an in-memory RowSource
type SliceSource struct {
	Rows    []fieldvalue.Row
	FailErr error
	pos     int
	closed  bool
}

var _ ports.RowSource = (*SliceSource)(nil)

func (s *SliceSource) Next(ctx context.Context) (fieldvalue.Row, bool) {
	if s.closed || s.pos >= len(s.Rows) {
		return nil, false
	}
	row := s.Rows[s.pos]
	s.pos++
	return row, true
}

func (s *SliceSource) Err() error {
	if s.pos >= len(s.Rows) {
		return s.FailErr
	}
	return nil
}

func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}

// InMemoryRunRepository stores run summaries in memory
type InMemoryRunRepository struct {
	mu   sync.Mutex
	runs map[core.RunID]fieldvalue.BatchSummary
}

var _ ports.RunRepository = (*InMemoryRunRepository)(nil)

func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{runs: make(map[core.RunID]fieldvalue.BatchSummary)}
}

func (r *InMemoryRunRepository) Record(ctx context.Context, summary fieldvalue.BatchSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[summary.RunID] = summary
	return nil
}

func (r *InMemoryRunRepository) Get(ctx context.Context, runID core.RunID) (*fieldvalue.BatchSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return &s, nil
}

func (r *InMemoryRunRepository) ListRecent(ctx context.Context, limit int) ([]fieldvalue.BatchSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]fieldvalue.BatchSummary, 0, len(r.runs))
	for _, s := range r.runs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
