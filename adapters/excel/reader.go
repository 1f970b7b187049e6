package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"fieldload/domain/fieldvalue"
	"fieldload/internal/diaglog"
	"fieldload/internal/errors"
	"fieldload/ports"

	"github.com/xuri/excelize/v2"
)

// DefaultPageSize is the number of rows held in memory at once
const DefaultPageSize = 1000

var _ ports.RowSource = (*RowStream)(nil)

// RowStream reads an Excel or CSV file page by page. Only one page of rows
// is materialized at a time.
type RowStream struct {
	path     string
	fileType string // "xlsx" or "csv"
	pageSize int
	logger   diaglog.Logger

	opened  bool
	xlsx    *excelize.File
	rows    *excelize.Rows
	csvFile *os.File
	csv     *csv.Reader
	headers []string

	page    []fieldvalue.Row
	pos     int
	offset  int
	pending error // read error held back until the partial page is consumed
	done    bool
	err     error
}

// NewRowStream creates a stream over path. The file is opened lazily on the
// first call to Next.
func NewRowStream(path string, pageSize int, logger diaglog.Logger) *RowStream {
	ext := strings.ToLower(filepath.Ext(path))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = diaglog.Nop
	}
	return &RowStream{path: path, fileType: fileType, pageSize: pageSize, logger: logger}
}

// Next returns the next row. It returns false once the file is exhausted,
// the context is done, or a read error ended the stream.
func (s *RowStream) Next(ctx context.Context) (fieldvalue.Row, bool) {
	if s.done {
		return nil, false
	}
	if err := ctx.Err(); err != nil {
		s.finish(err)
		return nil, false
	}
	if !s.opened {
		s.opened = true
		if err := s.open(); err != nil {
			s.finish(err)
			return nil, false
		}
	}
	if s.pos >= len(s.page) {
		if err := s.fillPage(); err != nil {
			s.finish(err)
			return nil, false
		}
		if len(s.page) == 0 {
			s.finish(nil)
			return nil, false
		}
	}
	row := s.page[s.pos]
	s.page[s.pos] = nil
	s.pos++
	return row, true
}

// Err returns the error that ended the stream, if any
func (s *RowStream) Err() error {
	return s.err
}

// Offset returns the number of data rows read from the file so far
func (s *RowStream) Offset() int {
	return s.offset
}

// Close releases the underlying file
func (s *RowStream) Close() error {
	s.done = true
	var err error
	if s.rows != nil {
		err = s.rows.Close()
		s.rows = nil
	}
	if s.xlsx != nil {
		if cerr := s.xlsx.Close(); err == nil {
			err = cerr
		}
		s.xlsx = nil
	}
	if s.csvFile != nil {
		if cerr := s.csvFile.Close(); err == nil {
			err = cerr
		}
		s.csvFile = nil
	}
	return err
}

func (s *RowStream) finish(err error) {
	if err != nil && s.err == nil {
		s.err = err
		switch errors.GetCode(err) {
		case errors.CodeSourceNotFound:
			log.Printf("[RowStream] %v", err)
		default:
			log.Printf("[RowStream] reading stopped after %d rows: %v", s.offset, err)
		}
		s.logger.Errorf("row source %s: %v", s.path, err)
	}
	s.page = nil
	s.pos = 0
	_ = s.Close()
}

func (s *RowStream) open() error {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return errors.SourceNotFound(s.path)
		}
		return errors.SourceReadError(s.path, err)
	}

	switch s.fileType {
	case "csv":
		return s.openCSV()
	default:
		return s.openExcel()
	}
}

func (s *RowStream) openExcel() error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return errors.SourceReadError(s.path, err)
	}
	s.xlsx = f

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return errors.SourceReadError(s.path, errors.InvalidInput("workbook has no sheets"))
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return errors.SourceReadError(s.path, err)
	}
	s.rows = rows

	header, ok, err := s.nextExcelRecord()
	if err != nil {
		return err
	}
	if ok {
		if s.headers, err = s.checkHeaders(header); err != nil {
			return err
		}
	}
	s.logger.Debugf("opened %s sheet %q with columns %v", s.path, sheets[0], s.headers)
	return nil
}

func (s *RowStream) openCSV() error {
	f, err := os.Open(s.path)
	if err != nil {
		return errors.SourceReadError(s.path, err)
	}
	s.csvFile = f
	s.csv = csv.NewReader(f)
	s.csv.FieldsPerRecord = -1

	header, ok, err := s.nextCSVRecord()
	if err != nil {
		return err
	}
	if ok {
		if s.headers, err = s.checkHeaders(header); err != nil {
			return err
		}
	}
	return nil
}

// fillPage replaces the current page with up to pageSize new rows. A read
// error after some rows of the page were collected is reported on the
// following call, so those rows are still yielded.
func (s *RowStream) fillPage() error {
	s.page = s.page[:0]
	s.pos = 0
	if s.pending != nil {
		err := s.pending
		s.pending = nil
		return err
	}
	if s.headers == nil {
		return nil
	}
	for len(s.page) < s.pageSize {
		record, ok, err := s.nextRecord()
		if err != nil {
			if len(s.page) == 0 {
				return err
			}
			s.pending = err
			break
		}
		if !ok {
			break
		}
		s.page = append(s.page, s.toRow(record))
	}
	if len(s.page) > 0 {
		s.logger.Debugf("loaded page of %d rows at offset %d from %s", len(s.page), s.offset, s.path)
		s.offset += len(s.page)
	}
	return nil
}

func (s *RowStream) nextRecord() ([]string, bool, error) {
	if s.fileType == "csv" {
		return s.nextCSVRecord()
	}
	return s.nextExcelRecord()
}

func (s *RowStream) nextExcelRecord() ([]string, bool, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, false, errors.SourceReadError(s.path, err)
		}
		return nil, false, nil
	}
	cols, err := s.rows.Columns()
	if err != nil {
		return nil, false, errors.SourceReadError(s.path, err)
	}
	return cols, true, nil
}

func (s *RowStream) nextCSVRecord() ([]string, bool, error) {
	record, err := s.csv.Read()
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.SourceReadError(s.path, err)
	}
	return record, true, nil
}

// toRow maps a record onto the headers. Short records are padded with "".
// Cell text is kept as written; callers decide what blank means.
func (s *RowStream) toRow(record []string) fieldvalue.Row {
	row := make(fieldvalue.Row, len(s.headers))
	for i, header := range s.headers {
		if header == "" {
			continue
		}
		value := ""
		if i < len(record) {
			value = record[i]
		}
		row[header] = value
	}
	return row
}

// checkHeaders normalizes the header row and requires a value column
func (s *RowStream) checkHeaders(header []string) ([]string, error) {
	headers := normalizeHeaders(header)
	for _, h := range headers {
		if h == fieldvalue.ColumnValue {
			return headers, nil
		}
	}
	return nil, errors.SourceReadError(s.path,
		errors.InvalidInput(fmt.Sprintf("header row %v has no %q column", headers, fieldvalue.ColumnValue)))
}

// normalizeHeaders trims header names and drops the byte-order mark that
// "CSV UTF-8" exports put in front of the first one
func normalizeHeaders(header []string) []string {
	headers := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[i] = strings.TrimSpace(h)
	}
	return headers
}
