package excel

import (
	"fmt"
	"log"

	"fieldload/domain/fieldvalue"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// WriteRows writes headers and rows to a new workbook at path. Columns
// follow the order of headers; row keys not listed there are dropped.
func WriteRows(path string, headers []string, rows []fieldvalue.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(defaultSheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	headerCells := make([]interface{}, len(headers))
	for i, h := range headers {
		headerCells[i] = h
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i, row := range rows {
		cells := make([]interface{}, len(headers))
		for j, h := range headers {
			cells[j] = row.Get(h)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush workbook: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	log.Printf("[ExcelWriter] wrote %d rows to %s", len(rows), path)
	return nil
}
