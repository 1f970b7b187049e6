package convert

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fieldload/adapters/excel"
	"fieldload/domain/fieldvalue"
	"fieldload/internal/errors"

	"github.com/tidwall/gjson"
)

// componentPath locates the filtro/valor pair inside each exported item
const componentPath = "conjunto_componente"

// SkippedFile is a JSON file that could not be decoded
type SkippedFile struct {
	Path   string
	Reason string
}

// Result describes one conversion
type Result struct {
	Files   int
	Rows    int
	Skipped []SkippedFile
	Written bool
}

// Extract reads every .json file in dir, in name order, and collects the
// filtro/valor pairs where both are present.
func Extract(dir string) ([]fieldvalue.Row, Result, error) {
	var result Result

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, result, errors.SourceNotFound(dir)
		}
		return nil, result, errors.SourceReadError(dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var rows []fieldvalue.Row
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		result.Files++

		data, err := os.ReadFile(path)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedFile{Path: path, Reason: err.Error()})
			continue
		}
		if !gjson.ValidBytes(data) {
			log.Printf("[Convert] could not decode JSON in %s, skipping", path)
			result.Skipped = append(result.Skipped, SkippedFile{Path: path, Reason: "invalid JSON"})
			continue
		}

		gjson.ParseBytes(data).ForEach(func(_, item gjson.Result) bool {
			component := item.Get(componentPath)
			filtro, valor := component.Get("filtro"), component.Get("valor")
			if truthy(filtro) && truthy(valor) {
				rows = append(rows, fieldvalue.Row{
					fieldvalue.ColumnParentID: filtro.String(),
					fieldvalue.ColumnValue:    valor.String(),
				})
			}
			return true
		})
	}

	result.Rows = len(rows)
	return rows, result, nil
}

// ToSpreadsheet extracts dir and writes the rows to out with columns
// filtro, valor. Nothing is written when no rows were found.
func ToSpreadsheet(dir, out string) (Result, error) {
	rows, result, err := Extract(dir)
	if err != nil {
		return result, err
	}
	if len(rows) == 0 {
		return result, nil
	}

	if err := excel.WriteRows(out, []string{fieldvalue.ColumnParentID, fieldvalue.ColumnValue}, rows); err != nil {
		return result, errors.Wrapf(err, "failed to write %s", out)
	}
	result.Written = true
	return result, nil
}

// truthy mirrors how the exporter's consumers treated blank fields: missing,
// null, false, zero and "" are all absent
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	case gjson.True, gjson.JSON:
		return true
	default:
		return false
	}
}
