package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"fieldload/domain/fieldvalue"
	"fieldload/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s *RowStream) []fieldvalue.Row {
	t.Helper()
	var out []fieldvalue.Row
	for {
		row, ok := s.Next(context.Background())
		if !ok {
			return out
		}
		out = append(out, row)
	}
}

func writeFixture(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "values.xlsx")
	rows := make([]fieldvalue.Row, n)
	for i := range rows {
		rows[i] = fieldvalue.Row{"valor": fmt.Sprintf("V%d", i), "sigla": "", "filtro": "7"}
	}
	require.NoError(t, WriteRows(path, []string{"valor", "sigla", "filtro"}, rows))
	return path
}

func TestRowStreamPagesThroughWorkbook(t *testing.T) {
	path := writeFixture(t, 25)

	s := NewRowStream(path, 10, nil)
	rows := drain(t, s)

	require.NoError(t, s.Err())
	require.Len(t, rows, 25)
	assert.Equal(t, 25, s.Offset())
	assert.Equal(t, "V0", rows[0]["valor"])
	assert.Equal(t, "V24", rows[24]["valor"])
	assert.Equal(t, "7", rows[24]["filtro"])
}

func TestRowStreamNormalizesMissingCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.xlsx")
	require.NoError(t, WriteRows(path, []string{"valor", "sigla", "filtro"}, []fieldvalue.Row{
		{"valor": "Acre"},
		{"valor": "", "sigla": "XX"},
	}))

	rows := drain(t, NewRowStream(path, 1000, nil))
	require.Len(t, rows, 2)

	assert.Equal(t, fieldvalue.Row{"valor": "Acre", "sigla": "", "filtro": ""}, rows[0])
	filtro, present := rows[1]["filtro"]
	assert.True(t, present)
	assert.Equal(t, "", filtro)
	assert.Equal(t, "XX", rows[1]["sigla"])
}

func TestRowStreamMissingFile(t *testing.T) {
	s := NewRowStream(filepath.Join(t.TempDir(), "nope.xlsx"), 10, nil)

	rows := drain(t, s)
	assert.Empty(t, rows)
	require.Error(t, s.Err())
	assert.Equal(t, errors.CodeSourceNotFound, errors.GetCode(s.Err()))

	_, ok := s.Next(context.Background())
	assert.False(t, ok)
}

func TestRowStreamCorruptWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip archive"), 0644))

	s := NewRowStream(path, 10, nil)
	rows := drain(t, s)

	assert.Empty(t, rows)
	assert.Equal(t, errors.CodeSourceReadError, errors.GetCode(s.Err()))
}

func TestRowStreamCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.csv")
	content := "valor,sigla,filtro,extra\nAcre,AC,,ignored\n Bahia ,BA\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := NewRowStream(path, 1, nil)
	rows := drain(t, s)

	require.NoError(t, s.Err())
	require.Len(t, rows, 2)
	assert.Equal(t, "AC", rows[0]["sigla"])
	assert.Equal(t, " Bahia ", rows[1]["valor"])
	assert.Equal(t, "", rows[1]["filtro"])
}

func TestRowStreamCSVMalformedKeepsEarlierRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.csv")
	content := "valor,sigla\nAcre,AC\nBahia,\"BA\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := NewRowStream(path, 1, nil)
	rows := drain(t, s)

	require.Len(t, rows, 1)
	assert.Equal(t, "Acre", rows[0]["valor"])
	assert.Equal(t, errors.CodeSourceReadError, errors.GetCode(s.Err()))
}

func TestRowStreamCSVMalformedYieldsPartialPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.csv")
	content := "valor,sigla\nAcre,AC\nAmapá,AP\nBahia,\"BA\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := NewRowStream(path, 10, nil)
	rows := drain(t, s)

	require.Len(t, rows, 2)
	assert.Equal(t, "Acre", rows[0]["valor"])
	assert.Equal(t, "Amapá", rows[1]["valor"])
	assert.Equal(t, 2, s.Offset())
	assert.Equal(t, errors.CodeSourceReadError, errors.GetCode(s.Err()))
}

func TestRowStreamCSVWithByteOrderMark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.csv")
	content := "\xef\xbb\xbfvalor,sigla,filtro\nAcre,AC,\nBahia,BA,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s := NewRowStream(path, 10, nil)
	rows := drain(t, s)

	require.NoError(t, s.Err())
	require.Len(t, rows, 2)
	assert.Equal(t, fieldvalue.Row{"valor": "Acre", "sigla": "AC", "filtro": ""}, rows[0])
	assert.Equal(t, "Bahia", rows[1].Get("valor"))
}

func TestRowStreamRequiresValueColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.csv")
	require.NoError(t, os.WriteFile(path, []byte("value,sigla\nAcre,AC\n"), 0644))

	s := NewRowStream(path, 10, nil)
	rows := drain(t, s)

	assert.Empty(t, rows)
	assert.Equal(t, errors.CodeSourceReadError, errors.GetCode(s.Err()))
	assert.Contains(t, s.Err().Error(), `"valor"`)
}

func TestRowStreamKeepsCellWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.xlsx")
	require.NoError(t, WriteRows(path, []string{"valor", "sigla"}, []fieldvalue.Row{
		{"valor": " Acre ", "sigla": "AC"},
		{"valor": "Acre", "sigla": "AC"},
	}))

	rows := drain(t, NewRowStream(path, 10, nil))
	require.Len(t, rows, 2)
	assert.Equal(t, " Acre ", rows[0]["valor"])
	assert.Equal(t, "Acre", rows[1]["valor"])
}

func TestRowStreamStopsOnCancelledContext(t *testing.T) {
	path := writeFixture(t, 3)
	s := NewRowStream(path, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := s.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Err(), context.Canceled)
}

func TestRowStreamHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteRows(path, []string{"valor"}, nil))

	s := NewRowStream(path, 10, nil)
	assert.Empty(t, drain(t, s))
	assert.NoError(t, s.Err())
}
