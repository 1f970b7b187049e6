package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesGeneratorDeterministic(t *testing.T) {
	a := NewValuesGenerator(DefaultValuesConfig()).Generate()
	b := NewValuesGenerator(DefaultValuesConfig()).Generate()

	require.Equal(t, len(a.Rows), len(b.Rows))
	assert.Equal(t, a.Rows, b.Rows)
	assert.Equal(t, a.DistinctUsed, b.DistinctUsed)
}

func TestValuesGeneratorAccounting(t *testing.T) {
	cfg := DefaultValuesConfig()
	got := NewValuesGenerator(cfg).Generate()

	assert.Len(t, got.Rows, cfg.Rows)
	assert.Equal(t, cfg.Rows, got.DistinctUsed+got.DuplicateRows+got.EmptyRows)
	assert.LessOrEqual(t, got.DistinctUsed, cfg.DistinctCount)
	assert.Greater(t, got.DuplicateRows, 0)

	empty := 0
	for _, row := range got.Rows {
		assert.Contains(t, row, "valor")
		assert.Contains(t, row, "sigla")
		assert.Contains(t, row, "filtro")
		if row.Get("valor") == "" {
			empty++
		}
	}
	assert.Equal(t, got.EmptyRows, empty)
}

func TestValuesGeneratorRowsAreCopies(t *testing.T) {
	got := NewValuesGenerator(ValuesGeneratorConfig{Rows: 10, DistinctCount: 1, Seed: 1}).Generate()

	got.Rows[0]["valor"] = "changed"
	assert.Equal(t, "Valor 0001", got.Rows[1].Get("valor"))
}

func TestCatalogServerRecordsCalls(t *testing.T) {
	srv := NewCatalogServer(nil)
	defer srv.Close()

	resp, err := srv.Client().Post(srv.BaseURL()+"api/v2/fieldValues?valor=Acre&nome=Estado", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = srv.Client().Post(srv.BaseURL()+"api/v1/other", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Acre", calls[0].Query["valor"])
	assert.Equal(t, "application/json", calls[0].ContentType)
}
