package ingest

import (
	"testing"

	"fieldload/domain/fieldvalue"

	"github.com/stretchr/testify/assert"
)

const testBase = "https://acme.greendocs.net/"

func TestBuildKeyIncludesNonEmptyParams(t *testing.T) {
	b := NewKeyBuilder(testBase)

	key, ok := b.Build(fieldvalue.Row{"valor": "Acre", "sigla": "AC", "filtro": ""}, "42", "Estado")

	assert.True(t, ok)
	assert.Equal(t, fieldvalue.RequestKey("https://acme.greendocs.net/api/v2/fieldValues?idAmbiente=42&nome=Estado&valor=Acre&sigla=AC"), key)
}

func TestBuildKeyEmptyValue(t *testing.T) {
	b := NewKeyBuilder(testBase)

	for _, row := range []fieldvalue.Row{
		{"valor": "", "sigla": "AC", "filtro": "3"},
		{"valor": "   "},
		{"sigla": "AC"},
		nil,
	} {
		key, ok := b.Build(row, "42", "Estado")
		assert.False(t, ok, "row %v", row)
		assert.Empty(t, key)
	}
}

func TestBuildKeyParameterOrderAndEncoding(t *testing.T) {
	b := NewKeyBuilder(testBase)

	key, ok := b.Build(fieldvalue.Row{"valor": "São Paulo", "sigla": "SP&X", "filtro": "17"}, "42", "Cidade natal")

	assert.True(t, ok)
	assert.Equal(t,
		"https://acme.greendocs.net/api/v2/fieldValues?idAmbiente=42&nome=Cidade+natal&valor=S%C3%A3o+Paulo&sigla=SP%26X&idPai=17",
		key.String())
}

func TestBuildKeyDropsEmptyContext(t *testing.T) {
	b := NewKeyBuilder(testBase)

	key, ok := b.Build(fieldvalue.Row{"valor": "Acre", "filtro": "9"}, "", "Estado")

	assert.True(t, ok)
	assert.Equal(t, "https://acme.greendocs.net/api/v2/fieldValues?nome=Estado&valor=Acre&idPai=9", key.String())
}

func TestBuildKeyKeepsSurroundingSpaces(t *testing.T) {
	b := NewKeyBuilder(testBase)

	padded, ok := b.Build(fieldvalue.Row{"valor": " Acre ", "sigla": " ", "filtro": "7 "}, "42", "Estado")
	assert.True(t, ok)
	plain, _ := b.Build(fieldvalue.Row{"valor": "Acre", "filtro": "7"}, "42", "Estado")

	assert.Equal(t, "https://acme.greendocs.net/api/v2/fieldValues?idAmbiente=42&nome=Estado&valor=+Acre+&idPai=7+", padded.String())
	assert.NotEqual(t, plain, padded)
}

func TestBuildKeyDeterministic(t *testing.T) {
	b := NewKeyBuilder(testBase)
	row := fieldvalue.Row{"valor": "Acre", "sigla": "AC", "filtro": "1", "extra": "ignored"}

	first, _ := b.Build(row, "42", "Estado")
	for i := 0; i < 100; i++ {
		again, _ := b.Build(fieldvalue.Row{"extra": "other", "filtro": "1", "sigla": "AC", "valor": "Acre"}, "42", "Estado")
		assert.Equal(t, first, again)
	}
}

func TestBuildKeyDistinguishesParameters(t *testing.T) {
	b := NewKeyBuilder(testBase)

	a, _ := b.Build(fieldvalue.Row{"valor": "Acre", "sigla": "AC"}, "42", "Estado")
	c, _ := b.Build(fieldvalue.Row{"valor": "Acre", "filtro": "AC"}, "42", "Estado")
	d, _ := b.Build(fieldvalue.Row{"valor": "Acre", "sigla": "AC"}, "43", "Estado")

	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestDedupGateAdmitsOnce(t *testing.T) {
	g := NewDedupGate()

	assert.True(t, g.Admit("k1"))
	assert.False(t, g.Admit("k1"))
	assert.False(t, g.Admit("k1"))
	assert.True(t, g.Admit("k2"))
	assert.Equal(t, 2, g.Len())
}
