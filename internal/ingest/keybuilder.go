package ingest

import (
	"net/url"
	"strings"

	"fieldload/domain/fieldvalue"
)

// FieldValuesPath is the upsert endpoint, relative to the server base URL
const FieldValuesPath = "api/v2/fieldValues"

// Query parameter names, in the order they appear in a key
const (
	paramEnvironment = "idAmbiente"
	paramName        = "nome"
	paramValue       = "valor"
	paramAcronym     = "sigla"
	paramParent      = "idPai"
)

// KeyBuilder derives the RequestKey of a row. The key is the request URL
// itself, so two rows share a key exactly when they would send the same
// request.
type KeyBuilder struct {
	endpoint string
}

// NewKeyBuilder creates a builder for a server base URL ending in "/"
func NewKeyBuilder(serverBase string) KeyBuilder {
	return KeyBuilder{endpoint: serverBase + FieldValuesPath}
}

// Endpoint returns the URL keys are built on
func (b KeyBuilder) Endpoint() string {
	return b.endpoint
}

// Build returns the key for row, or false when the row has no value.
// Blank parameters are left out; the remaining ones keep a fixed order and
// are sent as written, surrounding spaces included.
func (b KeyBuilder) Build(row fieldvalue.Row, environmentID, fieldName string) (fieldvalue.RequestKey, bool) {
	value := row.Get(fieldvalue.ColumnValue)
	if isBlank(value) {
		return "", false
	}

	params := [...][2]string{
		{paramEnvironment, environmentID},
		{paramName, fieldName},
		{paramValue, value},
		{paramAcronym, row.Get(fieldvalue.ColumnAcronym)},
		{paramParent, row.Get(fieldvalue.ColumnParentID)},
	}

	var sb strings.Builder
	sb.Grow(len(b.endpoint) + 64)
	sb.WriteString(b.endpoint)
	sep := byte('?')
	for _, p := range params {
		if isBlank(p[1]) {
			continue
		}
		sb.WriteByte(sep)
		sb.WriteString(url.QueryEscape(p[0]))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p[1]))
		sep = '&'
	}
	return fieldvalue.RequestKey(sb.String()), true
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
