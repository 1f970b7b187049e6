package ports

import (
	"context"

	"fieldload/domain/fieldvalue"
)

// RowSource yields spreadsheet rows one at a time.
//
// Next returns false when the source is exhausted or failed; Err then
// reports the failure, if any. Rows yielded before a failure stay valid.
type RowSource interface {
	Next(ctx context.Context) (fieldvalue.Row, bool)
	Err() error
	Close() error
}
