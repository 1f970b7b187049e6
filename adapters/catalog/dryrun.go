package catalog

import (
	"context"
	"net/http"

	"fieldload/internal/diaglog"
	"fieldload/ports"
)

var _ ports.Requester = DryRun{}

// DryRun answers every request with 204 No Content without touching the
// network. Keys are still built and deduplicated upstream.
type DryRun struct {
	Logger diaglog.Logger
}

func (d DryRun) Request(ctx context.Context, url, method, body string, headers map[string]string) (*ports.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Logger != nil {
		d.Logger.Infof("dry run: %s %s", method, url)
	}
	return &ports.Response{StatusCode: http.StatusNoContent, Header: http.Header{}}, nil
}
