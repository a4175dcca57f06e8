package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rickgao/statesync/internal/classify"
	"github.com/rickgao/statesync/internal/model"
)

// Snapshot fetches the current state for a channel in one shot. The
// response body is the same shape as a state-bearing frame's payload.
func (c *Client) Snapshot(ctx context.Context, channel string) (model.StateSnapshot, error) {
	path := fmt.Sprintf("/v1/state/%s", url.PathEscape(channel))

	body, err := c.doWithRetry(ctx, http.MethodGet, path, nil)
	if err != nil {
		return model.StateSnapshot{}, err
	}

	snap, err := classify.DecodeSnapshot(body)
	if err != nil {
		return model.StateSnapshot{}, fmt.Errorf("decode resync response: %w", err)
	}

	return snap, nil
}
