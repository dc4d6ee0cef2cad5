package appium

import (
	"context"
	"fmt"
	"net/http"
)

// element is one resolved W3C element handle. Handles go stale when the UI
// redraws; callers re-find rather than reuse across interactions.
type element struct {
	client    *Client
	sessionID string
	id        string
}

func (e *element) Tap(ctx context.Context) error {
	path := fmt.Sprintf("/session/%s/element/%s/click", e.sessionID, e.id)
	return e.client.do(ctx, http.MethodPost, path, map[string]any{}, nil)
}

func (e *element) Type(ctx context.Context, text string) error {
	path := fmt.Sprintf("/session/%s/element/%s/value", e.sessionID, e.id)
	return e.client.do(ctx, http.MethodPost, path, map[string]any{"text": text}, nil)
}
