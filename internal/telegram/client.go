// Package telegram is an HTTP client for the tdlib bridge sidecar that
// holds the actual MTProto connections. claimd hands it a stored session
// credential and asks it to send messages and click inline buttons; the
// MTProto noise stays on the other side of the bridge.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes prevents unbounded reads from bridge responses.
const maxResponseBytes = 10 << 20 // 10 MiB

// Client is a thin HTTP wrapper around the bridge API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a bridge client. The HTTP timeout is a transport-level
// backstop; per-account deadlines are enforced by the caller's context.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// do sends a JSON POST request to the given bridge method and decodes the
// response. Non-OK envelopes come back as *APIError.
func do[T any](ctx context.Context, c *Client, method string, payload any) (T, error) {
	var zero T

	data, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("telegram: marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return zero, fmt.Errorf("telegram: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, fmt.Errorf("telegram: %s request failed: %w", method, err)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return zero, fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var env Envelope[T]
	if err := json.Unmarshal(respBody, &env); err != nil {
		return zero, fmt.Errorf("telegram: decode %s response: %w", method, err)
	}

	if !env.OK {
		apiErr := &APIError{
			Code:        env.ErrorCode,
			Description: env.Description,
		}
		if env.Parameters != nil {
			apiErr.RetryAfter = env.Parameters.RetryAfter
		}
		return zero, apiErr
	}

	return env.Result, nil
}

// Connect establishes an MTProto session on the bridge from a stored
// credential payload and returns the bridge-side session ID.
func (c *Client) Connect(ctx context.Context, credential string) (string, error) {
	res, err := do[ConnectResult](ctx, c, "connect", map[string]string{
		"session": credential,
	})
	if err != nil {
		return "", err
	}
	return res.SessionID, nil
}

// SendMessage sends a text message to peer.
func (c *Client) SendMessage(ctx context.Context, sessionID, peer, text string) (Message, error) {
	return do[Message](ctx, c, "sendMessage", map[string]any{
		"session_id": sessionID,
		"peer":       peer,
		"text":       text,
	})
}

// GetMessages fetches the most recent messages in the dialog with peer,
// newest first.
func (c *Client) GetMessages(ctx context.Context, sessionID, peer string, limit int) ([]Message, error) {
	return do[[]Message](ctx, c, "getMessages", map[string]any{
		"session_id": sessionID,
		"peer":       peer,
		"limit":      limit,
	})
}

// ClickButton presses an inline button on a message (the bridge issues
// messages.getBotCallbackAnswer for it).
func (c *Client) ClickButton(ctx context.Context, sessionID, peer string, messageID int64, data string) error {
	_, err := do[json.RawMessage](ctx, c, "clickButton", map[string]any{
		"session_id": sessionID,
		"peer":       peer,
		"message_id": messageID,
		"data":       data,
	})
	return err
}

// Disconnect tears down the bridge session.
func (c *Client) Disconnect(ctx context.Context, sessionID string) error {
	_, err := do[json.RawMessage](ctx, c, "disconnect", map[string]string{
		"session_id": sessionID,
	})
	return err
}
