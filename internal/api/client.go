package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Client makes REST calls to the engine.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:4096").
// Timeouts are controlled per call through the caller's context.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{},
	}
}

// BaseURL returns the engine base URL this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Health checks that the engine is reachable and serving.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Healthy bool `json:"healthy"`
	}
	return c.get(ctx, "/health", &out)
}

// ListSessions fetches all sessions known to the engine.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var out []Session
	if err := c.get(ctx, "/session", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession creates a new session in the given directory.
func (c *Client) CreateSession(ctx context.Context, directory, title string) (*Session, error) {
	body := map[string]string{"directory": directory}
	if title != "" {
		body["title"] = title
	}
	var out Session
	if err := c.post(ctx, "/session", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Messages fetches the full message and part history for a session.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]MessageWithParts, error) {
	var out []MessageWithParts
	if err := c.get(ctx, "/session/"+url.PathEscape(sessionID)+"/message", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Todos fetches the current todo list for a session.
func (c *Client) Todos(ctx context.Context, sessionID string) ([]TodoItem, error) {
	var out []TodoItem
	if err := c.get(ctx, "/session/"+url.PathEscape(sessionID)+"/todo", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Prompt sends a user prompt to a session. The message ID is generated
// client-side so the reply stream can be correlated before the engine
// acknowledges the request.
func (c *Client) Prompt(ctx context.Context, sessionID, providerID, modelID, text string) error {
	body := map[string]interface{}{
		"messageID": "msg_" + uuid.NewString(),
		"parts": []map[string]string{
			{"type": PartText, "text": text},
		},
	}
	if providerID != "" && modelID != "" {
		body["model"] = map[string]string{"providerID": providerID, "modelID": modelID}
	}
	return c.post(ctx, "/session/"+url.PathEscape(sessionID)+"/message", body, nil)
}

// Abort asks the engine to stop the active run in a session.
func (c *Client) Abort(ctx context.Context, sessionID string) error {
	return c.post(ctx, "/session/"+url.PathEscape(sessionID)+"/abort", nil, nil)
}

// ListPermissions fetches all pending permission requests.
func (c *Client) ListPermissions(ctx context.Context) ([]Permission, error) {
	var out []Permission
	if err := c.get(ctx, "/permission", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplyPermission answers a pending permission request.
func (c *Client) ReplyPermission(ctx context.Context, requestID, reply string) error {
	body := map[string]string{"response": reply}
	return c.post(ctx, "/permission/"+url.PathEscape(requestID), body, nil)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s: %d %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
