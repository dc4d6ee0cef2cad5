// Package appium drives an Appium server over its W3C WebDriver HTTP
// protocol, implementing the domain.Device port for Android/UiAutomator2.
package appium

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wallybot/wally-agent/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
	udid    string

	mu        sync.Mutex
	sessionID string
}

type Config struct {
	ServerURL string
	UDID      string
	Timeout   time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.ServerURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		udid:    cfg.UDID,
	}
}

// ─────────────────────────────────────────────
// Wire types
// ─────────────────────────────────────────────

type wdResponse struct {
	Value json.RawMessage `json:"value"`
}

type wdError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type newSessionValue struct {
	SessionID string `json:"sessionId"`
}

type elementValue struct {
	// W3C element identifier key.
	ElementID string `json:"element-6066-11e4-a52e-4f735466cecf"`
}

// ─────────────────────────────────────────────
// domain.Device implementation
// ─────────────────────────────────────────────

// Connect creates one Appium session. Each call is a single attempt; retry
// policy belongs to the caller.
func (c *Client) Connect(ctx context.Context) error {
	caps := map[string]any{
		"platformName":             "Android",
		"appium:automationName":    "UiAutomator2",
		"appium:noReset":           true,
		"appium:newCommandTimeout": 300,
	}
	if c.udid != "" {
		caps["appium:udid"] = c.udid
	}
	body := map[string]any{
		"capabilities": map[string]any{"alwaysMatch": caps},
	}

	var value newSessionValue
	if err := c.do(ctx, http.MethodPost, "/session", body, &value); err != nil {
		return fmt.Errorf("creating appium session: %w", err)
	}
	if value.SessionID == "" {
		return fmt.Errorf("appium returned no session id")
	}

	c.mu.Lock()
	c.sessionID = value.SessionID
	c.mu.Unlock()
	return nil
}

func (c *Client) ActivateApp(ctx context.Context, appID string) error {
	sid, err := c.session()
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/session/%s/appium/device/activate_app", sid)
	return c.do(ctx, http.MethodPost, path, map[string]any{"appId": appID}, nil)
}

func (c *Client) FindElement(ctx context.Context, strategy domain.LocatorStrategy, value string) (domain.Element, error) {
	sid, err := c.session()
	if err != nil {
		return nil, err
	}

	body := map[string]any{"using": string(strategy), "value": value}
	var elem elementValue
	path := fmt.Sprintf("/session/%s/element", sid)
	if err := c.do(ctx, http.MethodPost, path, body, &elem); err != nil {
		return nil, err
	}
	if elem.ElementID == "" {
		return nil, domain.ErrElementNotFound
	}
	return &element{client: c, sessionID: sid, id: elem.ElementID}, nil
}

func (c *Client) PressKey(ctx context.Context, keycode int) error {
	sid, err := c.session()
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/session/%s/appium/device/press_keycode", sid)
	return c.do(ctx, http.MethodPost, path, map[string]any{"keycode": keycode}, nil)
}

func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	sid := c.sessionID
	c.sessionID = ""
	c.mu.Unlock()

	if sid == "" {
		return nil
	}
	return c.do(ctx, http.MethodDelete, "/session/"+sid, nil, nil)
}

func (c *Client) session() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		return "", domain.ErrNotConnected
	}
	return c.sessionID, nil
}

// do runs one WebDriver request and decodes its value envelope. "no such
// element" maps to domain.ErrElementNotFound so the session's bounded wait
// can keep polling.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("appium request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading appium response: %w", err)
	}

	var envelope wdResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return fmt.Errorf("decoding appium response (%d): %w", resp.StatusCode, err)
		}
	}

	if resp.StatusCode >= 400 {
		var wdErr wdError
		_ = json.Unmarshal(envelope.Value, &wdErr)
		if wdErr.Error == "no such element" {
			return domain.ErrElementNotFound
		}
		if wdErr.Error != "" {
			return fmt.Errorf("appium %s: %s", wdErr.Error, wdErr.Message)
		}
		return fmt.Errorf("appium request failed with status %d", resp.StatusCode)
	}

	if out != nil && len(envelope.Value) > 0 {
		if err := json.Unmarshal(envelope.Value, out); err != nil {
			return fmt.Errorf("decoding appium value: %w", err)
		}
	}
	return nil
}
