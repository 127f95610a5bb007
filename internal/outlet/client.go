// Package outlet drives smart outlets behind an AirOS-style HTTP controller:
// cookie session login, per-device field reads, output writes and a
// background blink worker.
package outlet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// State is the energized state of an outlet.
type State int

const (
	Off State = 0
	On  State = 1
)

// Invert returns the complementary state.
func (s State) Invert() State {
	if s == Off {
		return On
	}
	return Off
}

func (s State) String() string {
	if s == On {
		return "on"
	}
	return "off"
}

// loginMarker is how the controller's login page is recognised when a
// session has expired.
const loginMarker = "Login"

// Config holds controller connection settings.
type Config struct {
	BaseURL       string        `json:"baseUrl" split_words:"true"`
	Username      string        `json:"username" split_words:"true"`
	Password      string        `json:"password" split_words:"true"`
	SessionCookie string        `json:"sessionCookie" split_words:"true"`
	BlinkInterval time.Duration `json:"blinkInterval" split_words:"true"`
	Timeout       time.Duration `json:"timeout" split_words:"true"`
}

// DefaultConfig returns the factory settings of the controller.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://10.10.195.32",
		Username:      "ubnt",
		Password:      "ubnt",
		SessionCookie: "AIROS_SESSIONID",
		BlinkInterval: time.Second,
		Timeout:       10 * time.Second,
	}
}

// Client talks to one outlet controller. It is safe for concurrent use; the
// blink worker and manual toggles share the same session.
type Client struct {
	cfg  Config
	base *url.URL
	http *http.Client

	mu    sync.Mutex // guards token and serialises re-authentication
	token string

	blink blinker
}

// NewClient creates a Client. No request is made until Authenticate.
func NewClient(cfg Config) (*Client, error) {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = def.BaseURL
	}
	if strings.TrimSpace(cfg.SessionCookie) == "" {
		cfg.SessionCookie = def.SessionCookie
	}
	if cfg.BlinkInterval <= 0 {
		cfg.BlinkInterval = def.BlinkInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse outlet base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		cfg:  cfg,
		base: base,
		http: &http.Client{Jar: jar, Timeout: cfg.Timeout},
	}, nil
}

// Authenticated reports whether a session token is held.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// Authenticate logs in and stores the session cookie.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	form := url.Values{
		"username": {c.cfg.Username},
		"password": {c.cfg.Password},
	}
	resp, err := c.do(ctx, http.MethodPost, "/login.cgi", form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	token := ""
	for _, ck := range resp.Cookies() {
		if ck.Name == c.cfg.SessionCookie {
			token = ck.Value
		}
	}
	if token == "" {
		// The controller may have issued the cookie before the login post.
		for _, ck := range c.http.Jar.Cookies(c.base) {
			if ck.Name == c.cfg.SessionCookie {
				token = ck.Value
			}
		}
	}
	if token == "" {
		c.token = ""
		slog.Warn("Outlet login returned no session cookie", "cookie", c.cfg.SessionCookie)
		return ErrNoSessionCookie
	}
	c.token = token
	slog.Info("Outlet session established", "base", c.base.String())
	return nil
}

// ReadField fetches one field of a device. A login page in place of data
// triggers exactly one re-authentication and one retried GET.
func (c *Client) ReadField(ctx context.Context, deviceID int, field string) (any, error) {
	if !c.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	path := "/sensors/" + strconv.Itoa(deviceID) + "/" + url.PathEscape(field)

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.Contains(body, loginMarker) {
		slog.Info("Outlet session expired, re-authenticating", "device", deviceID)
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		if body, err = c.get(ctx, path); err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		slog.Debug("Outlet returned non-json body", "device", deviceID, "body", truncate(body, 200))
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return v, nil
}

// Output returns the current output state of a device, read from the
// {"sensors":[{"output":v}]} document.
func (c *Client) Output(ctx context.Context, deviceID int) (State, error) {
	v, err := c.ReadField(ctx, deviceID, "output")
	if err != nil {
		return Off, err
	}
	return parseOutput(v)
}

// ToggleOutput writes a new output state. With desired nil the current
// state is inverted. The current state is always read first; if it cannot
// be determined nothing is written.
func (c *Client) ToggleOutput(ctx context.Context, deviceID int, desired *State) (State, error) {
	current, err := c.Output(ctx, deviceID)
	if err != nil {
		return Off, fmt.Errorf("read output of outlet %d: %w", deviceID, err)
	}

	next := current.Invert()
	if desired != nil {
		next = *desired
	}
	form := url.Values{"output": {strconv.Itoa(int(next))}}
	resp, err := c.do(ctx, http.MethodPut, "/sensors/"+strconv.Itoa(deviceID), form)
	if err != nil {
		return Off, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	slog.Info("Outlet output set", "device", deviceID, "from", current, "to", next)
	return next, nil
}

func (c *Client) get(ctx context.Context, path string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", ErrTransport, path, err)
	}
	return string(data), nil
}

// do issues a request and maps network failures and HTTP error statuses to
// ErrTransport. The caller owns the response body on success.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) (*http.Response, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build %s %s: %w", ErrTransport, method, path, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrTransport, method, path, resp.StatusCode)
	}
	return resp, nil
}

func parseOutput(v any) (State, error) {
	doc, ok := v.(map[string]any)
	if !ok {
		return Off, ErrShapeMismatch
	}
	sensors, ok := doc["sensors"].([]any)
	if !ok || len(sensors) == 0 {
		return Off, ErrShapeMismatch
	}
	first, ok := sensors[0].(map[string]any)
	if !ok {
		return Off, ErrShapeMismatch
	}
	raw, ok := first["output"]
	if !ok {
		return Off, ErrShapeMismatch
	}
	switch n := raw.(type) {
	case float64:
		if n == 0 {
			return Off, nil
		}
		return On, nil
	case bool:
		if n {
			return On, nil
		}
		return Off, nil
	case string:
		if strings.TrimSpace(n) == "0" {
			return Off, nil
		}
		if strings.TrimSpace(n) == "1" {
			return On, nil
		}
	}
	return Off, fmt.Errorf("%w: output value %v", ErrShapeMismatch, raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
