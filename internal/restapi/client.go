// Package restapi talks to the inventory system's REST business gateway.
//
// Every call is a POST of a JSON body to
//
//	{base}/axis/api/rest/entity/{entity}/{operation}?sessionId={sid}
//	{base}/axis/api/rest/entity/{entity}/{elid}/{operation}?sessionId={sid}
//
// Successful responses carry their payload in "returnData"; failures carry
// "status.message". Any 5xx, or a refused session, is a REMOTE_SERVICE error.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/roach88/topoload/internal/inventory"
)

const (
	loginPath  = "/axis/api/rest/businessGateway/login"
	logoutPath = "/axis/api/rest/businessGateway/logout"
	entityPath = "/axis/api/rest/entity"
)

// Session holds the connection settings for one gateway. It is passed
// explicitly to the client; nothing is read from globals.
type Session struct {
	BaseURL   string
	User      string
	Password  string
	ManID     string
	UserGroup string
	Timeout   time.Duration
}

func (s Session) withDefaults() Session {
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	if s.ManID == "" {
		s.ManID = "1001"
	}
	if s.UserGroup == "" {
		s.UserGroup = "admin_" + s.ManID + "|G"
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	return s
}

// Client is a gateway client bound to one session.
//
// Thread-safety: safe for concurrent use once logged in.
type Client struct {
	session Session
	http    *http.Client
	logger  *slog.Logger

	mu        sync.RWMutex
	sessionID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSessionID installs an already established session id, skipping Login.
func WithSessionID(sid string) Option {
	return func(c *Client) { c.sessionID = sid }
}

// New creates a client. Call Login before issuing entity requests.
func New(session Session, opts ...Option) *Client {
	session = session.withDefaults()
	c := &Client{
		session: session,
		http:    &http.Client{Timeout: session.Timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the current session id, "" when logged out.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Login acquires a new session id. Safe to call again to re-login.
func (c *Client) Login(ctx context.Context) error {
	body := map[string]any{
		"user":          c.session.User,
		"password":      c.session.Password,
		"manId":         c.session.ManID,
		"userGroupName": c.session.UserGroup,
	}
	status, raw, err := c.post(ctx, loginPath, nil, body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return inventory.NewRemoteServiceError("login", status, statusMessage(raw))
	}
	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("login: decode response: %w", err)
	}
	if out.SessionID == "" {
		return inventory.NewRemoteServiceError("login", status, "no sessionId in response")
	}

	c.mu.Lock()
	c.sessionID = out.SessionID
	c.mu.Unlock()
	c.logger.Info("logged in to inventory", "base_url", c.session.BaseURL, "user", c.session.User)
	return nil
}

// Logout ends the current session. A client without a session is a no-op.
func (c *Client) Logout(ctx context.Context) error {
	sid := c.SessionID()
	if sid == "" {
		return nil
	}
	status, raw, err := c.post(ctx, logoutPath, url.Values{"sessionId": {sid}}, map[string]any{})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return inventory.NewRemoteServiceError("logout", status, statusMessage(raw))
	}
	c.mu.Lock()
	c.sessionID = ""
	c.mu.Unlock()
	return nil
}

// Response is a decoded gateway envelope.
type Response struct {
	StatusCode int
	Success    bool
	Data       json.RawMessage
	Message    string
}

// Request calls entity/{entity}/{operation}.
func (c *Client) Request(ctx context.Context, entity inventory.Kind, operation string, body any) (*Response, error) {
	return c.entityCall(ctx, fmt.Sprintf("%s/%s/%s", entityPath, entity, operation), string(entity)+"/"+operation, body)
}

// ElidRequest calls entity/{entity}/{elid}/{operation}.
func (c *Client) ElidRequest(ctx context.Context, entity inventory.Kind, elid, operation string, body any) (*Response, error) {
	path := fmt.Sprintf("%s/%s/%s/%s", entityPath, entity, url.PathEscape(elid), operation)
	return c.entityCall(ctx, path, string(entity)+"/"+operation, body)
}

func (c *Client) entityCall(ctx context.Context, path, op string, body any) (*Response, error) {
	sid := c.SessionID()
	if sid == "" {
		return nil, inventory.NewRemoteServiceError(op, http.StatusUnauthorized, "not logged in")
	}

	c.logger.Debug("inventory request", "operation", op)
	status, raw, err := c.post(ctx, path, url.Values{"sessionId": {sid}}, body)
	if err != nil {
		return nil, err
	}

	if status >= 500 || status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, inventory.NewRemoteServiceError(op, status, statusMessage(raw))
	}

	resp := &Response{StatusCode: status, Success: status >= 200 && status < 300}
	if resp.Success {
		var env struct {
			ReturnData json.RawMessage `json:"returnData"`
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &env); err != nil {
				return nil, fmt.Errorf("%s: decode response: %w", op, err)
			}
		}
		resp.Data = env.ReturnData
		return resp, nil
	}

	resp.Message = statusMessage(raw)
	c.logger.Warn("inventory request rejected", "operation", op, "status", status, "message", resp.Message)
	return resp, nil
}

// post sends one JSON request and returns the status and raw body.
// Transport failures (including timeouts) become REMOTE_SERVICE errors.
func (c *Client) post(ctx context.Context, path string, query url.Values, body any) (int, []byte, error) {
	payload, err := inventory.MarshalCanonical(body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: encode body: %w", path, err)
	}

	target := c.session.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("%s: build request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &inventory.Error{
			Code:    inventory.ErrCodeRemoteService,
			Message: "request to " + path + " failed",
			Err:     err,
		}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, &inventory.Error{
			Code:    inventory.ErrCodeRemoteService,
			Message: "read response of " + path,
			Err:     err,
		}
	}
	return res.StatusCode, raw, nil
}

// statusMessage extracts status.message from an error envelope, falling
// back to the raw body.
func statusMessage(raw []byte) string {
	var env struct {
		Status struct {
			Message string `json:"message"`
		} `json:"status"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Status.Message != "" {
		return env.Status.Message
	}
	return strings.TrimSpace(string(raw))
}

// Records decodes returnData as a list of records. The gateway returns
// either a JSON array or an object keyed by elid.
func (r *Response) Records() ([]inventory.Record, error) {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return []inventory.Record{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(r.Data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode returnData: %w", err)
	}

	var items []any
	switch val := v.(type) {
	case []any:
		items = val
	case map[string]any:
		for _, k := range sortedMapKeys(val) {
			items = append(items, val[k])
		}
	default:
		return nil, fmt.Errorf("decode returnData: unexpected %T", v)
	}

	records := make([]inventory.Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decode returnData[%d]: unexpected %T", i, item)
		}
		records = append(records, inventory.NewRecord(obj))
	}
	return records, nil
}

// Object decodes returnData as a single object.
func (r *Response) Object() (map[string]any, error) {
	obj := map[string]any{}
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return obj, nil
	}
	dec := json.NewDecoder(bytes.NewReader(r.Data))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode returnData: %w", err)
	}
	return obj, nil
}
