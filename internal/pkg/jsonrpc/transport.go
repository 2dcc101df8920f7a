// internal/pkg/jsonrpc/transport.go
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	xerrors "erp-sync-service/internal/pkg/errors"
)

const sessionCookie = "session_id"

// Transport is the narrow contract the session manager needs from the ERP.
type Transport interface {
	Authenticate(ctx context.Context, database, login, password string) (*AuthResult, error)
	Call(ctx context.Context, token, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error)
}

// AuthResult is what a successful login exchange yields.
type AuthResult struct {
	SessionToken string
	UserID       int64
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *errorBody      `json:"error"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

// HTTPTransport talks JSON-RPC 2.0 over HTTP to an Odoo-style ERP.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	nextID  atomic.Int64
}

func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Authenticate performs the login exchange. The token is read from the
// session cookie, falling back to result.session_id.
func (t *HTTPTransport) Authenticate(ctx context.Context, database, login, password string) (*AuthResult, error) {
	params := map[string]any{
		"db":       database,
		"login":    login,
		"password": password,
	}

	resp, httpResp, err := t.post(ctx, "/web/session/authenticate", "", params)
	if err != nil {
		return nil, &xerrors.AuthenticationError{Reason: "transport failure", Err: err}
	}
	if resp.Error != nil {
		rpcErr := resp.Error.toRPCError()
		if IsAccessDenied(rpcErr) {
			return nil, &xerrors.AuthenticationError{Reason: "credentials rejected", Rejected: true, Err: rpcErr}
		}
		return nil, &xerrors.AuthenticationError{Reason: "login exchange failed", Err: rpcErr}
	}

	var result struct {
		UID       json.RawMessage `json:"uid"`
		SessionID string          `json:"session_id"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, &xerrors.AuthenticationError{Reason: "malformed response", Err: err}
	}

	// uid is false when the login/password pair is refused
	if len(result.UID) == 0 || string(result.UID) == "false" || string(result.UID) == "null" {
		return nil, &xerrors.AuthenticationError{Reason: "credentials rejected", Rejected: true}
	}
	var uid int64
	if err := json.Unmarshal(result.UID, &uid); err != nil || uid <= 0 {
		return nil, &xerrors.AuthenticationError{Reason: "malformed response: missing uid"}
	}

	token := result.SessionID
	for _, c := range httpResp.Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			token = c.Value
			break
		}
	}
	if token == "" {
		return nil, &xerrors.AuthenticationError{Reason: "malformed response: missing session token"}
	}

	return &AuthResult{SessionToken: token, UserID: uid}, nil
}

// Call invokes model.method through call_kw with the session token attached.
func (t *HTTPTransport) Call(ctx context.Context, token, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	params := map[string]any{
		"model":  model,
		"method": method,
		"args":   args,
		"kwargs": kwargs,
	}

	resp, _, err := t.post(ctx, fmt.Sprintf("/web/dataset/call_kw/%s/%s", model, method), token, params)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.toRPCError()
	}
	return resp.Result, nil
}

func (t *HTTPTransport) post(ctx context.Context, path, token string, params any) (*response, *http.Response, error) {
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  params,
		ID:      t.nextID.Add(1),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}

	httpResp, err := t.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		rpcErr := &RPCError{Code: httpResp.StatusCode, Message: strings.TrimSpace(string(raw))}
		return nil, nil, rpcErr
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, fmt.Errorf("malformed JSON-RPC response: %w", err)
	}
	return &resp, httpResp, nil
}

func (b *errorBody) toRPCError() *RPCError {
	return &RPCError{
		Code:        b.Code,
		Message:     b.Message,
		Name:        b.Data.Name,
		DataMessage: b.Data.Message,
	}
}
