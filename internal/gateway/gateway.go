package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/user/catalog-chat/internal/auth"
	"github.com/user/catalog-chat/internal/middleware"
)

// CredentialSource supplies the Authorization header for outbound calls.
// Implemented by auth.Provider.
type CredentialSource interface {
	Credential(ctx context.Context) (*auth.Credential, error)
	Invalidate()
}

// Request describes one outbound backend call. Op labels the call for
// logging and metrics only; it is never sent upstream.
type Request struct {
	Op     string
	Method string
	URL    string
	Body   []byte
}

// Result is a successful backend response. The body is passed through
// unparsed; callers own the payload schema.
type Result struct {
	Status int
	Body   []byte
}

// Sender is the outbound-call contract consumed by the chat and catalog
// clients. Implemented by Gateway.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Result, error)
}

type Gateway struct {
	creds      CredentialSource
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

func New(creds CredentialSource, timeout time.Duration) *Gateway {
	st := gobreaker.Settings{
		Name:        "Backend-CB",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	}

	return &Gateway{
		creds: creds,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cb: gobreaker.NewCircuitBreaker(st),
	}
}

// Send attaches the current credential, performs the call and classifies the
// outcome. An auth-rejection response triggers exactly one invalidate plus
// retry with a fresh credential; a second rejection is terminal. No other
// outcome is ever retried.
func (g *Gateway) Send(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	res, err := g.send(ctx, req)
	middleware.RecordBackendRequest(req.Op, outcome(err), time.Since(start).Seconds())
	return res, err
}

func (g *Gateway) send(ctx context.Context, req *Request) (*Result, error) {
	logger := slog.With("op", req.Op, "url", req.URL)

	status, body, err := g.attempt(ctx, req)
	if err != nil {
		return nil, err
	}

	if authRejected(status) {
		logger.Warn("Credential rejected, re-authenticating", "status", status)
		g.creds.Invalidate()

		status, body, err = g.attempt(ctx, req)
		if err != nil {
			return nil, err
		}
		if authRejected(status) {
			logger.Warn("Credential rejected after refresh", "status", status)
			return nil, &auth.Error{Reason: "backend rejected a freshly acquired credential"}
		}
	}

	return classify(status, body)
}

func (g *Gateway) attempt(ctx context.Context, req *Request) (int, []byte, error) {
	cred, err := g.creds.Credential(ctx)
	if err != nil {
		return 0, nil, err
	}

	var payload io.Reader
	if req.Body != nil {
		payload = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, payload)
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Authorization", cred.Header)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	respInterface, cbErr := g.cb.Execute(func() (interface{}, error) {
		return g.httpClient.Do(httpReq)
	})
	if cbErr != nil {
		if cbErr == gobreaker.ErrOpenState {
			slog.Warn("Circuit breaker open", "op", req.Op)
		}
		return 0, nil, &TransportError{Err: cbErr}
	}

	resp := respInterface.(*http.Response)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	return resp.StatusCode, body, nil
}

func authRejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// serviceError is the error shape the metadata and serving APIs return.
type serviceError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func classify(status int, body []byte) (*Result, error) {
	var svcErr serviceError
	parsed := json.Unmarshal(body, &svcErr) == nil

	if status >= 200 && status < 300 {
		// Some services report application errors inside a 200. Require
		// error_code here so a chat reply carrying a top-level "message"
		// string is not mistaken for one.
		if parsed && svcErr.ErrorCode != "" {
			return nil, &APIError{Status: status, Code: svcErr.ErrorCode, Message: svcErr.Message}
		}
		return &Result{Status: status, Body: body}, nil
	}

	if parsed && (svcErr.ErrorCode != "" || svcErr.Message != "") {
		return nil, &APIError{Status: status, Code: svcErr.ErrorCode, Message: svcErr.Message}
	}

	return nil, &TransportError{Err: fmt.Errorf("unexpected status %d with unparseable body", status)}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return "auth_error"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return "api_error"
	}
	return "transport_error"
}
