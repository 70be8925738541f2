package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Error indicates that a credential could not be acquired or was rejected
// by the backend even after re-authentication.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Credential is an opaque Authorization header value. ExpiresAt is zero when
// the token endpoint did not report a lifetime; such credentials are held
// until Invalidate is called.
type Credential struct {
	Header    string
	ExpiresAt time.Time
}

func (c *Credential) expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Provider caches a single workspace credential and refreshes it on demand.
// With client credentials configured it performs an OAuth2 client-credentials
// exchange against the token endpoint; with a static token configured it
// serves that token without any exchange.
type Provider struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	staticToken  string

	mu     sync.Mutex
	cached *Credential
}

func NewProvider(tokenURL, clientID, clientSecret, staticToken string, timeout time.Duration) *Provider {
	return &Provider{
		httpClient:   &http.Client{Timeout: timeout},
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		staticToken:  staticToken,
	}
}

// Credential returns the cached credential, fetching a fresh one if the cache
// is empty or past expiry. The check-fetch-store sequence holds the lock, so
// concurrent callers share one exchange instead of racing several.
func (p *Provider) Credential(ctx context.Context) (*Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && !p.cached.expired(time.Now()) {
		return p.cached, nil
	}

	cred, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}
	p.cached = cred
	return cred, nil
}

// Invalidate discards the cached credential. The next Credential call
// re-authenticates. Called by the request gateway when the backend rejects
// the current credential.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (p *Provider) fetch(ctx context.Context) (*Credential, error) {
	if p.staticToken != "" {
		return &Credential{Header: "Bearer " + p.staticToken}, nil
	}
	if p.clientID == "" || p.clientSecret == "" {
		return nil, &Error{Reason: "no credentials configured (set CLIENT_ID/CLIENT_SECRET or WORKSPACE_TOKEN)"}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "all-apis")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Reason: "failed to build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.clientID, p.clientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Reason: "token endpoint unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Reason: "failed to read token response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Reason: fmt.Sprintf("token endpoint rejected exchange (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, &Error{Reason: "malformed token response", Err: err}
	}
	if tok.AccessToken == "" {
		return nil, &Error{Reason: "token response missing access_token"}
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	cred := &Credential{Header: tokenType + " " + tok.AccessToken}
	if tok.ExpiresIn > 0 {
		lifetime := time.Duration(tok.ExpiresIn) * time.Second
		// Renew slightly early so a token does not expire mid-request,
		// capped at half the lifetime so short-lived tokens still cache
		margin := 30 * time.Second
		if lifetime/2 < margin {
			margin = lifetime / 2
		}
		cred.ExpiresAt = time.Now().Add(lifetime - margin)
	}
	return cred, nil
}
