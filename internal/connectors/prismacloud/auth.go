package prismacloud

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

const loginPath = "/login"

// Credential is one issued bearer token.
type Credential struct {
	Token    string
	IssuedAt time.Time
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Authenticator owns the shared credential. Every request reads the current
// token through the TokenSource adapter; a refresh replaces it atomically.
// Concurrent refresh attempts coalesce into a single login exchange so a
// burst of workers hitting the refresh threshold together produces one
// /login call, not one per worker.
type Authenticator struct {
	loginURL  string
	accessKey string
	secretKey string
	client    *http.Client

	mu      sync.Mutex
	cred    Credential
	pending *refreshCall
}

type refreshCall struct {
	done chan struct{}
	cred Credential
	err  error
}

// NewAuthenticator builds an Authenticator for the given API root. The
// client only performs the login exchange; API traffic goes through the
// Client's own transport.
func NewAuthenticator(baseURL, accessKey, secretKey string, client *http.Client) *Authenticator {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Authenticator{
		loginURL:  strings.TrimRight(baseURL, "/") + loginPath,
		accessKey: accessKey,
		secretKey: secretKey,
		client:    client,
	}
}

// Token returns the current credential, running the login exchange first if
// none has been issued yet.
func (a *Authenticator) Token(ctx context.Context) (Credential, error) {
	a.mu.Lock()
	cred := a.cred
	a.mu.Unlock()
	if cred.Token != "" {
		return cred, nil
	}
	return a.Refresh(ctx)
}

// Refresh exchanges the key pair for a fresh token and installs it as the
// shared credential. If an exchange is already in flight the caller waits
// for its outcome instead of starting another.
func (a *Authenticator) Refresh(ctx context.Context) (Credential, error) {
	a.mu.Lock()
	if p := a.pending; p != nil {
		a.mu.Unlock()
		select {
		case <-p.done:
			return p.cred, p.err
		case <-ctx.Done():
			return Credential{}, ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	a.pending = call
	a.mu.Unlock()

	cred, err := a.exchange(ctx)

	a.mu.Lock()
	call.cred, call.err = cred, err
	if err == nil {
		a.cred = cred
	}
	a.pending = nil
	a.mu.Unlock()
	close(call.done)

	if err == nil {
		logger.L().Debug("credential refreshed", zap.Time("issued_at", cred.IssuedAt))
	}
	return cred, err
}

// exchange performs the POST /login call. Every failure mode wraps
// domain.ErrAuthFailure: without a credential the pipeline cannot proceed.
func (a *Authenticator) exchange(ctx context.Context) (Credential, error) {
	payload, err := json.Marshal(loginRequest{Username: a.accessKey, Password: a.secretKey})
	if err != nil {
		return Credential{}, authError(0, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.loginURL, bytes.NewReader(payload))
	if err != nil {
		return Credential{}, authError(0, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return Credential{}, authError(0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet))
	if err != nil {
		return Credential{}, authError(resp.StatusCode, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return Credential{}, authError(resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var lr loginResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return Credential{}, authError(resp.StatusCode, "undecodable login response")
	}
	if lr.Token == "" {
		return Credential{}, authError(resp.StatusCode, "login response carried no token")
	}
	return Credential{Token: lr.Token, IssuedAt: time.Now()}, nil
}

// TokenSource adapts the authenticator to oauth2.TokenSource so the API
// client's transport injects the bearer credential. The source is consulted
// on every request, which is what makes a mid-run refresh visible to the
// next request immediately.
func (a *Authenticator) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, auth: a}
}

type tokenSource struct {
	ctx  context.Context
	auth *Authenticator
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	cred, err := s.auth.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: cred.Token, TokenType: "Bearer"}, nil
}
