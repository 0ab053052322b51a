package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ErrNoSession is returned when no usable session credential exists. Callers
// must treat it as non-retriable.
var ErrNoSession = errors.New("no active session")

// TokenSource yields a bearer credential for one outbound call. The batch
// extraction client asks for a fresh token before every attempt.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource serves a fixed token, typically a service credential
// loaded from the environment.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", ErrNoSession
	}
	return s.token, nil
}

// SessionTokenSource exchanges a long-lived refresh token for short-lived
// access tokens and caches them until shortly before expiry.
type SessionTokenSource struct {
	tokenURL     string
	apiKey       string
	refreshToken string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// expiryLeeway refreshes slightly early so a token never expires mid-call.
const expiryLeeway = 30 * time.Second

func NewSessionTokenSource(tokenURL, apiKey, refreshToken string) *SessionTokenSource {
	return &SessionTokenSource{
		tokenURL:     tokenURL,
		apiKey:       apiKey,
		refreshToken: refreshToken,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error,omitempty"`
}

func (s *SessionTokenSource) Token(ctx context.Context) (string, error) {
	if s.refreshToken == "" || s.tokenURL == "" {
		return "", ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && time.Now().Before(s.expiresAt.Add(-expiryLeeway)) {
		return s.accessToken, nil
	}

	body, err := json.Marshal(map[string]string{"refresh_token": s.refreshToken})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", ErrNoSession
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", ErrNoSession
	}

	s.accessToken = tr.AccessToken
	s.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return s.accessToken, nil
}
