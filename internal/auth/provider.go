// Package auth is the HTTP client for the external auth provider.
// Sessions, credentials and accounts live with the provider; this
// service only validates tokens and forwards registrations.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidSession is returned when the provider rejects a token.
var ErrInvalidSession = errors.New("invalid session")

// Provider talks to the auth service over HTTP.
type Provider struct {
	endpoint string
	http     *http.Client
}

// NewProvider creates an auth provider client.
func NewProvider(endpoint string) *Provider {
	return &Provider{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 5 * time.Second},
	}
}

// Validate checks a session token and returns the account it
// belongs to.
func (p *Provider) Validate(ctx context.Context, token string) (uuid.UUID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/session", nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.http.Do(req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("session validation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return uuid.Nil, ErrInvalidSession
	}
	if resp.StatusCode != http.StatusOK {
		return uuid.Nil, fmt.Errorf("session validation returned status %d", resp.StatusCode)
	}

	var body struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode session response: %w", err)
	}

	return body.UserID, nil
}

// Register creates an account with the provider.
func (p *Provider) Register(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/users", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registration returned status %d", resp.StatusCode)
	}

	return nil
}
