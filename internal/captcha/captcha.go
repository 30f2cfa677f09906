// Package captcha verifies hCaptcha tokens against the siteverify
// endpoint. Used by account registration only.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verifier validates captcha tokens with the upstream service.
type Verifier struct {
	verifyURL string
	secret    string
	http      *http.Client
}

// NewVerifier creates a captcha verifier.
func NewVerifier(verifyURL, secret string) *Verifier {
	return &Verifier{
		verifyURL: verifyURL,
		secret:    secret,
		http:      &http.Client{Timeout: 5 * time.Second},
	}
}

// Verify checks a captcha response token. Any transport failure,
// non-200 status or reported error code counts as not verified.
func (v *Verifier) Verify(ctx context.Context, token string) (bool, error) {
	form := url.Values{}
	form.Set("response", token)
	form.Set("secret", v.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("captcha verification failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("captcha verification returned status %d", resp.StatusCode)
	}

	var body struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode captcha response: %w", err)
	}

	if !body.Success && len(body.ErrorCodes) > 0 {
		return false, fmt.Errorf("captcha rejected: %s", strings.Join(body.ErrorCodes, ", "))
	}

	return body.Success, nil
}
