// Package turnstile verifies Cloudflare Turnstile challenge tokens.
package turnstile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

// DefaultEndpoint is the siteverify API.
const DefaultEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

type Client struct {
	httpClient *http.Client
	endpoint   string
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify asks the provider whether token is a valid solve. An error means the
// provider could not be asked; a rejected token is a Challenge with Success false.
func (c *Client) Verify(ctx context.Context, secret, token, remoteIP string) (domain.Challenge, error) {
	form := url.Values{}
	form.Set("secret", secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("turnstile: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("turnstile: siteverify: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
		return domain.Challenge{}, fmt.Errorf("turnstile: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload siteverifyResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return domain.Challenge{}, fmt.Errorf("turnstile: decode response: %w", err)
	}
	return domain.Challenge{Success: payload.Success, ErrorCodes: payload.ErrorCodes}, nil
}
