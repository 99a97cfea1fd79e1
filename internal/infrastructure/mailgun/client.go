// Package mailgun delivers template emails through the Mailgun messages API.
package mailgun

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

// DefaultBaseURL is the public US region endpoint.
const DefaultBaseURL = "https://api.mailgun.net/v3"

// ProviderError is a non-2xx answer from Mailgun.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("mailgun: status=%d message=%s", e.Status, e.Message)
}

// Client sends one message per call.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// Send posts the envelope as a form-encoded message using the template
// named in it. Template variables travel as a JSON object in t:variables.
func (c *Client) Send(ctx context.Context, creds domain.MailCredentials, envelope domain.Envelope) error {
	if strings.TrimSpace(creds.Domain) == "" {
		return fmt.Errorf("mailgun: sending domain is not configured")
	}

	variables, err := json.Marshal(envelope.Variables)
	if err != nil {
		return fmt.Errorf("mailgun: encode template variables: %w", err)
	}

	form := url.Values{}
	form.Set("from", envelope.From)
	form.Set("to", envelope.To)
	form.Set("subject", envelope.Subject)
	form.Set("template", envelope.Template)
	form.Set("t:variables", string(variables))
	form.Set("h:Reply-To", envelope.ReplyTo)

	endpoint := c.baseURL + "/" + url.PathEscape(creds.Domain) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mailgun: build request: %w", err)
	}
	req.SetBasicAuth("api", creds.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailgun: send: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
		return &ProviderError{Status: res.StatusCode, Message: providerMessage(body)}
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

func providerMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || strings.TrimSpace(payload.Message) == "" {
		return "unknown provider error"
	}
	return payload.Message
}
