package fbr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"einvoice/internal/config"
	"einvoice/internal/metrics"
)

var (
	ErrMissingToken = errors.New("organization has no FBR token configured")
	ErrUnauthorized = errors.New("FBR rejected the token")
)

// APIError is a non-2xx reply from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fbr: http %d: %s", e.StatusCode, e.Message)
}

// Client talks to the FBR Digital Invoicing gateway.
type Client struct {
	baseURL         string
	registrationURL string
	sandbox         bool
	http            *http.Client
	metrics         *metrics.Metrics
}

func NewClient(cfg config.FBRConfig, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		registrationURL: cfg.RegistrationURL,
		sandbox:         cfg.Sandbox,
		http:            &http.Client{Timeout: timeout},
		metrics:         m,
	}
}

func (c *Client) endpoint(name string) string {
	if c.sandbox {
		name += "_sb"
	}
	return c.baseURL + "/" + name
}

// ValidateInvoice asks the gateway to check an invoice without recording it.
func (c *Client) ValidateInvoice(ctx context.Context, token string, payload InvoicePayload) (*Response, error) {
	var resp Response
	if err := c.call(ctx, "validate", c.endpoint("validateinvoicedata"), token, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PostInvoice records an invoice; a valid reply carries the IRN.
func (c *Client) PostInvoice(ctx context.Context, token string, payload InvoicePayload) (*Response, error) {
	var resp Response
	if err := c.call(ctx, "post", c.endpoint("postinvoicedata"), token, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegistrationType looks up whether ntnCnic is a registered sales tax person on date.
func (c *Client) RegistrationType(ctx context.Context, token, ntnCnic string, date time.Time) (string, error) {
	var resp registrationResponse
	req := registrationRequest{RegistrationNo: ntnCnic, Date: date.Format("2006-01-02")}
	if err := c.call(ctx, "registration", c.registrationURL, token, req, &resp); err != nil {
		return "", err
	}
	if t := strings.TrimSpace(resp.RegistrationType); t != "" {
		return t, nil
	}
	if resp.StatusCode == StatusValid {
		return "Registered", nil
	}
	return "Unregistered", nil
}

func (c *Client) call(ctx context.Context, operation, url, token string, in, out any) (err error) {
	started := time.Now()
	defer func() { c.metrics.ObserveFBRCall(operation, started, err) }()

	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fbr %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("fbr %s: read body: %w", operation, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode >= http.StatusBadRequest {
		// validation failures may still come back as a regular response body
		var vr Response
		if jsonErr := json.Unmarshal(raw, &vr); jsonErr == nil && vr.ValidationResponse.StatusCode != "" {
			if r, ok := out.(*Response); ok {
				*r = vr
				return nil
			}
		}
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("fbr %s: decode response: %w", operation, err)
	}
	return nil
}
