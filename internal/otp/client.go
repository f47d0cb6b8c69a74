package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gatewise/gatewise/internal/config"
	"github.com/sirupsen/logrus"
)

// Client talks to the external OTP delivery provider (a Twilio-Verify
// style API). The provider owns code generation, delivery and expiry;
// each destination has at most one outstanding challenge.
type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	serviceSID string
	channel    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(cfg *config.VerifyConfig, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		serviceSID: cfg.ServiceSID,
		channel:    cfg.Channel,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Send asks the provider to deliver a fresh challenge to destination.
func (c *Client) Send(ctx context.Context, destination string) error {
	form := url.Values{}
	form.Set("To", destination)
	form.Set("Channel", c.channel)

	endpoint := fmt.Sprintf("%s/v2/Services/%s/Verifications", c.baseURL, c.serviceSID)
	status, _, err := c.post(ctx, endpoint, form)
	if err != nil {
		return fmt.Errorf("send verification request failed: %w", err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("send verification returned status %d", status)
	}
	return nil
}

// Check submits a code for the destination's outstanding challenge and
// returns the provider's verification status (e.g. "approved", "pending").
func (c *Client) Check(ctx context.Context, destination, code string) (string, error) {
	form := url.Values{}
	form.Set("To", destination)
	form.Set("Code", code)

	endpoint := fmt.Sprintf("%s/v2/Services/%s/VerificationCheck", c.baseURL, c.serviceSID)
	status, body, err := c.post(ctx, endpoint, form)
	if err != nil {
		return "", fmt.Errorf("check verification request failed: %w", err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("check verification returned status %d", status)
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode verification check: %w", err)
	}
	return payload.Status, nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
