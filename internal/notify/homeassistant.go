package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HAConfig holds the configuration for Home Assistant API access.
type HAConfig struct {
	// BaseURL is the Home Assistant API base URL
	BaseURL string

	// Token is the long-lived access token for API authentication
	Token string

	// SupervisorToken is the Supervisor API token (for addon mode)
	SupervisorToken string

	// Service is the notify service name, e.g. "mobile_app_phone"
	Service string

	// Timeout for API requests
	Timeout time.Duration
}

// IsAddonMode returns true if running as a Home Assistant addon.
func (c HAConfig) IsAddonMode() bool {
	return c.SupervisorToken != ""
}

// AuthToken returns the appropriate authentication token.
func (c HAConfig) AuthToken() string {
	if c.IsAddonMode() {
		return c.SupervisorToken
	}
	return c.Token
}

// HASender delivers notifications through a Home Assistant notify service.
type HASender struct {
	config     HAConfig
	httpClient *http.Client
}

// NewHASender creates a new Home Assistant notify sender.
func NewHASender(config HAConfig) *HASender {
	if config.Service == "" {
		config.Service = "notify"
	}
	return &HASender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

var titles = map[Kind]string{
	KindEventReminder: "Event reminder",
	KindClassReminder: "Class reminder",
	KindOffDayDigest:  "Tomorrow",
}

// Send implements Sender.
func (s *HASender) Send(ctx context.Context, n Notification) error {
	data := map[string]any{
		"title":   titles[n.Kind],
		"message": n.Text,
		"data": map[string]any{
			"user_id": strconv.FormatInt(n.UserID, 10),
			"kind":    string(n.Kind),
		},
	}
	return s.callService(ctx, "notify", s.config.Service, data)
}

// callService calls a Home Assistant service.
func (s *HASender) callService(ctx context.Context, domain, service string, data any) error {
	path := fmt.Sprintf("/api/services/%s/%s", domain, service)

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, body)
	}
	return nil
}

// newRequest creates a new HTTP request with authentication.
func (s *HASender) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.AuthToken())
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
