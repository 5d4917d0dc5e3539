package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/circuitbreaker"
)

const registerPath = "/api/notifications/register"

// BackendClient reports push tokens to the care backend. Every failure mode
// (circuit open, transport error, non-2xx status, unparseable body) collapses
// to a false result; the client never returns an error to its caller.
type BackendClient struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewBackendClient creates a client for the backend at baseURL. A hung
// backend is cut off by the timeout so registration never leaves the caller
// pending.
func NewBackendClient(baseURL string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *BackendClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

type registerRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"deviceType"`
}

type registerResponse struct {
	Success bool `json:"success"`
}

// Report sends the token and device type to the backend, authenticated by the
// session cookie. It returns true only when the backend explicitly
// acknowledges success.
func (c *BackendClient) Report(ctx context.Context, token Token, deviceType, sessionToken string) bool {
	if c.breaker != nil && !c.breaker.Allow() {
		c.logger.Warn("push backend circuit open, skipping token report",
			zap.String("breaker", c.breaker.Name()))
		return false
	}

	body, err := json.Marshal(registerRequest{Token: token.String(), DeviceType: deviceType})
	if err != nil {
		c.logger.Warn("encoding token report failed", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+registerPath, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("building token report request failed", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session_token", Value: sessionToken})

	resp, err := c.client.Do(req)
	if err != nil {
		c.fail(fmt.Errorf("posting token: %w", err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.fail(fmt.Errorf("backend returned status %d", resp.StatusCode))
		return false
	}

	var out registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.fail(fmt.Errorf("decoding backend response: %w", err))
		return false
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	return out.Success
}

func (c *BackendClient) fail(err error) {
	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
	c.logger.Warn("push token report failed", zap.Error(err))
}
