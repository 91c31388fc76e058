// Package waflow is a minimal client for the third-party WhatsApp automation
// webhook that delivers order links to customers. The upstream service is a
// low-code automation flow and answers in several ad hoc response shapes;
// this package normalizes all of them into a single SendResult.
package waflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrTimeout is returned when the webhook call exceeds the configured abort
// timeout. Distinguished from other transport failures so the operator
// message can say "try again" rather than "check the integration".
var ErrTimeout = errors.New("waflow: request timed out")

// Client posts send commands to the automation webhook.
type Client struct {
	httpClient *http.Client
	webhookURL string
	debug      bool
}

// NewClient constructs a client with a fixed abort timeout.
func NewClient(webhookURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		webhookURL: webhookURL,
		debug:      os.Getenv("ENV") == "development",
	}
}

// SendRequest identifies the order for the automation flow's message template.
type SendRequest struct {
	Phone         string `json:"phone"`
	CustomerName  string `json:"customer_name"`
	BikeName      string `json:"bike_name"`
	OrderNumber   string `json:"order_number"`
	OrderURL      string `json:"order_url"`
	TotalDisplay  string `json:"total_display"`
}

// Send posts the request and normalizes the response. A non-nil error means
// the call itself failed (timeout or network); an API-reported failure comes
// back as a SendResult with OK=false and a human-readable message.
func (c *Client) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("waflow: marshal request: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("url", c.webhookURL).
			RawJSON("request", payload).
			Msg("[WAFLOW] outgoing request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("waflow: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("waflow: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("waflow: read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Int("status_code", resp.StatusCode).
			Bytes("response", body).
			Msg("[WAFLOW] incoming response")
	}

	result := ParseResponse(resp.StatusCode, body)
	return &result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
