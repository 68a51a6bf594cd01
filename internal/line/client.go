package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultEndpoint is the platform's messaging API base URL.
const DefaultEndpoint = "https://api.line.me"

const defaultReplyTimeout = 10 * time.Second

// Client sends reply messages through the platform's reply API. The reply
// token from a webhook event is single-use and short-lived, so replies are
// best-effort: a failed reply is logged by the caller and never retried.
type Client struct {
	accessToken string
	endpoint    string
	httpClient  *http.Client
	logger      *slog.Logger
}

// ClientConfig holds reply client configuration.
type ClientConfig struct {
	// AccessToken is the channel access token (bearer auth).
	AccessToken string

	// Endpoint overrides DefaultEndpoint (tests only).
	Endpoint string

	// Timeout bounds one reply call.
	Timeout time.Duration
}

// NewClient creates a reply client.
func NewClient(config ClientConfig, logger *slog.Logger) *Client {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultReplyTimeout
	}

	return &Client{
		accessToken: config.AccessToken,
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// replyRequest is the wire format of the reply API.
type replyRequest struct {
	ReplyToken string         `json:"replyToken"`
	Messages   []replyMessage `json:"messages"`
}

type replyMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reply sends one text message for the given reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if c.accessToken == "" {
		return fmt.Errorf("reply: no access token configured")
	}
	if replyToken == "" {
		return fmt.Errorf("reply: empty reply token")
	}

	payload, err := json.Marshal(replyRequest{
		ReplyToken: replyToken,
		Messages:   []replyMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("reply: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/v2/bot/message/reply", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("reply: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The API returns a JSON error detail; keep a short slice for logs.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("reply: status %d: %s", resp.StatusCode, detail)
	}

	c.logger.Debug("reply sent", "status", resp.StatusCode)
	return nil
}
