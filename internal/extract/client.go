// Package extract turns free-text messages into structured expense records
// via an OpenAI-compatible chat completions call.
//
// Relative date expressions ("昨天", "前天") are resolved by the model
// against a caller-supplied reference date embedded in the system prompt.
// The model's output is treated as untrusted: anything that does not match
// the {item, amount, date?} shape counts as "no expense detected", and a
// malformed date falls back to the reference date rather than reaching the
// ledger.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const systemPromptFormat = "你是一個記帳助手。今天的日期是 %s。" +
	"請從使用者的文字中提取『消費項目』、『金額』與『消費日期』，" +
	"並只回傳 JSON 格式，例如：{\"item\": \"午餐\", \"amount\": 150, \"date\": \"2025/12/27\"}。" +
	"若文字提到相對日期（例如「昨天」、「前天」），請依今天的日期換算成 YYYY/MM/DD 的絕對日期；" +
	"若沒有提到日期，請省略 date 欄位。如果無法解析出消費內容，請只回傳 null。"

// Client issues extraction requests against a chat completions endpoint.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// ClientConfig holds extraction backend settings.
type ClientConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates an extraction client.
func NewClient(config ClientConfig, logger *slog.Logger) *Client {
	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		apiKey:     config.APIKey,
		model:      config.Model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger,
	}
}

// Chat completions wire format (request side).
type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Extract asks the model for a structured record from text, resolving
// relative dates against referenceDate.
//
// Returns (nil, nil) when the input carries no extractable expense or the
// model's output fails schema validation; an error is returned only for
// transport-level failures. Callers treat both the same way: skip the
// event, no reply, no ledger write.
func (c *Client) Extract(ctx context.Context, text string, referenceDate time.Time) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPromptFormat, FormatDate(referenceDate))},
			{Role: "user", Content: text},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("extract: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("extract: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("extract: status %d: %s", resp.StatusCode, detail)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("extract: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("extract: response has no choices")
	}

	return c.parseModelOutput(parsed.Choices[0].Message.Content, referenceDate), nil
}

// parseModelOutput validates the model's JSON against the expected shape.
// Any mismatch means "no record extracted"; it is never an error.
func (c *Client) parseModelOutput(content string, referenceDate time.Time) *Record {
	content = strings.TrimSpace(content)
	if content == "" || content == "null" {
		return nil
	}

	var loose struct {
		Item   string      `json:"item"`
		Amount json.Number `json:"amount"`
		Date   string      `json:"date"`
	}
	if err := json.Unmarshal([]byte(content), &loose); err != nil {
		c.logger.Warn("model output is not the expected shape, skipping", "error", err)
		return nil
	}

	if strings.TrimSpace(loose.Item) == "" {
		return nil
	}
	amount, err := loose.Amount.Float64()
	if err != nil || amount == 0 {
		return nil
	}

	record := &Record{
		Item:   strings.TrimSpace(loose.Item),
		Amount: amount,
		Date:   loose.Date,
	}

	// Deterministic guard over the model's date arithmetic: an absent or
	// malformed date resolves to the reference date instead of silently
	// corrupting the ledger.
	if record.Date == "" {
		record.Date = FormatDate(referenceDate)
	} else if _, err := time.Parse(DateLayout, record.Date); err != nil {
		c.logger.Warn("model returned malformed date, using reference date",
			"date", record.Date,
		)
		record.Date = FormatDate(referenceDate)
	}

	return record
}
