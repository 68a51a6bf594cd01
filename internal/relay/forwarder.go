// Package relay forwards verified deliveries, byte-for-byte, to a
// downstream processor. The downstream does its own signature check, so
// the body must be the exact wire bytes — never a re-serialization.
package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mattjoyce/ledgerline/internal/config"
	"github.com/mattjoyce/ledgerline/internal/webhook"
)

// bodyPreviewLimit caps how much of the downstream response is kept for
// logging.
const bodyPreviewLimit = 200

// ForwardResult is the logged outcome of one forward. It is never surfaced
// to the original sender.
type ForwardResult struct {
	StatusCode int
	Body       string
}

// Forwarder relays raw deliveries to one configured target URL under a
// fixed deadline. At-most-once: no retry on any failure.
type Forwarder struct {
	targetURL           string
	timeout             time.Duration
	stripAcceptEncoding bool
	httpClient          *http.Client
	logger              *slog.Logger
}

// ForwarderConfig holds relay settings.
type ForwarderConfig struct {
	TargetURL           string
	Timeout             time.Duration
	StripAcceptEncoding bool
}

// New creates a Forwarder. An empty or malformed target is accepted here
// and reported as a configuration error at forward time, so a relay-mode
// process keeps serving even when misconfigured.
func New(cfg ForwarderConfig, logger *slog.Logger) *Forwarder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Forwarder{
		targetURL:           cfg.TargetURL,
		timeout:             timeout,
		stripAcceptEncoding: cfg.StripAcceptEncoding,
		// The default client follows redirects, which the downstream
		// (a script deployment answering 302) depends on.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// droppedHeaders are hop-by-hop headers that would corrupt the forwarded
// request if carried over.
var droppedHeaders = map[string]bool{
	"host":                true,
	"content-length":      true,
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

func (f *Forwarder) shouldDropHeader(name string) bool {
	lower := strings.ToLower(name)
	if droppedHeaders[lower] {
		return true
	}
	return f.stripAcceptEncoding && lower == "accept-encoding"
}

// Forward relays one delivery to the target. The call is bounded by the
// configured deadline; exceeding it cancels the in-flight request and
// counts as a forward failure.
func (f *Forwarder) Forward(ctx context.Context, delivery webhook.Delivery) (*ForwardResult, error) {
	if f.targetURL == "" {
		return nil, fmt.Errorf("forward: no target URL configured")
	}
	if err := config.ValidateTargetURL(f.targetURL); err != nil {
		return nil, fmt.Errorf("forward: invalid target URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.targetURL, bytes.NewReader(delivery.Body))
	if err != nil {
		return nil, fmt.Errorf("forward: build request: %w", err)
	}

	// Carry original headers (content-type, x-line-signature, ...) minus
	// the hop-by-hop set.
	for key, values := range delivery.Header {
		if f.shouldDropHeader(key) {
			continue
		}
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	req.Header.Set("X-Forwarded-Proto", delivery.Proto)
	req.Header.Set("X-Forwarded-Host", delivery.Host)
	appendForwardedFor(req.Header, delivery.RemoteAddr)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		// Deadline exhaustion lands here too; both are forward failures.
		return nil, fmt.Errorf("forward: %w", err)
	}
	defer resp.Body.Close()

	preview, err := io.ReadAll(io.LimitReader(resp.Body, bodyPreviewLimit*4))
	if err != nil {
		preview = nil
	}

	result := &ForwardResult{
		StatusCode: resp.StatusCode,
		Body:       truncate(string(preview), bodyPreviewLimit),
	}

	f.logger.Info("delivery forwarded",
		"delivery_id", delivery.ID,
		"status", result.StatusCode,
		"body", result.Body,
	)
	return result, nil
}

// appendForwardedFor appends the remote address to any existing
// X-Forwarded-For chain, or starts one.
func appendForwardedFor(h http.Header, remoteAddr string) {
	if remoteAddr == "" {
		return
	}
	if prior := h.Get("X-Forwarded-For"); prior != "" {
		h.Set("X-Forwarded-For", prior+", "+remoteAddr)
		return
	}
	h.Set("X-Forwarded-For", remoteAddr)
}

// truncate limits s to n characters without splitting a rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
