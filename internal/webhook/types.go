package webhook

import (
	"net/http"
	"time"
)

// Delivery is one inbound webhook request: the exact body bytes as received
// on the wire plus the metadata the pipelines need. It is immutable once
// constructed; ownership transfers to the processor after acknowledgment.
type Delivery struct {
	// ID is a locally generated identifier used for log correlation and
	// the journal. The platform's own delivery IDs are not modeled.
	ID string

	// Body holds the raw, unparsed payload. Signature verification has
	// already run over these exact bytes.
	Body []byte

	// Header carries the original request headers (content-type,
	// user-agent, x-line-signature, ...) for relay forwarding.
	Header http.Header

	// RemoteAddr, Host, and Proto describe the original request for
	// X-Forwarded-* headers.
	RemoteAddr string
	Host       string
	Proto      string

	ReceivedAt time.Time
}

// Processor consumes verified deliveries. Process must detach from the
// HTTP request lifecycle: it returns promptly and runs the actual work in
// the background, with no error propagation back to the webhook caller.
type Processor interface {
	Process(delivery Delivery)
}

// Config holds webhook server configuration.
type Config struct {
	Listen string

	// Secret is the channel secret for HMAC verification. Empty disables
	// verification (relay-only deployments).
	Secret string

	// SignatureHeader is the header carrying the base64 HMAC digest.
	SignatureHeader string

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB).
	MaxBodySize int64
}

// Default values
const (
	DefaultMaxBodySize     = 1048576 // 1 MB
	DefaultSignatureHeader = "x-line-signature"
)
