package config

import "time"

// Mode selects which pipeline a delivery is routed down.
type Mode string

const (
	// ModeRelay forwards the raw delivery to a downstream processor.
	ModeRelay Mode = "relay"
	// ModeExtract runs the expense-extraction pipeline.
	ModeExtract Mode = "extract"
)

// Config represents the complete ledgerline configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Line    LineConfig    `yaml:"line"`
	Relay   RelayConfig   `yaml:"relay,omitempty"`
	Extract ExtractConfig `yaml:"extract,omitempty"`
	Ledger  LedgerConfig  `yaml:"ledger,omitempty"`
	Journal JournalConfig `yaml:"journal"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Listen   string `yaml:"listen"`
	Mode     Mode   `yaml:"mode"`
	LogLevel string `yaml:"log_level"`
	PIDLock  string `yaml:"pid_lock,omitempty"`
}

// LineConfig holds the messaging-platform credentials.
type LineConfig struct {
	// ChannelSecret is the HMAC key for webhook signature verification.
	// In relay mode it may be empty, which disables verification.
	ChannelSecret string `yaml:"channel_secret"`

	// AccessToken is the channel access token used to send replies.
	AccessToken string `yaml:"access_token,omitempty"`

	// ReplyEndpoint overrides the reply API base URL (tests only).
	ReplyEndpoint string `yaml:"reply_endpoint,omitempty"`
}

// RelayConfig defines the downstream forwarding target.
type RelayConfig struct {
	// TargetURL must be an absolute http(s) URL.
	TargetURL string `yaml:"target_url"`

	// Timeout bounds one forward attempt.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// StripAcceptEncoding keeps downstream responses uncompressed
	// so truncated bodies stay readable in logs.
	StripAcceptEncoding bool `yaml:"strip_accept_encoding,omitempty"`
}

// ExtractConfig defines the language-model extraction backend.
type ExtractConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model,omitempty"`
	BaseURL string        `yaml:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// LedgerConfig defines the spreadsheet ledger destination.
type LedgerConfig struct {
	SheetID   string `yaml:"sheet_id"`
	SheetName string `yaml:"sheet_name"`

	// CredentialsFile points at a Google service-account JSON key.
	// Empty means application default credentials.
	CredentialsFile string `yaml:"credentials_file,omitempty"`

	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// JournalConfig defines the local outcome journal.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Defaults applied by Load when fields are unset.
const (
	DefaultListen         = "0.0.0.0:3000"
	DefaultLogLevel       = "INFO"
	DefaultModel          = "gpt-4o-mini"
	DefaultExtractBaseURL = "https://api.openai.com"
	DefaultRelayTimeout   = 10 * time.Second
	DefaultExtractTimeout = 30 * time.Second
	DefaultLedgerTimeout  = 30 * time.Second
)

// ChecksumManifest is the on-disk format of the .checksums file.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}
