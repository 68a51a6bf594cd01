package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validExtractConfig = `
service:
  mode: extract
line:
  channel_secret: test-secret
  access_token: test-token
extract:
  api_key: sk-test
ledger:
  sheet_id: sheet-123
  sheet_name: MR202512
journal:
  path: /tmp/ledgerline-test/journal.db
`

func TestLoad_ExtractMode(t *testing.T) {
	path := writeConfig(t, validExtractConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeExtract, cfg.Service.Mode)
	assert.Equal(t, "test-secret", cfg.Line.ChannelSecret)
	assert.Equal(t, "sheet-123", cfg.Ledger.SheetID)

	// Defaults
	assert.Equal(t, DefaultListen, cfg.Service.Listen)
	assert.Equal(t, DefaultModel, cfg.Extract.Model)
	assert.Equal(t, DefaultExtractBaseURL, cfg.Extract.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Extract.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Relay.Timeout)
}

func TestLoad_RelayMode(t *testing.T) {
	path := writeConfig(t, `
service:
  mode: relay
relay:
  target_url: https://script.google.com/macros/s/abc/exec
journal:
  path: /tmp/ledgerline-test/journal.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeRelay, cfg.Service.Mode)
	// Relay mode runs without a channel secret (verification disabled).
	assert.Empty(t, cfg.Line.ChannelSecret)
}

func TestLoad_EnvInterpolation(t *testing.T) {
	t.Setenv("LEDGERLINE_TEST_SECRET", "from-env")

	path := writeConfig(t, `
service:
  mode: extract
line:
  channel_secret: ${LEDGERLINE_TEST_SECRET}
  access_token: tok
extract:
  api_key: sk
ledger:
  sheet_id: s
  sheet_name: n
journal:
  path: /tmp/ledgerline-test/journal.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Line.ChannelSecret)
}

func TestLoad_UndefinedEnvVarRejected(t *testing.T) {
	path := writeConfig(t, `
service:
  mode: extract
line:
  channel_secret: ${LEDGERLINE_TEST_UNSET_VAR}
  access_token: tok
extract:
  api_key: sk
ledger:
  sheet_id: s
  sheet_name: n
journal:
  path: /tmp/ledgerline-test/journal.db
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGERLINE_TEST_UNSET_VAR")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name: "bad mode",
			content: `
service:
  mode: hybrid
journal:
  path: /tmp/j.db
`,
			wantMsg: "service.mode",
		},
		{
			name: "extract mode missing secret",
			content: `
service:
  mode: extract
line:
  access_token: tok
extract:
  api_key: sk
ledger:
  sheet_id: s
  sheet_name: n
journal:
  path: /tmp/j.db
`,
			wantMsg: "channel_secret",
		},
		{
			name: "relay mode missing target",
			content: `
service:
  mode: relay
journal:
  path: /tmp/j.db
`,
			wantMsg: "relay.target_url",
		},
		{
			name: "relay mode non-absolute target",
			content: `
service:
  mode: relay
relay:
  target_url: not-a-url
journal:
  path: /tmp/j.db
`,
			wantMsg: "relay.target_url",
		},
		{
			name: "missing journal path",
			content: `
service:
  mode: relay
relay:
  target_url: https://example.com/hook
`,
			wantMsg: "journal.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestValidateTargetURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://script.google.com/macros/s/x/exec", false},
		{"http", "http://localhost:8080/hook", false},
		{"relative", "/hook", true},
		{"bare word", "hook", true},
		{"ftp scheme", "ftp://example.com/hook", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTargetURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
