// Package doctor validates ledgerline configuration beyond what loading
// already enforces: mode/credential coherence, on-disk prerequisites, and
// integrity state.
package doctor

import (
	"fmt"
	"os"

	"github.com/mattjoyce/ledgerline/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config

	// configPath is used for integrity checks; empty skips them.
	configPath string
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config, configPath string) *Doctor {
	return &Doctor{cfg: cfg, configPath: configPath}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateMode(r)
	d.validateCredentialFiles(r)
	d.warnUnusedSections(r)
	d.warnIntegrity(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateMode re-checks mode/credential coherence.
func (d *Doctor) validateMode(r *Result) {
	switch d.cfg.Service.Mode {
	case config.ModeExtract:
		if d.cfg.Line.ChannelSecret == "" {
			d.addError(r, "auth", "line.channel_secret", "extract mode requires signature verification")
		}
		if d.cfg.Line.AccessToken == "" {
			d.addError(r, "auth", "line.access_token", "extract mode cannot reply without an access token")
		}
		if d.cfg.Extract.APIKey == "" {
			d.addError(r, "extract", "extract.api_key", "extraction backend API key is required")
		}
		if d.cfg.Ledger.SheetID == "" || d.cfg.Ledger.SheetName == "" {
			d.addError(r, "ledger", "ledger", "ledger destination (sheet_id, sheet_name) is required")
		}
	case config.ModeRelay:
		if d.cfg.Relay.TargetURL == "" {
			d.addError(r, "relay", "relay.target_url", "relay mode requires a target URL")
		} else if err := config.ValidateTargetURL(d.cfg.Relay.TargetURL); err != nil {
			d.addError(r, "relay", "relay.target_url", err.Error())
		}
		if d.cfg.Line.ChannelSecret == "" {
			d.addWarning(r, "auth", "line.channel_secret",
				"signature verification is disabled; the downstream target must verify deliveries itself")
		}
	default:
		d.addError(r, "service", "service.mode",
			fmt.Sprintf("unknown mode %q", d.cfg.Service.Mode))
	}
}

// validateCredentialFiles checks on-disk prerequisites.
func (d *Doctor) validateCredentialFiles(r *Result) {
	if d.cfg.Ledger.CredentialsFile == "" {
		return
	}
	if _, err := os.Stat(d.cfg.Ledger.CredentialsFile); err != nil {
		d.addError(r, "ledger", "ledger.credentials_file",
			fmt.Sprintf("credentials file not readable: %v", err))
	}
}

// warnUnusedSections flags configuration the active mode will never touch.
func (d *Doctor) warnUnusedSections(r *Result) {
	if d.cfg.Service.Mode == config.ModeExtract && d.cfg.Relay.TargetURL != "" {
		d.addWarning(r, "relay", "relay.target_url", "relay target is ignored in extract mode")
	}
	if d.cfg.Service.Mode == config.ModeRelay {
		if d.cfg.Extract.APIKey != "" {
			d.addWarning(r, "extract", "extract.api_key", "extraction backend is ignored in relay mode")
		}
		if d.cfg.Ledger.SheetID != "" {
			d.addWarning(r, "ledger", "ledger.sheet_id", "ledger destination is ignored in relay mode")
		}
	}
}

// warnIntegrity reports checksum state without failing validation; a
// mismatch already fails config.Load.
func (d *Doctor) warnIntegrity(r *Result) {
	if d.configPath == "" {
		return
	}
	if _, err := config.LoadChecksums(d.configPath); err != nil {
		if os.IsNotExist(err) {
			d.addWarning(r, "integrity", "", "no .checksums manifest; run 'ledgerline config lock' to enable tamper detection")
			return
		}
		d.addError(r, "integrity", "", err.Error())
	}
}
