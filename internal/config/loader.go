package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, interpolates, and validates configuration from a YAML file.
// The returned Config is immutable by convention: it is constructed once at
// startup and passed into component constructors.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(cfg)

	// Verify the config file against .checksums when a manifest exists.
	if err := VerifyConfigFile(absPath); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills unset fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Service.Listen == "" {
		cfg.Service.Listen = DefaultListen
	}
	if cfg.Service.Mode == "" {
		cfg.Service.Mode = ModeExtract
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = DefaultLogLevel
	}
	if cfg.Relay.Timeout <= 0 {
		cfg.Relay.Timeout = DefaultRelayTimeout
	}
	if cfg.Extract.Model == "" {
		cfg.Extract.Model = DefaultModel
	}
	if cfg.Extract.BaseURL == "" {
		cfg.Extract.BaseURL = DefaultExtractBaseURL
	}
	if cfg.Extract.Timeout <= 0 {
		cfg.Extract.Timeout = DefaultExtractTimeout
	}
	if cfg.Ledger.Timeout <= 0 {
		cfg.Ledger.Timeout = DefaultLedgerTimeout
	}
	if cfg.Journal.Path == "" && cfg.Service.PIDLock != "" {
		cfg.Journal.Path = filepath.Join(filepath.Dir(cfg.Service.PIDLock), "journal.db")
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	switch cfg.Service.Mode {
	case ModeRelay, ModeExtract:
	default:
		return fmt.Errorf("service.mode must be %q or %q, got %q", ModeRelay, ModeExtract, cfg.Service.Mode)
	}

	if cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is required")
	}

	// Unexpanded ${VAR} placeholders mean the environment was incomplete.
	for field, value := range map[string]string{
		"line.channel_secret": cfg.Line.ChannelSecret,
		"line.access_token":   cfg.Line.AccessToken,
		"relay.target_url":    cfg.Relay.TargetURL,
		"extract.api_key":     cfg.Extract.APIKey,
		"ledger.sheet_id":     cfg.Ledger.SheetID,
	} {
		if envVarPattern.MatchString(value) {
			matches := envVarPattern.FindStringSubmatch(value)
			return fmt.Errorf("%s references undefined environment variable %s", field, matches[0])
		}
	}

	if cfg.Service.Mode == ModeExtract {
		// Extraction deployments are always authenticated.
		if cfg.Line.ChannelSecret == "" {
			return fmt.Errorf("line.channel_secret is required in extract mode")
		}
		if cfg.Line.AccessToken == "" {
			return fmt.Errorf("line.access_token is required in extract mode")
		}
		if cfg.Extract.APIKey == "" {
			return fmt.Errorf("extract.api_key is required in extract mode")
		}
		if cfg.Ledger.SheetID == "" {
			return fmt.Errorf("ledger.sheet_id is required in extract mode")
		}
		if cfg.Ledger.SheetName == "" {
			return fmt.Errorf("ledger.sheet_name is required in extract mode")
		}
	}

	if cfg.Service.Mode == ModeRelay {
		if cfg.Relay.TargetURL == "" {
			return fmt.Errorf("relay.target_url is required in relay mode")
		}
		if err := ValidateTargetURL(cfg.Relay.TargetURL); err != nil {
			return fmt.Errorf("relay.target_url: %w", err)
		}
	}

	return nil
}

// ValidateTargetURL checks that raw is a well-formed absolute http(s) URL.
func ValidateTargetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}
