package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/ledgerline/internal/config"
	"github.com/mattjoyce/ledgerline/internal/dispatch"
	"github.com/mattjoyce/ledgerline/internal/doctor"
	"github.com/mattjoyce/ledgerline/internal/extract"
	"github.com/mattjoyce/ledgerline/internal/journal"
	"github.com/mattjoyce/ledgerline/internal/ledger"
	"github.com/mattjoyce/ledgerline/internal/line"
	"github.com/mattjoyce/ledgerline/internal/lock"
	"github.com/mattjoyce/ledgerline/internal/log"
	"github.com/mattjoyce/ledgerline/internal/relay"
	"github.com/mattjoyce/ledgerline/internal/tui/watch"
	"github.com/mattjoyce/ledgerline/internal/webhook"
)

const version = "0.1.0"

const defaultConfigPath = "config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "start":
		os.Exit(runStart(args))
	case "doctor":
		os.Exit(runDoctor(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "watch":
		os.Exit(runWatch(args))
	case "version":
		fmt.Printf("ledgerline version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`ledgerline - webhook gateway that relays deliveries or books expenses

Usage:
  ledgerline <command> [flags]

Commands:
  start         Run the webhook service in the foreground
  doctor        Validate configuration and environment
  config lock   Authorize the current config (write integrity hashes)
  config check  Validate config syntax, policy, and integrity
  watch         Live view of the outcome journal
  version       Show version information
  help          Show this help message

Most commands accept --config PATH (default: config.yaml).
`)
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ledgerline config <lock|check> [flags]")
		return 1
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "lock":
		return runConfigLock(actionArgs)
	case "check":
		return runDoctor(actionArgs)
	case "help", "--help", "-h":
		fmt.Println("Usage: ledgerline config <lock|check> [--config PATH]")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configFlag := fs.String("config", defaultConfigPath, "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	configPath := *configFlag

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("ledgerline starting",
		"version", version,
		"config", configPath,
		"mode", cfg.Service.Mode,
	)

	if pidPath := pidLockPath(cfg); pidPath != "" {
		pidLock, err := lock.Acquire(pidPath)
		if err != nil {
			logger.Error("another instance may be running", "error", err)
			return 1
		}
		defer pidLock.Release()
		logger.Info("acquired pid lock", "path", pidLock.Path())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var jrnl dispatch.Journal
	var store *journal.Store
	if cfg.Journal.Path != "" {
		store, err = journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
			return 1
		}
		defer store.Close()
		jrnl = store
		logger.Info("journal opened", "path", cfg.Journal.Path)
	}

	dispatcher, err := buildDispatcher(ctx, cfg, jrnl)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return 1
	}

	server := webhook.New(webhook.Config{
		Listen: cfg.Service.Listen,
		Secret: cfg.Line.ChannelSecret,
	}, dispatcher, log.WithComponent("webhook"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && err != context.Canceled {
			errCh <- err
		}
	}()

	logger.Info("ledgerline running (press Ctrl+C to stop)", "listen", cfg.Service.Listen)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("webhook server failed", "error", err)
		cancel()
		exitCode = 1
	}

	// Let in-flight deliveries finish before the journal closes.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		logger.Warn("shutdown drain incomplete", "error", err)
	}

	logger.Info("ledgerline stopped")
	return exitCode
}

// buildDispatcher wires the pipeline for the configured mode. Unused
// dependencies stay nil.
func buildDispatcher(ctx context.Context, cfg *config.Config, jrnl dispatch.Journal) (*dispatch.Dispatcher, error) {
	switch cfg.Service.Mode {
	case config.ModeRelay:
		forwarder := relay.New(relay.ForwarderConfig{
			TargetURL:           cfg.Relay.TargetURL,
			Timeout:             cfg.Relay.Timeout,
			StripAcceptEncoding: cfg.Relay.StripAcceptEncoding,
		}, log.WithComponent("relay"))
		return dispatch.New(cfg.Service.Mode, nil, nil, nil, forwarder, jrnl, log.WithComponent("dispatch")), nil

	case config.ModeExtract:
		extractor := extract.NewClient(extract.ClientConfig{
			APIKey:  cfg.Extract.APIKey,
			Model:   cfg.Extract.Model,
			BaseURL: cfg.Extract.BaseURL,
			Timeout: cfg.Extract.Timeout,
		}, log.WithComponent("extract"))

		writer, err := ledger.NewWriter(ctx, ledger.WriterConfig{
			SheetID:         cfg.Ledger.SheetID,
			SheetName:       cfg.Ledger.SheetName,
			CredentialsFile: cfg.Ledger.CredentialsFile,
			Timeout:         cfg.Ledger.Timeout,
		}, log.WithComponent("ledger"))
		if err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}

		replier := line.NewClient(line.ClientConfig{
			AccessToken: cfg.Line.AccessToken,
			Endpoint:    cfg.Line.ReplyEndpoint,
		}, log.WithComponent("line"))

		return dispatch.New(cfg.Service.Mode, extractor, writer, replier, nil, jrnl, log.WithComponent("dispatch")), nil

	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Service.Mode)
	}
}

// pidLockPath resolves the pid file location: explicit setting first, then
// next to the journal, else no lock.
func pidLockPath(cfg *config.Config) string {
	if cfg.Service.PIDLock != "" {
		return cfg.Service.PIDLock
	}
	if cfg.Journal.Path != "" {
		return filepath.Join(filepath.Dir(cfg.Journal.Path), "ledgerline.pid")
	}
	return ""
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg, *configPath).Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if *strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	dryRun := fs.Bool("dry-run", false, "Compute hashes without writing")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *dryRun {
		hash, err := config.ComputeBlake3Hash(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to hash config: %v\n", err)
			return 1
		}
		fmt.Printf("Dry run (nothing written):\n  %s  %s\n", hash, *configPath)
		return 0
	}

	manifest, err := config.WriteChecksums(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	fmt.Printf("Locked configuration (%d file(s)):\n", len(manifest.Hashes))
	for name, hash := range manifest.Hashes {
		fmt.Printf("  %s  %s\n", hash, name)
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	journalPath := fs.String("journal", "", "Journal path (overrides config)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	path := *journalPath
	if path == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
		path = cfg.Journal.Path
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "No journal configured; set journal.path or pass --journal")
		return 1
	}

	store, err := journal.Open(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer store.Close()

	if _, err := tea.NewProgram(watch.New(store)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Watch UI error: %v\n", err)
		return 1
	}
	return 0
}
