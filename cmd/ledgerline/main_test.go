package main

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/mattjoyce/ledgerline/internal/config"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func writeRelayConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
service:
  mode: relay
line:
  channel_secret: test-secret
relay:
  target_url: https://downstream.example.com/webhook
journal:
  path: ` + filepath.Join(dir, "journal.db") + `
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunConfigLockDryRun(t *testing.T) {
	path := writeRelayConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", path, "--dry-run"})
	})
	if code != 0 {
		t.Fatalf("runConfigLock() code = %d, stderr: %s", code, stderr)
	}

	if !strings.Contains(stdout, "Dry run (nothing written)") {
		t.Fatalf("stdout missing dry-run header: %s", stdout)
	}
	hashPattern := regexp.MustCompile(`[a-f0-9]{64}`)
	if !hashPattern.MatchString(stdout) {
		t.Fatalf("stdout missing hash: %s", stdout)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(path), ".checksums")); !os.IsNotExist(err) {
		t.Fatal(".checksums should not be written in dry-run mode")
	}
}

func TestRunConfigLockWritesChecksums(t *testing.T) {
	path := writeRelayConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", path})
	})
	if code != 0 {
		t.Fatalf("runConfigLock() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Locked configuration") {
		t.Fatalf("stdout missing lock summary: %s", stdout)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(path), ".checksums")); err != nil {
		t.Fatalf("expected .checksums to be written: %v", err)
	}
}

func TestRunDoctorValidRelayConfig(t *testing.T) {
	path := writeRelayConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runDoctor([]string{"--config", path})
	})
	if code != 0 {
		t.Fatalf("runDoctor() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Configuration valid") {
		t.Fatalf("stdout missing validity line: %s", stdout)
	}
}

func TestRunDoctorStrictWarnings(t *testing.T) {
	// No .checksums manifest, so doctor reports an integrity warning that
	// strict mode escalates to exit code 2.
	path := writeRelayConfig(t)

	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runDoctor([]string{"--config", path, "--strict"})
	})
	if code != 2 {
		t.Fatalf("runDoctor(--strict) code = %d, want 2", code)
	}
}

func TestRunConfigNounUnknownAction(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"frobnicate"})
	})
	if code != 1 {
		t.Fatalf("runConfigNoun() code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Unknown config action") {
		t.Fatalf("stderr missing unknown action message: %s", stderr)
	}
}

func TestPidLockPathFallsBackToJournalDir(t *testing.T) {
	cfg := &config.Config{}
	cfg.Journal.Path = "/var/lib/ledgerline/journal.db"
	if got, want := pidLockPath(cfg), "/var/lib/ledgerline/ledgerline.pid"; got != want {
		t.Errorf("pidLockPath() = %q, want %q", got, want)
	}

	cfg.Service.PIDLock = "/run/ledgerline.pid"
	if got := pidLockPath(cfg); got != "/run/ledgerline.pid" {
		t.Errorf("pidLockPath() with explicit setting = %q", got)
	}

	empty := &config.Config{}
	if got := pidLockPath(empty); got != "" {
		t.Errorf("pidLockPath() with no journal = %q, want empty", got)
	}
}

func TestPrintUsageListsCommands(t *testing.T) {
	_, stdout, _ := captureOutputWithExitCode(t, func() int {
		printUsage()
		return 0
	})
	for _, cmd := range []string{"start", "doctor", "config lock", "config check", "watch"} {
		if !strings.Contains(stdout, cmd) {
			t.Fatalf("usage missing %q: %s", cmd, stdout)
		}
	}
}
