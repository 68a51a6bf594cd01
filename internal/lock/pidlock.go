// Package lock guards against two ledgerline instances sharing one journal.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Handle holds an exclusive flock(2) on a PID file. The lock lives as long
// as the file descriptor stays open; Release drops it.
type Handle struct {
	path string
	file *os.File
}

// Acquire takes a non-blocking exclusive lock at path and stamps it with the
// current PID. If another process holds the lock, the error names its PID
// when the file is readable.
func Acquire(path string) (*Handle, error) {
	if path == "" {
		return nil, fmt.Errorf("pid lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		owner := readOwner(file)
		_ = file.Close()
		if owner > 0 {
			return nil, fmt.Errorf("pid file %s held by pid %d", path, owner)
		}
		return nil, fmt.Errorf("pid file %s is locked: %w", path, err)
	}

	if err := stamp(file); err != nil {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()
		return nil, err
	}

	return &Handle{path: path, file: file}, nil
}

func stamp(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind pid file: %w", err)
	}
	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	return file.Sync()
}

func readOwner(file *os.File) int {
	buf := make([]byte, 32)
	n, err := file.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}

// Path reports where the lock file lives.
func (h *Handle) Path() string { return h.path }

// Release drops the lock and closes the file. The PID file itself is left
// behind; a future Acquire reuses it. Safe to call twice.
func (h *Handle) Release() error {
	if h == nil || h.file == nil {
		return nil
	}
	_ = syscall.Flock(int(h.file.Fd()), syscall.LOCK_UN)
	err := h.file.Close()
	h.file = nil
	return err
}
