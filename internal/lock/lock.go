// Package lock keeps two tablewright processes from altering the same
// table at once.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/tablewright/tablewright/internal/config"
)

const DefaultDir = "~/.tablewright/locks"

// HeldError is returned by Acquire when a live process holds the lock.
type HeldError struct {
	Target string
	PID    int
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("another tablewright process (PID %d) is altering %s", e.PID, e.Target)
}

// Lock is a held PID lock file.
type Lock struct {
	Path   string
	Target string
}

// PathFor returns the lock file guarding target inside dir ("" for the
// default directory).
func PathFor(dir, target string) string {
	if dir == "" {
		dir = DefaultDir
	}
	sum := sha256.Sum256([]byte(target))
	return filepath.Join(config.ExpandHome(dir), hex.EncodeToString(sum[:8])+".lock")
}

// Target names the table a connection alters, for PathFor.
func Target(cfg config.ConnectionConfig, table string) string {
	return strings.Join([]string{strings.ToLower(cfg.Dialect), cfg.Host, strconv.Itoa(cfg.Port), cfg.Database, cfg.Schema, table}, "/")
}

// Acquire creates the lock file for target with the current process PID.
// A lock file left by a dead process is taken over.
func Acquire(dir, target string) (*Lock, error) {
	path := PathFor(dir, target)

	held, pid, err := isHeld(path)
	if err != nil {
		return nil, err
	}
	if held && pid != os.Getpid() {
		return nil, &HeldError{Target: target, PID: pid}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return &Lock{Path: path, Target: target}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	err := os.Remove(l.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// IsHeld checks if target is locked by a running process.
func IsHeld(dir, target string) (bool, int, error) {
	return isHeld(PathFor(dir, target))
}

func isHeld(path string) (bool, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0, nil
	}
	return isProcessRunning(pid), pid, nil
}

func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
