package service

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// PIDLock is a singleton-process lock backed by a PID file: unlike a flock
// handle, its content is readable by an operator or a health check, and
// staleness is judged by probing the recorded pid rather than by the file
// descriptor's lifetime.
type PIDLock struct {
	path string
}

// NewPIDLock builds a lock bound to path.
func NewPIDLock(path string) *PIDLock {
	return &PIDLock{path: path}
}

// Acquire creates the PID file exclusively. If one already exists, its
// contents are read and probed with a zero signal: a live owner causes
// Acquire to fail, a stale file is overwritten.
func (l *PIDLock) Acquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		defer f.Close()
		_, err = fmt.Fprintf(f, "%d", os.Getpid())
		return err
	}
	if !os.IsExist(err) {
		return fmt.Errorf("creating pid file %s: %w", l.path, err)
	}

	existing, readErr := os.ReadFile(l.path)
	if readErr != nil {
		return fmt.Errorf("reading existing pid file %s: %w", l.path, readErr)
	}
	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(existing)))
	if parseErr == nil && processAlive(pid) {
		return fmt.Errorf("pid file %s is held by live process %d", l.path, pid)
	}

	if err := os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("overwriting stale pid file %s: %w", l.path, err)
	}
	return nil
}

// Release removes the PID file only if its contents still match our pid.
func (l *PIDLock) Release() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading pid file %s: %w", l.path, err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		return nil
	}
	return os.Remove(l.path)
}

// processAlive sends a zero signal to pid, which probes for existence
// without affecting the target process.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
