//go:build !windows

// Package server listens on the engine's Unix-domain socket endpoint and
// drives one dispatch.Dispatcher across every accepted connection.
package server

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned when another process already holds the
// advisory lock on this socket path.
var ErrAlreadyRunning = errors.New("server: another process already owns this socket path")

// lockFile acquires a non-blocking exclusive advisory lock on f, the way
// the teacher codebase guards its own on-disk database file against two
// processes opening it at once.
func lockFile(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if err == unix.EWOULDBLOCK {
			return ErrAlreadyRunning
		}
		return err
	}
	return nil
}

// unlockFile releases the advisory lock on f.
func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
