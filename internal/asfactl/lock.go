package asfactl

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

const lockFileName = ".asfactl.lock"

// Lock is an advisory flock on <app_dir>/.asfactl.lock held for one
// pipeline run.
type Lock struct {
	f *os.File
}

// AcquireLock takes the lock without blocking. A lock held by another
// process yields ErrConcurrentRun. The holder's PID is written into the
// file for operators; failing to write it does not fail the lock.
func AcquireLock(appDir string, log *slog.Logger) (*Lock, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := ensureDir(appDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	path := filepath.Join(appDir, lockFileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPersistence, path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s is held by another asfactl run", ErrConcurrentRun, path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if err := stampPID(f); err != nil {
		log.Debug("write lock owner", "path", path, "err", err)
	}
	return &Lock{f: f}, nil
}

func stampPID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	return err
}

func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	defer func() { l.f = nil }()
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
