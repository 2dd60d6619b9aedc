// Package lockfile keeps two CaseTrack servers from sharing one state directory.
//
// The lock is an flock(2) on a file in the state directory, so the kernel drops it when the
// process exits, cleanly or not. The file itself records who holds the lock.
package lockfile

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the name of the lock file created in the state directory.
const LockFileName = "casetrack.lock"

// ErrLocked is matched by errors.Is when another process holds the lock.
var ErrLocked = errors.New("state directory is locked by another CaseTrack server")

// Owner describes the process holding a lock.
type Owner struct {
	PID     int
	Addr    string
	Started time.Time
}

// CurrentOwner describes this process, serving on addr.
func CurrentOwner(addr string) Owner {
	return Owner{PID: os.Getpid(), Addr: addr, Started: time.Now().UTC()}
}

func (o Owner) encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pid=%d\n", o.PID)
	if o.Addr != "" {
		fmt.Fprintf(&b, "addr=%s\n", o.Addr)
	}
	if !o.Started.IsZero() {
		fmt.Fprintf(&b, "started=%s\n", o.Started.Format(time.RFC3339))
	}
	return b.String()
}

// Running reports whether the owner process still exists.
func (o Owner) Running() bool {
	if o.PID <= 0 {
		return false
	}
	p, err := os.FindProcess(o.PID)
	if err != nil {
		return false
	}
	// signal 0 only checks for existence
	return p.Signal(syscall.Signal(0)) == nil
}

func (o Owner) String() string {
	state := "not running, stale lock"
	if o.Running() {
		state = "running"
	}
	s := fmt.Sprintf("PID %d (%s)", o.PID, state)
	if o.Addr != "" {
		s += ", serving " + o.Addr
	}
	if !o.Started.IsZero() {
		s += ", started " + o.Started.Format(time.RFC3339)
	}
	return s
}

// ReadOwner parses the lock file at path.
func ReadOwner(path string) (Owner, error) {
	f, err := os.Open(path)
	if err != nil {
		return Owner{}, err
	}
	defer f.Close()

	var o Owner
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			o.PID, _ = strconv.Atoi(value)
		case "addr":
			o.Addr = value
		case "started":
			o.Started, _ = time.Parse(time.RFC3339, value)
		}
	}
	if err := sc.Err(); err != nil {
		return Owner{}, err
	}
	if o.PID <= 0 {
		return Owner{}, fmt.Errorf("lock file %s has no pid", path)
	}
	return o, nil
}

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire locks stateDir for owner, creating the directory when needed. When another process
// holds the lock it returns a *LockError.
func Acquire(stateDir string, owner Owner) (*Lock, error) {
	path := filepath.Join(stateDir, LockFileName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	// no O_TRUNC: the holder's information must survive a failed attempt
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		lockErr := &LockError{Path: path, Cause: err}
		if holder, rerr := ReadOwner(path); rerr == nil {
			lockErr.Owner = &holder
		}
		slog.Error("lockfile.Acquire: state directory already locked", "lock_path", path, "holder", lockErr.holder())
		return nil, lockErr
	}

	if err := writeOwner(f, owner); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("failed to write lock file %s: %w", path, err)
	}
	slog.Info("lockfile.Acquire: state directory locked", "lock_path", path, "pid", owner.PID)
	return &Lock{file: f, path: path}, nil
}

func writeOwner(f *os.File, owner Owner) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(owner.encode()), 0); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		slog.Warn("lockfile.writeOwner: sync failed", "error", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and removes the lock file. Calling it again is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	var errs []error
	// remove while still holding the lock so a waiting process never sees our stale contents
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		errs = append(errs, err)
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, err)
	}
	l.file = nil
	slog.Info("lockfile.Release: state directory unlocked", "lock_path", l.path)
	return errors.Join(errs...)
}

// LockError reports a state directory held by another process.
type LockError struct {
	Path  string
	Owner *Owner
	Cause error
}

func (e *LockError) holder() string {
	if e.Owner == nil {
		return "unknown"
	}
	return e.Owner.String()
}

func (e *LockError) Error() string {
	return fmt.Sprintf("another CaseTrack server is using this state directory (lock file %s, holder: %s). "+
		"If that process is gone, remove the lock file and start again", e.Path, e.holder())
}

func (e *LockError) Is(target error) bool {
	return target == ErrLocked
}

func (e *LockError) Unwrap() error {
	return e.Cause
}
