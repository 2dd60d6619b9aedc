package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAcquireWritesOwner(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	lock, err := Acquire(dir, Owner{PID: os.Getpid(), Addr: ":8080", Started: started})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()

	if lock.Path() != filepath.Join(dir, LockFileName) {
		t.Errorf("unexpected lock path %q", lock.Path())
	}
	owner, err := ReadOwner(lock.Path())
	if err != nil {
		t.Fatalf("ReadOwner failed: %v", err)
	}
	if owner.PID != os.Getpid() || owner.Addr != ":8080" || !owner.Started.Equal(started) {
		t.Errorf("unexpected owner: %+v", owner)
	}
	if !owner.Running() {
		t.Error("current process should be reported as running")
	}
}

func TestAcquireConflict(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir, CurrentOwner(":8080"))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()

	second, err := Acquire(dir, CurrentOwner(":9090"))
	if err == nil {
		second.Release()
		t.Fatal("second Acquire should fail")
	}
	if !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockError, got %T", err)
	}
	if lockErr.Owner == nil || lockErr.Owner.Addr != ":8080" {
		t.Errorf("expected holder information from the first lock, got %+v", lockErr.Owner)
	}
	if !strings.Contains(err.Error(), lock.Path()) || !strings.Contains(err.Error(), "running") {
		t.Errorf("error should name the lock file and holder: %s", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir, CurrentOwner(""))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release should be a no-op, got %v", err)
	}
	if _, err := os.Stat(lock.Path()); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed, stat err = %v", err)
	}

	again, err := Acquire(dir, CurrentOwner(""))
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	again.Release()
}

func TestAcquireCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	lock, err := Acquire(dir, CurrentOwner(""))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("state directory not created: %v", err)
	}
}

func TestReadOwner(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantPID int
		wantErr bool
	}{
		{"full", "pid=42\naddr=:8080\nstarted=2024-06-01T12:00:00Z\n", 42, false},
		{"pid only", "pid=7\n", 7, false},
		{"garbage lines ignored", "hello\npid=9\nfoo=bar\n", 9, false},
		{"no pid", "addr=:8080\n", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_"))
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			owner, err := ReadOwner(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadOwner error = %v, wantErr %v", err, tt.wantErr)
			}
			if owner.PID != tt.wantPID {
				t.Errorf("PID = %d, want %d", owner.PID, tt.wantPID)
			}
		})
	}

	if _, err := ReadOwner(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOwnerStringStale(t *testing.T) {
	// pid far above any default pid_max
	o := Owner{PID: 99999999, Addr: ":8080"}
	if o.Running() {
		t.Skip("unexpected process with test PID")
	}
	if s := o.String(); !strings.Contains(s, "stale lock") || !strings.Contains(s, ":8080") {
		t.Errorf("unexpected description %q", s)
	}
}
