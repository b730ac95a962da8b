package utils

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDBLockRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "profiles.sqlite")

	l, err := NewDBLock(dbPath)
	if err != nil {
		t.Fatalf("NewDBLock: %v", err)
	}
	if !strings.HasSuffix(l.path, "profiles.sqlite.lock") {
		t.Fatalf("unexpected lock path %q", l.path)
	}
	if err := l.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestDBLockSerializesGoroutines(t *testing.T) {
	l, err := NewDBLock(filepath.Join(t.TempDir(), "profiles.sqlite"))
	if err != nil {
		t.Fatalf("NewDBLock: %v", err)
	}

	var holders, overlaps atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Lock(); err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			if holders.Add(1) > 1 {
				overlaps.Add(1)
			}
			holders.Add(-1)
			if err := l.Unlock(); err != nil {
				t.Errorf("Unlock: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := overlaps.Load(); n != 0 {
		t.Fatalf("%d goroutines held the lock at the same time", n)
	}
}

func TestGetAbsDBPathDefault(t *testing.T) {
	p, err := GetAbsDBPath("")
	if err != nil {
		t.Fatalf("GetAbsDBPath: %v", err)
	}
	if filepath.Base(p) != "profiles.sqlite" {
		t.Fatalf("unexpected default path %q", p)
	}
}
