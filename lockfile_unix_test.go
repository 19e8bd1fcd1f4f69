//go:build unix || linux || darwin

package onion

import (
	"path/filepath"
	"testing"
)

func TestAdvisoryLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	a, err := newAdvisoryLock(path)
	if err != nil {
		t.Fatalf("newAdvisoryLock: %v", err)
	}
	defer a.Close()

	if err := a.Lock(lockExclusive); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	b, err := newAdvisoryLock(path)
	if err != nil {
		t.Fatalf("newAdvisoryLock (second): %v", err)
	}
	defer b.Close()

	if err := b.Lock(lockExclusive); err == nil {
		t.Fatalf("second exclusive Lock succeeded while the first holder still held it")
	}

	if err := a.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := b.Lock(lockExclusive); err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	b.Unlock()
}

func TestAdvisoryLockDoubleClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	a, err := newAdvisoryLock(path)
	if err != nil {
		t.Fatalf("newAdvisoryLock: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
