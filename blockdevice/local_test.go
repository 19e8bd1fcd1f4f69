package blockdevice

import (
	"context"
	"path/filepath"
	"testing"
)

func TestLocalReadWriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	var dev Local
	h, err := dev.Open(ctx, path, FlagCreateTruncate, AccessProperties{}, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close(ctx, h)

	want := []byte("hello onion")
	if err := dev.Write(ctx, h, Raw, AccessProperties{}, 10, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, len(want))
	if err := dev.Read(ctx, h, Raw, AccessProperties{}, 10, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}

	eoa, err := dev.GetEOA(ctx, h, Raw)
	if err != nil {
		t.Fatalf("GetEOA: %v", err)
	}
	if want := uint64(10 + len(want)); eoa != want {
		t.Errorf("EOA = %d, want %d", eoa, want)
	}
}

func TestLocalSetEOAReservesWithoutWriting(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	var dev Local
	h, err := dev.Open(ctx, path, FlagCreateTruncate, AccessProperties{}, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev.Close(ctx, h)

	if err := dev.SetEOA(ctx, h, Raw, 4096); err != nil {
		t.Fatalf("SetEOA: %v", err)
	}
	eoa, err := dev.GetEOA(ctx, h, Raw)
	if err != nil {
		t.Fatalf("GetEOA: %v", err)
	}
	if eoa != 4096 {
		t.Errorf("EOA = %d, want 4096", eoa)
	}

	// EOF (on-disk extent) should not have grown merely from SetEOA.
	eof, err := dev.GetEOF(ctx, h, Raw)
	if err != nil {
		t.Fatalf("GetEOF: %v", err)
	}
	if eof != 0 {
		t.Errorf("EOF = %d, want 0", eof)
	}
}

func TestLocalReopenReadOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	var dev Local
	h, _ := dev.Open(ctx, path, FlagCreateTruncate, AccessProperties{}, 0)
	dev.Write(ctx, h, Raw, AccessProperties{}, 0, []byte("abc"))
	dev.Close(ctx, h)

	ro, err := dev.Open(ctx, path, FlagReadOnly, AccessProperties{}, 0)
	if err != nil {
		t.Fatalf("reopen read-only: %v", err)
	}
	defer dev.Close(ctx, ro)

	buf := make([]byte, 3)
	if err := dev.Read(ctx, ro, Raw, AccessProperties{}, 0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "abc" {
		t.Errorf("got %q", buf)
	}

	if err := dev.Write(ctx, ro, Raw, AccessProperties{}, 0, []byte("xyz")); err == nil {
		t.Error("expected write to read-only handle to fail")
	}
}
