package onion

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func mustOpen(t *testing.T, path string, cfg Config) *File {
	t.Helper()
	f, err := Open(context.Background(), path, cfg)
	if err != nil {
		t.Fatalf("Open(%+v): %v", cfg, err)
	}
	return f
}

func TestCreateEmptyClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.dat")

	f := mustOpen(t, path, Config{Create: true, ReadWrite: true, PageSize: 4096})
	if f.RevisionID() != 0 {
		t.Fatalf("RevisionID() = %d, want 0 for a fresh create", f.RevisionID())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := mustOpen(t, path, Config{PageSize: 4096})
	defer r.Close()
	if r.RevisionID() != 0 {
		t.Fatalf("reopened RevisionID() = %d, want 0", r.RevisionID())
	}
	if r.LogiEOF() != 0 {
		t.Fatalf("reopened LogiEOF() = %d, want 0", r.LogiEOF())
	}
}

func TestSinglePageWriteReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.dat")
	const pageSize = 4096

	f := mustOpen(t, path, Config{Create: true, ReadWrite: true, PageSize: pageSize})
	data := bytes.Repeat([]byte{0xAB}, pageSize)
	if err := f.SetLogiEOA(pageSize); err != nil {
		t.Fatalf("SetLogiEOA: %v", err)
	}
	if err := f.Write(0, pageSize, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := mustOpen(t, path, Config{PageSize: pageSize, RevisionID: LatestRevision})
	defer r.Close()
	if err := r.SetLogiEOA(r.LogiEOF()); err != nil {
		t.Fatalf("SetLogiEOA: %v", err)
	}

	out := make([]byte, pageSize)
	if err := r.Read(0, pageSize, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("read back data does not match what was written")
	}
}

func TestCrossPageWriteWithZeroFilledGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cross.dat")
	const pageSize = 512

	f := mustOpen(t, path, Config{Create: true, ReadWrite: true, PageSize: pageSize})
	const offset, length = 300, 500 // spans pages 0 and 1
	payload := bytes.Repeat([]byte{0xCD}, length)

	if err := f.SetLogiEOA(offset + length); err != nil {
		t.Fatalf("SetLogiEOA: %v", err)
	}
	if err := f.Write(offset, length, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := mustOpen(t, path, Config{PageSize: pageSize, RevisionID: LatestRevision})
	defer r.Close()
	if err := r.SetLogiEOA(r.LogiEOF()); err != nil {
		t.Fatalf("SetLogiEOA: %v", err)
	}

	// The gap before the write, within page 0, must read back as zero
	// since origin_eof is 0 for a freshly created file (the canonical
	// file holds only its placeholder marker).
	gap := make([]byte, offset)
	if err := r.Read(0, offset, gap); err != nil {
		t.Fatalf("Read gap: %v", err)
	}
	for i, b := range gap {
		if b != 0 {
			t.Fatalf("gap byte %d = %#x, want 0", i, b)
		}
	}

	written := make([]byte, length)
	if err := r.Read(offset, length, written); err != nil {
		t.Fatalf("Read written: %v", err)
	}
	if !bytes.Equal(written, payload) {
		t.Fatalf("read back payload does not match what was written")
	}
}

func TestChainedRevisions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.dat")
	const pageSize = 4096

	pageA := bytes.Repeat([]byte{0x11}, pageSize)
	f0 := mustOpen(t, path, Config{Create: true, ReadWrite: true, PageSize: pageSize})
	if err := f0.SetLogiEOA(pageSize); err != nil {
		t.Fatalf("SetLogiEOA: %v", err)
	}
	if err := f0.Write(0, pageSize, pageA); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f0.Close(); err != nil {
		t.Fatalf("Close (rev0): %v", err)
	}

	pageB := bytes.Repeat([]byte{0x22}, pageSize)
	patch := bytes.Repeat([]byte{0x33}, 50)
	f1 := mustOpen(t, path, Config{ReadWrite: true, PageSize: pageSize})
	if f1.RevisionID() != 1 || f1.revRecord.ParentRevisionID != 0 {
		t.Fatalf("second session RevisionID=%d ParentRevisionID=%d, want 1, 0",
			f1.RevisionID(), f1.revRecord.ParentRevisionID)
	}
	if err := f1.SetLogiEOA(2 * pageSize); err != nil {
		t.Fatalf("SetLogiEOA: %v", err)
	}
	if err := f1.Write(pageSize, pageSize, pageB); err != nil {
		t.Fatalf("Write pageB: %v", err)
	}
	if err := f1.Write(100, 50, patch); err != nil {
		t.Fatalf("Write patch: %v", err)
	}
	if err := f1.Close(); err != nil {
		t.Fatalf("Close (rev1): %v", err)
	}

	// Latest revision sees the patched page 0 and the new page 1.
	latest := mustOpen(t, path, Config{PageSize: pageSize, RevisionID: LatestRevision})
	defer latest.Close()
	if err := latest.SetLogiEOA(latest.LogiEOF()); err != nil {
		t.Fatalf("SetLogiEOA: %v", err)
	}

	got0 := make([]byte, pageSize)
	if err := latest.Read(0, pageSize, got0); err != nil {
		t.Fatalf("Read page0: %v", err)
	}
	if !bytes.Equal(got0[100:150], patch) {
		t.Fatalf("patched region does not match")
	}
	if !bytes.Equal(got0[:100], pageA[:100]) || !bytes.Equal(got0[150:], pageA[150:]) {
		t.Fatalf("unpatched region of page0 was disturbed")
	}

	got1 := make([]byte, pageSize)
	if err := latest.Read(pageSize, pageSize, got1); err != nil {
		t.Fatalf("Read page1: %v", err)
	}
	if !bytes.Equal(got1, pageB) {
		t.Fatalf("page1 does not match pageB")
	}

	// Revision 0 is untouched by the later patch.
	rev0 := mustOpen(t, path, Config{PageSize: pageSize, RevisionID: 0})
	defer rev0.Close()
	if err := rev0.SetLogiEOA(rev0.LogiEOF()); err != nil {
		t.Fatalf("SetLogiEOA: %v", err)
	}
	if rev0.LogiEOF() != pageSize {
		t.Fatalf("rev0 LogiEOF() = %d, want %d", rev0.LogiEOF(), pageSize)
	}
	old0 := make([]byte, pageSize)
	if err := rev0.Read(0, pageSize, old0); err != nil {
		t.Fatalf("Read rev0 page0: %v", err)
	}
	if !bytes.Equal(old0, pageA) {
		t.Fatalf("revision 0's page 0 was retroactively mutated by revision 1's write")
	}
}

func TestWriteLockRefusal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.dat")

	f := mustOpen(t, path, Config{Create: true, ReadWrite: true, PageSize: 4096})
	defer f.Close()

	_, err := Open(context.Background(), path, Config{ReadWrite: true, PageSize: 4096})
	if err != ErrWriteLocked {
		t.Fatalf("second concurrent read-write open = %v, want ErrWriteLocked", err)
	}
}

func TestOpenRejectsCorruptedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.dat")

	f := mustOpen(t, path, Config{Create: true, ReadWrite: true, PageSize: 4096})
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	onionPath := path + onionSuffix
	raw, err := os.ReadFile(onionPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	raw[10] ^= 0xFF // corrupt a byte inside the header body
	if err := os.WriteFile(onionPath, raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Open(context.Background(), path, Config{PageSize: 4096}); err == nil {
		t.Fatalf("Open accepted a corrupted header")
	} else if KindOf(err) != KindDecode {
		t.Fatalf("KindOf = %v, want KindDecode", KindOf(err))
	}
}

func TestWriteRejectsRangeBeyondLogiEOA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "range.dat")
	f := mustOpen(t, path, Config{Create: true, ReadWrite: true, PageSize: 4096})
	defer f.Close()

	if err := f.SetLogiEOA(100); err != nil {
		t.Fatalf("SetLogiEOA: %v", err)
	}
	if err := f.Write(0, 200, make([]byte, 200)); err == nil {
		t.Fatalf("Write accepted a range beyond logi_eoa")
	}
}

func TestWriteRejectsReadOnlyHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readonly.dat")
	f := mustOpen(t, path, Config{Create: true, ReadWrite: true, PageSize: 4096})
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := mustOpen(t, path, Config{PageSize: 4096})
	defer r.Close()
	if err := r.Write(0, 10, make([]byte, 10)); err == nil {
		t.Fatalf("Write succeeded against a read-only handle")
	}
}
