// Whole-history: the table enumerating every revision record by
// (phys_addr, record_size, checksum), and the ingest routines that load
// a header, a whole-history, and a target revision from an onion file.
package onion

import (
	"context"

	"github.com/jpl-au/onion/blockdevice"
)

// RecordPointerSize is the fixed encoded size of one whole-history
// record pointer.
const RecordPointerSize = 20

// WholeHistoryFixedSize is the documented fixed-size prefix of an
// encoded whole-history, before its variable-length pointer list.
const WholeHistoryFixedSize = 20

// LatestRevision is the sentinel RevisionID meaning "the newest
// revision".
const LatestRevision = ^uint64(0)

// RecordPointer locates one revision record within the onion file.
type RecordPointer struct {
	PhysAddr   uint64
	RecordSize uint64
}

func (p RecordPointer) encode() []byte {
	body := make([]byte, RecordPointerSize-4)
	putU64(body[0:8], p.PhysAddr)
	putU64(body[8:16], p.RecordSize)
	out, _ := appendChecksum(body)
	return out
}

func decodeRecordPointer(buf []byte) (RecordPointer, error) {
	if len(buf) != RecordPointerSize {
		return RecordPointer{}, newErr(KindDecode, "decode_record_pointer", "wrong buffer length", nil)
	}
	if !verifyChecksum(buf) {
		return RecordPointer{}, newErr(KindDecode, "decode_record_pointer", "checksum mismatch", nil)
	}
	return RecordPointer{
		PhysAddr:   getU64(buf[0:8]),
		RecordSize: getU64(buf[8:16]),
	}, nil
}

// WholeHistory enumerates every revision record written to an onion
// file, in chronological (and therefore revision_id-ascending) order.
type WholeHistory struct {
	NRevisions int64 // kept signed so len()-style arithmetic is natural; always >= 0 on disk
	Pointers   []RecordPointer
}

func (wh *WholeHistory) encode() ([]byte, error) {
	n := len(wh.Pointers)
	body := make([]byte, WholeHistoryFixedSize+n*RecordPointerSize)
	copy(body[0:4], signatureHistory)
	body[4] = historyVersion
	// body[5:12] reserved, zero
	putU64(body[12:20], uint64(n))

	off := WholeHistoryFixedSize
	for _, p := range wh.Pointers {
		copy(body[off:off+RecordPointerSize], p.encode())
		off += RecordPointerSize
	}

	out, _ := appendChecksum(body)
	return out, nil
}

func decodeWholeHistoryHeader(buf []byte) (*WholeHistory, int, error) {
	if len(buf) < WholeHistoryFixedSize {
		return nil, 0, newErr(KindDecode, "decode_whole_history", "buffer shorter than fixed prefix", nil)
	}
	if string(buf[0:4]) != signatureHistory {
		return nil, 0, newErr(KindDecode, "decode_whole_history", "signature mismatch", nil)
	}
	if buf[4] != historyVersion {
		return nil, 0, newErr(KindDecode, "decode_whole_history", "version mismatch", nil)
	}

	n := getU64(buf[12:20])
	total := WholeHistoryFixedSize + int(n)*RecordPointerSize + 4
	return &WholeHistory{NRevisions: int64(n)}, total, nil
}

func decodeWholeHistoryBody(buf []byte, hdr *WholeHistory) (*WholeHistory, error) {
	if !verifyChecksum(buf) {
		return nil, newErr(KindDecode, "decode_whole_history", "checksum mismatch", nil)
	}

	n := int(hdr.NRevisions)
	pointers := make([]RecordPointer, n)
	off := WholeHistoryFixedSize
	for i := range pointers {
		p, err := decodeRecordPointer(buf[off : off+RecordPointerSize])
		if err != nil {
			return nil, err
		}
		pointers[i] = p
		off += RecordPointerSize
	}
	hdr.Pointers = pointers
	return hdr, nil
}

func decodeWholeHistory(buf []byte) (*WholeHistory, error) {
	hdr, total, err := decodeWholeHistoryHeader(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) != total {
		return nil, newErr(KindDecode, "decode_whole_history", "inconsistent length between two-phase passes", nil)
	}
	return decodeWholeHistoryBody(buf, hdr)
}

// readExact reads exactly len(out) bytes from h at offset via dev,
// wrapping any failure as a KindIO error. All ingest reads require the
// backing file's addressable range to cover the requested span.
func readExact(ctx context.Context, dev blockdevice.Device, h blockdevice.Handle, offset uint64, out []byte) error {
	eof, err := dev.GetEOF(ctx, h, blockdevice.Raw)
	if err != nil {
		return newErr(KindIO, "read", "get_eof failed", err)
	}
	if offset+uint64(len(out)) > eof {
		return newErr(KindDecode, "read", "requested span exceeds backing file extent", nil)
	}
	if err := dev.Read(ctx, h, blockdevice.Raw, blockdevice.AccessProperties{}, offset, out); err != nil {
		return newErr(KindIO, "read", "device read failed", err)
	}
	return nil
}

// ingestHeader reads and decodes the 40-byte history header at addr.
func ingestHeader(ctx context.Context, dev blockdevice.Device, h blockdevice.Handle, addr uint64) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if err := readExact(ctx, dev, h, addr, buf); err != nil {
		return nil, err
	}
	return decodeHeader(buf)
}

// ingestWholeHistory reads and two-phase-decodes the whole-history at
// (addr, size).
func ingestWholeHistory(ctx context.Context, dev blockdevice.Device, h blockdevice.Handle, addr, size uint64) (*WholeHistory, error) {
	buf := make([]byte, size)
	if err := readExact(ctx, dev, h, addr, buf); err != nil {
		return nil, err
	}
	return decodeWholeHistory(buf)
}

// ingestRevision binary-searches whole-history's chronologically
// ordered pointers for targetID (or LatestRevision) and decodes the
// matching revision record.
func ingestRevision(ctx context.Context, dev blockdevice.Device, h blockdevice.Handle, wh *WholeHistory, targetID uint64) (*RevisionRecord, error) {
	n := len(wh.Pointers)
	if n == 0 {
		return nil, newErr(KindInvalidArgument, "ingest_revision", "whole-history has no revisions", nil)
	}

	if targetID == LatestRevision {
		return readRevisionAt(ctx, dev, h, wh.Pointers[n-1])
	}

	low, high := 0, n-1
	for low < high {
		mid := low + (high-low)/2
		rec, err := readRevisionAt(ctx, dev, h, wh.Pointers[mid])
		if err != nil {
			return nil, err
		}
		switch {
		case rec.RevisionID == targetID:
			return rec, nil
		case rec.RevisionID < targetID:
			low = mid + 1
		default:
			high = mid
		}
	}

	rec, err := readRevisionAt(ctx, dev, h, wh.Pointers[low])
	if err != nil {
		return nil, err
	}
	if rec.RevisionID != targetID {
		return nil, newErr(KindInvalidArgument, "ingest_revision", "requested revision_id not found", nil)
	}
	return rec, nil
}

func readRevisionAt(ctx context.Context, dev blockdevice.Device, h blockdevice.Handle, ptr RecordPointer) (*RevisionRecord, error) {
	buf := make([]byte, ptr.RecordSize)
	if err := readExact(ctx, dev, h, ptr.PhysAddr, buf); err != nil {
		return nil, err
	}
	return decodeRevisionRecord(buf)
}
