package onion

import (
	"context"

	"github.com/jpl-au/onion/blockdevice"
)

// recoverySuffix is appended to the onion file's path to name its
// crash-recovery witness file.
const recoverySuffix = ".recovery"
const onionSuffix = ".onion"

// File is an open handle through this package's revision/page storage
// engine. It presents a logical byte-addressable view equal to the
// canonical file with the selected revision's committed deltas applied.
type File struct {
	ctx context.Context

	device        blockdevice.Device
	backingProps  blockdevice.AccessProperties
	canonicalPath string
	onionPath     string
	recoveryPath  string

	canonical blockdevice.Handle
	onion     blockdevice.Handle
	recovery  blockdevice.Handle // only set during a write session

	header       *Header
	wholeHistory *WholeHistory
	revRecord    *RevisionRecord // target revision (read-only) or under-construction revision (read-write)
	revIndex     *RevisionIndex  // nil unless opened read-write

	pageSize     uint32
	pageSizeLog2 uint32

	originEOF  uint64
	logiEOF    uint64
	logiEOA    uint64
	historyEOF uint64

	readWrite bool
	lock      *advisoryLock

	config Config
	closed bool
}

// archival returns the archival index consulted by reads: the target
// revision's full cumulative index on a read-only open, or the
// in-progress revision's carried-forward index (pre-merge) on a
// read-write open.
func (f *File) archival() *ArchivalIndex {
	return &f.revRecord.ArchivalIndex
}

// SetLogiEOA sets the logical end-of-address: the upper bound that
// Read and Write requests must stay within. logi_eoa only ever changes
// via an explicit call from the driving application, typically a
// metadata cache announcing how large the logical file may grow, so
// it is exposed directly on File rather than threaded through Config:
// it is a per-session runtime quantity, not static configuration.
func (f *File) SetLogiEOA(addr uint64) error {
	if f.closed {
		return newErr(KindInvalidArgument, "set_logi_eoa", "file is closed", nil)
	}
	f.logiEOA = addr
	return nil
}

// LogiEOF returns the logical end-of-file: the highest logical address
// written so far (by a prior revision, or by this session's writes).
func (f *File) LogiEOF() uint64 { return f.logiEOF }

// LogiEOA returns the current logical end-of-address ceiling.
func (f *File) LogiEOA() uint64 { return f.logiEOA }

// PageSize returns the page width fixed at creation.
func (f *File) PageSize() uint32 { return f.pageSize }

// RevisionID returns the revision this handle is reading (read-only) or
// will commit as (read-write, before Close).
func (f *File) RevisionID() uint64 {
	if f.revRecord == nil {
		return 0
	}
	return f.revRecord.RevisionID
}

// pageSpan is one of the per-page (logiPage, head, copyLen) triples
// that splitPages produces from [offset, offset+length). head is the number of bytes before the requested
// range within the page (non-zero only for the first page); copyLen is
// how many bytes of this page fall within the request.
type pageSpan struct {
	logiPage uint64
	head     uint32
	copyLen  uint32
}

func (f *File) splitPages(offset, length uint64) []pageSpan {
	if length == 0 {
		return nil
	}
	ps := uint64(f.pageSize)
	firstPage := offset / ps
	lastPage := (offset + length - 1) / ps

	spans := make([]pageSpan, 0, lastPage-firstPage+1)
	for p := firstPage; p <= lastPage; p++ {
		pageStart := p * ps
		pageEnd := pageStart + ps
		rangeStart := offset
		if pageStart > rangeStart {
			rangeStart = pageStart
		}
		rangeEnd := offset + length
		if pageEnd < rangeEnd {
			rangeEnd = pageEnd
		}
		spans = append(spans, pageSpan{
			logiPage: p,
			head:     uint32(rangeStart - pageStart),
			copyLen:  uint32(rangeEnd - rangeStart),
		})
	}
	return spans
}
