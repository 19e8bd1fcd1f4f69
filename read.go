// Read path: page-wise read across the revision, archival, and origin
// tiers.
package onion

import "github.com/jpl-au/onion/blockdevice"

// Read copies length bytes starting at the logical offset into out,
// which must be at least length bytes long. It requires
// offset+length <= LogiEOA.
func (f *File) Read(offset, length uint64, out []byte) error {
	if f.closed {
		return newErr(KindInvalidArgument, "read", "file is closed", nil)
	}
	if offset+length > f.logiEOA {
		return newErr(KindInvalidArgument, "read", "requested range exceeds logical end-of-address", nil)
	}
	if length == 0 {
		return nil
	}
	if uint64(len(out)) < length {
		return newErr(KindInvalidArgument, "read", "output buffer shorter than length", nil)
	}

	var copied uint64
	for _, span := range f.splitPages(offset, length) {
		dst := out[copied : copied+uint64(span.copyLen)]
		if err := f.readPage(span, dst); err != nil {
			return err
		}
		copied += uint64(span.copyLen)
	}

	if copied != length {
		return newErr(KindInternal, "read", "aggregate bytes copied did not equal requested length", nil)
	}
	return nil
}

func (f *File) readPage(span pageSpan, dst []byte) error {
	// Tier 1: revision index, writers only.
	if f.readWrite {
		if e, ok := f.revIndex.find(span.logiPage); ok {
			return f.readOnion(e.PhysAddr+uint64(span.head), dst)
		}
	}

	// Tier 2: archival index of the current/target revision.
	if e, ok := f.archival().find(span.logiPage); ok {
		if err := f.readOnion(e.PhysAddr+uint64(span.head), dst); err != nil {
			return err
		}
		f.readAhead(span.logiPage)
		return nil
	}

	// Tier 3: origin canonical bytes, zero-filled beyond origin_eof.
	return f.readOrigin(span, dst)
}

// readAhead speculatively touches up to config.ReadAheadPages pages
// past logiPage that are already present in the archival index. It is
// a pure performance hint: failures and misses are silently ignored,
// and it never affects what Read returns.
func (f *File) readAhead(logiPage uint64) {
	n := f.config.ReadAheadPages
	if n == 0 {
		return
	}
	scratch := make([]byte, f.pageSize)
	for i := uint64(1); i <= uint64(n); i++ {
		e, ok := f.archival().find(logiPage + i)
		if !ok {
			break
		}
		if f.readOnion(e.PhysAddr, scratch) != nil {
			return
		}
	}
}

func (f *File) readOnion(addr uint64, dst []byte) error {
	if err := f.device.Read(f.ctx, f.onion, blockdevice.Raw, f.backingProps, addr, dst); err != nil {
		return newErr(KindIO, "read", "onion read failed", err)
	}
	return nil
}

func (f *File) readOrigin(span pageSpan, dst []byte) error {
	pageStart := span.logiPage*uint64(f.pageSize) + uint64(span.head)

	if pageStart >= f.originEOF {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}

	avail := f.originEOF - pageStart
	n := uint64(len(dst))
	if avail < n {
		n = avail
	}

	if n > 0 {
		if err := f.device.Read(f.ctx, f.canonical, blockdevice.Raw, f.backingProps, pageStart, dst[:n]); err != nil {
			return newErr(KindIO, "read", "canonical read failed", err)
		}
	}
	for i := n; i < uint64(len(dst)); i++ {
		dst[i] = 0
	}
	return nil
}
