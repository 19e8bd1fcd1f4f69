// Write path: page-wise copy-on-write, appending new pages to the onion
// file and recording them in the revision index.
package onion

import "github.com/jpl-au/onion/blockdevice"

// Write copies length bytes from in into the logical file starting at
// offset. It requires the file be open read-write and
// offset+length <= LogiEOA.
func (f *File) Write(offset, length uint64, in []byte) error {
	if f.closed {
		return newErr(KindInvalidArgument, "write", "file is closed", nil)
	}
	if !f.readWrite {
		return newErr(KindInvalidArgument, "write", "file is not open read-write", nil)
	}
	if offset+length > f.logiEOA {
		return newErr(KindInvalidArgument, "write", "requested range exceeds logical end-of-address", nil)
	}
	if length == 0 {
		return nil
	}
	if uint64(len(in)) < length {
		return newErr(KindInvalidArgument, "write", "input buffer shorter than length", nil)
	}

	var consumed uint64
	for _, span := range f.splitPages(offset, length) {
		src := in[consumed : consumed+uint64(span.copyLen)]
		if err := f.writePage(span, src); err != nil {
			return err
		}
		consumed += uint64(span.copyLen)
	}

	if end := offset + length; end > f.logiEOF {
		f.logiEOF = end
	}
	return nil
}

func (f *File) writePage(span pageSpan, src []byte) error {
	ps := uint64(f.pageSize)
	pageStart := span.logiPage * ps

	var image []byte
	if span.head == 0 && uint64(span.copyLen) == ps {
		image = src
	} else {
		image = make([]byte, f.pageSize)
		if err := f.fillPageGaps(span.logiPage, pageStart, image); err != nil {
			return err
		}
		copy(image[span.head:uint64(span.head)+uint64(span.copyLen)], src)
	}

	if e, ok := f.revIndex.find(span.logiPage); ok {
		// Revision-index hit: overwrite in place, no new slot.
		return f.writeOnion(e.PhysAddr, image)
	}

	// Miss: append a new page image and record it.
	newAddr := f.historyEOF
	if err := f.device.SetEOA(f.ctx, f.onion, blockdevice.Raw, newAddr+ps); err != nil {
		return newErr(KindIO, "write", "extend onion EOA failed", err)
	}
	if err := f.writeOnion(newAddr, image); err != nil {
		return err
	}
	if err := f.revIndex.insert(IndexEntry{LogiPage: span.logiPage, PhysAddr: newAddr}); err != nil {
		return err
	}
	f.historyEOF = newAddr + ps
	return nil
}

// fillPageGaps materializes a full page image for span.logiPage into
// buf (already zeroed, length pageSize) by reading from whichever tier
// currently holds the page: the in-progress revision, the archival
// index, or the canonical origin.
func (f *File) fillPageGaps(logiPage, pageStart uint64, buf []byte) error {
	if e, ok := f.revIndex.find(logiPage); ok {
		return f.readOnion(e.PhysAddr, buf)
	}
	if e, ok := f.archival().find(logiPage); ok {
		return f.readOnion(e.PhysAddr, buf)
	}

	if pageStart >= f.originEOF {
		return nil // buf is already zeroed
	}
	avail := f.originEOF - pageStart
	n := uint64(len(buf))
	if avail < n {
		n = avail
	}
	if err := f.device.Read(f.ctx, f.canonical, blockdevice.Raw, f.backingProps, pageStart, buf[:n]); err != nil {
		return newErr(KindIO, "write", "canonical read failed", err)
	}
	return nil
}

func (f *File) writeOnion(addr uint64, data []byte) error {
	if err := f.device.Write(f.ctx, f.onion, blockdevice.Raw, f.backingProps, addr, data); err != nil {
		return newErr(KindIO, "write", "onion write failed", err)
	}
	return nil
}
