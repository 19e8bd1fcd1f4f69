// Commit protocol: on a read-write close, the in-progress revision is
// merged into its archival index, appended to the onion file, and
// registered in the whole history; the header's write lock is cleared
// last so a crash mid-commit leaves the lock set and the recovery
// witness intact.
package onion

import "github.com/jpl-au/onion/blockdevice"

// Close commits (read-write) or simply releases (read-only) the open
// handle. Calling Close more than once is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	defer func() { f.closed = true }()

	if f.readWrite {
		if err := f.commit(); err != nil {
			return err
		}
	}

	f.device.Close(f.ctx, f.canonical)
	f.device.Close(f.ctx, f.onion)

	if f.readWrite {
		f.device.Close(f.ctx, f.recovery)
		removeRecoveryFile(f.recoveryPath)
		f.lock.Unlock()
		f.lock.Close()
	}

	return nil
}

// commit merges the in-progress revision into the archival index,
// appends the revision record, appends the updated whole history, then
// rewrites the header with the write lock cleared.
func (f *File) commit() error {
	rev := f.revRecord
	rev.TimeOfCreation = nowTimeOfCreation()
	rev.LogiEOF = f.logiEOF

	if err := mergeRevisionIntoArchival(&rev.ArchivalIndex, f.revIndex); err != nil {
		return err
	}

	recordAddr := f.historyEOF
	recBytes, err := rev.encode()
	if err != nil {
		return err
	}
	if err := f.writeOnion(recordAddr, recBytes); err != nil {
		return err
	}

	historyEOF := recordAddr + uint64(len(recBytes))
	if f.header.hasFlag(FlagPageAlignment) {
		historyEOF = pageAlign(historyEOF, f.pageSize)
	}
	if err := f.device.SetEOA(f.ctx, f.onion, blockdevice.Raw, historyEOF); err != nil {
		return newErr(KindIO, "commit", "extend onion EOA for revision record failed", err)
	}

	f.wholeHistory.Pointers = append(f.wholeHistory.Pointers, RecordPointer{
		PhysAddr:   recordAddr,
		RecordSize: uint64(len(recBytes)),
	})
	f.wholeHistory.NRevisions++

	whAddr := historyEOF
	whBytes, err := f.wholeHistory.encode()
	if err != nil {
		return err
	}
	if err := f.writeOnion(whAddr, whBytes); err != nil {
		return err
	}

	finalHistoryEOF := whAddr + uint64(len(whBytes))
	if f.header.hasFlag(FlagPageAlignment) {
		finalHistoryEOF = pageAlign(finalHistoryEOF, f.pageSize)
	}
	if err := f.device.SetEOA(f.ctx, f.onion, blockdevice.Raw, finalHistoryEOF); err != nil {
		return newErr(KindIO, "commit", "extend onion EOA for whole history failed", err)
	}

	f.header.WholeHistoryAddr = whAddr
	f.header.WholeHistorySize = uint64(len(whBytes))
	f.header.Flags &^= FlagWriteLock

	hdrBytes, err := f.header.encode()
	if err != nil {
		return err
	}
	if err := f.writeOnion(0, hdrBytes); err != nil {
		return err
	}

	f.historyEOF = finalHistoryEOF
	return nil
}
