package onion

import (
	"context"

	"github.com/jpl-au/onion/blockdevice"
)

// onionEOFMarker is written to a freshly created canonical file so a
// host format library opening the canonical file alone (without this
// engine) sees a recognizable placeholder rather than a zero-length
// file.
var onionEOFMarker = []byte("ONIONEOF")

// Open attaches to, or creates, the onion-tracked file at path
// according to config.
func Open(ctx context.Context, path string, config Config) (*File, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	f := &File{
		ctx:           ctx,
		device:        config.device(),
		backingProps:  config.BackingConfig,
		canonicalPath: path,
		onionPath:     path + onionSuffix,
		recoveryPath:  path + onionSuffix + recoverySuffix,
		readWrite:     config.ReadWrite,
		config:        config,
	}

	if config.Create {
		if err := f.createFlow(); err != nil {
			return nil, err
		}
		return f, nil
	}

	if err := f.openExistingFlow(); err != nil {
		return nil, err
	}
	return f, nil
}

// createFlow creates a fresh canonical/onion/recovery triad and writes
// the initial empty history.
func (f *File) createFlow() (err error) {
	log2, err := log2PageSize(f.config.PageSize)
	if err != nil {
		return err
	}
	f.pageSize = f.config.PageSize
	f.pageSizeLog2 = log2

	header := &Header{Version: headerVersion, PageSize: f.pageSize, Flags: FlagWriteLock}
	if f.config.CreationFlags&EnableDivergentHistory != 0 {
		header.Flags |= FlagDivergentHistory
	}
	if f.config.CreationFlags&EnablePageAlignment != 0 {
		header.Flags |= FlagPageAlignment
	}

	userID, username, err := resolveIdentity()
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			f.closeHandlesBestEffort()
		}
	}()

	f.canonical, err = f.device.Open(f.ctx, f.canonicalPath, blockdevice.FlagCreateTruncate, f.backingProps, 0)
	if err != nil {
		return newErr(KindIO, "create", "open canonical file failed", err)
	}
	f.onion, err = f.device.Open(f.ctx, f.onionPath, blockdevice.FlagCreateTruncate, f.backingProps, 0)
	if err != nil {
		return newErr(KindIO, "create", "open onion file failed", err)
	}
	f.recovery, err = f.device.Open(f.ctx, f.recoveryPath, blockdevice.FlagCreateTruncate, f.backingProps, 0)
	if err != nil {
		return newErr(KindIO, "create", "open recovery file failed", err)
	}

	// Step 5: placeholder marker in the canonical file.
	if err = f.device.Write(f.ctx, f.canonical, blockdevice.Raw, f.backingProps, 0, onionEOFMarker); err != nil {
		return newErr(KindIO, "create", "write canonical marker failed", err)
	}

	// Step 6: empty whole-history to the recovery file, prefixed with a
	// blake2b witness digest (recovery.go).
	wh := &WholeHistory{NRevisions: 0, Pointers: nil}
	whBytes, _ := wh.encode()
	if err = f.device.Write(f.ctx, f.recovery, blockdevice.Raw, f.backingProps, 0, encodeRecoveryFile(whBytes)); err != nil {
		return newErr(KindIO, "create", "write recovery witness failed", err)
	}

	// Step 7: header to the onion file; history_eof starts after it.
	historyEOF := uint64(HeaderSize)
	if header.hasFlag(FlagPageAlignment) {
		historyEOF = pageAlign(historyEOF, f.pageSize)
	}
	hdrBytes, _ := header.encode()
	if err = f.device.Write(f.ctx, f.onion, blockdevice.Raw, f.backingProps, 0, hdrBytes); err != nil {
		return newErr(KindIO, "create", "write onion header failed", err)
	}
	if err = f.device.SetEOA(f.ctx, f.onion, blockdevice.Raw, historyEOF); err != nil {
		return newErr(KindIO, "create", "set onion EOA failed", err)
	}

	// Step 8: empty archival index and empty revision index.
	revIndex, err := newRevisionIndex(f.pageSize)
	if err != nil {
		return err
	}

	f.header = header
	f.wholeHistory = wh
	f.revRecord = &RevisionRecord{
		RevisionID:       0,
		ParentRevisionID: 0,
		PageSize:         f.pageSize,
		PageSizeLog2:     f.pageSizeLog2,
		UserID:           userID,
		Username:         username,
		Comment:          string(encodeComment(f.config.Comment)),
		ArchivalIndex:    *newArchivalIndex(f.pageSizeLog2),
	}
	f.revIndex = revIndex
	f.originEOF = 0
	f.logiEOF = 0
	f.logiEOA = 0
	f.historyEOF = historyEOF

	lock, err := newAdvisoryLock(f.onionPath + ".lock")
	if err != nil {
		return err
	}
	if err = lock.Lock(lockExclusive); err != nil {
		return err
	}
	f.lock = lock

	return nil
}

// openExistingFlow attaches to an existing canonical/onion triad,
// ingesting the history header and (if present) the target revision.
func (f *File) openExistingFlow() (err error) {
	defer func() {
		if err != nil {
			f.closeHandlesBestEffort()
		}
	}()

	f.canonical, err = f.device.Open(f.ctx, f.canonicalPath, blockdevice.FlagReadOnly, f.backingProps, 0)
	if err != nil {
		return newErr(KindIO, "open", "open canonical file failed", err)
	}

	onionFlag := blockdevice.FlagReadOnly
	if f.readWrite {
		onionFlag = blockdevice.FlagReadWrite
	}

	onionExisted, err := f.onionExists()
	if err != nil {
		return err
	}

	if !onionExisted && f.readWrite {
		// Reduced create: bring the onion and recovery files into
		// existence with an empty history, without truncating the
		// canonical file. A read-write open against pre-existing data
		// that has never been onion-tracked should start tracking it,
		// not destroy it.
		if err = f.reducedCreate(); err != nil {
			return err
		}
	} else {
		f.onion, err = f.device.Open(f.ctx, f.onionPath, onionFlag, f.backingProps, 0)
		if err != nil {
			return newErr(KindIO, "open", "open onion file failed", err)
		}
	}

	header, err := ingestHeader(f.ctx, f.device, f.onion, 0)
	if err != nil {
		return err
	}
	if header.hasFlag(FlagWriteLock) {
		return ErrWriteLocked
	}

	log2, err := log2PageSize(header.PageSize)
	if err != nil {
		return err
	}
	f.pageSize = header.PageSize
	f.pageSizeLog2 = log2

	var wh *WholeHistory
	if header.WholeHistorySize > 0 {
		wh, err = ingestWholeHistory(f.ctx, f.device, f.onion, header.WholeHistoryAddr, header.WholeHistorySize)
		if err != nil {
			return err
		}
	} else {
		wh = &WholeHistory{NRevisions: 0}
	}

	n := uint64(wh.NRevisions)
	reqID := f.config.RevisionID
	if reqID != LatestRevision && reqID >= n {
		return newErr(KindInvalidArgument, "open", "requested revision_id out of range", nil)
	}

	var target *RevisionRecord
	if n > 0 {
		target, err = ingestRevision(f.ctx, f.device, f.onion, wh, reqID)
		if err != nil {
			return err
		}
		if decoded, derr := decodeComment(target.Comment); derr == nil {
			target.Comment = decoded
		}
	} else {
		target = &RevisionRecord{PageSize: f.pageSize, PageSizeLog2: f.pageSizeLog2, ArchivalIndex: *newArchivalIndex(f.pageSizeLog2)}
	}

	f.header = header
	f.wholeHistory = wh
	f.revRecord = target

	onionEOA, err := f.device.GetEOA(f.ctx, f.onion, blockdevice.Raw)
	if err != nil {
		return newErr(KindIO, "open", "get onion EOA failed", err)
	}
	historyEOF := onionEOA
	if header.hasFlag(FlagPageAlignment) {
		historyEOF = pageAlign(historyEOF, f.pageSize)
	}

	if f.readWrite {
		if err = f.writeOpenProtocol(); err != nil {
			return err
		}
	}

	f.originEOF = header.OriginEOF
	f.logiEOF = target.LogiEOF
	f.logiEOA = 0
	f.historyEOF = historyEOF

	return nil
}

// onionExists probes for the onion file without disturbing state on
// failure: a read-only device.Open against FlagReadOnly either
// succeeds (file exists) or fails (treated as absent). This keeps the
// probe within the Device abstraction instead of reaching for os.Stat,
// since the backing store is not assumed to be a local filesystem.
func (f *File) onionExists() (bool, error) {
	h, err := f.device.Open(f.ctx, f.onionPath, blockdevice.FlagReadOnly, f.backingProps, 0)
	if err != nil {
		return false, nil
	}
	f.device.Close(f.ctx, h)
	return true, nil
}

// reducedCreate brings the onion file into existence with an empty
// history when opening read-write against a canonical file that has no
// onion history yet; the recovery file is created afterwards by
// writeOpenProtocol. The canonical file is opened read-only and never
// truncated.
func (f *File) reducedCreate() (err error) {
	f.onion, err = f.device.Open(f.ctx, f.onionPath, blockdevice.FlagCreateTruncate, f.backingProps, 0)
	if err != nil {
		return newErr(KindIO, "open", "create onion file failed", err)
	}

	originEOF, err := f.device.GetEOF(f.ctx, f.canonical, blockdevice.Raw)
	if err != nil {
		return newErr(KindIO, "open", "stat canonical file failed", err)
	}

	header := &Header{Version: headerVersion, PageSize: f.config.PageSize, OriginEOF: originEOF}
	if f.config.CreationFlags&EnableDivergentHistory != 0 {
		header.Flags |= FlagDivergentHistory
	}
	if f.config.CreationFlags&EnablePageAlignment != 0 {
		header.Flags |= FlagPageAlignment
	}

	historyEOF := uint64(HeaderSize)
	if header.hasFlag(FlagPageAlignment) {
		historyEOF = pageAlign(historyEOF, header.PageSize)
	}

	hdrBytes, _ := header.encode()
	if err = f.device.Write(f.ctx, f.onion, blockdevice.Raw, f.backingProps, 0, hdrBytes); err != nil {
		return newErr(KindIO, "open", "write onion header failed", err)
	}
	if err = f.device.SetEOA(f.ctx, f.onion, blockdevice.Raw, historyEOF); err != nil {
		return newErr(KindIO, "open", "set onion EOA failed", err)
	}
	return nil
}

// writeOpenProtocol acquires the write lock, snapshots the parent
// revision's archival index forward into the new in-progress revision,
// and writes the crash-recovery witness before any page is touched.
func (f *File) writeOpenProtocol() (err error) {
	if f.header.hasFlag(FlagWriteLock) {
		return ErrWriteLocked
	}

	f.recovery, err = f.device.Open(f.ctx, f.recoveryPath, blockdevice.FlagCreateTruncate, f.backingProps, 0)
	if err != nil {
		return newErr(KindIO, "write_open", "create recovery file failed", err)
	}

	whBytes, err := f.wholeHistory.encode()
	if err != nil {
		return err
	}
	if err = f.device.Write(f.ctx, f.recovery, blockdevice.Raw, f.backingProps, 0, encodeRecoveryFile(whBytes)); err != nil {
		return newErr(KindIO, "write_open", "write recovery witness failed", err)
	}
	if f.header.WholeHistorySize != 0 && uint64(len(whBytes)) != f.header.WholeHistorySize {
		return newErr(KindInternal, "write_open", "recovery witness size does not match header", nil)
	}

	f.header.Flags |= FlagWriteLock
	hdrBytes, err := f.header.encode()
	if err != nil {
		return err
	}
	if err = f.device.Write(f.ctx, f.onion, blockdevice.Raw, f.backingProps, 0, hdrBytes); err != nil {
		return newErr(KindIO, "write_open", "rewrite onion header failed", err)
	}

	revIndex, err := newRevisionIndex(f.pageSize)
	if err != nil {
		return err
	}
	f.revIndex = revIndex

	userID, username, err := resolveIdentity()
	if err != nil {
		return err
	}

	parentID := f.revRecord.RevisionID
	archivalCopy := make([]IndexEntry, len(f.revRecord.ArchivalIndex.List))
	copy(archivalCopy, f.revRecord.ArchivalIndex.List)

	f.revRecord = &RevisionRecord{
		RevisionID:       parentID + 1,
		ParentRevisionID: parentID,
		PageSize:         f.pageSize,
		PageSizeLog2:     f.pageSizeLog2,
		UserID:           userID,
		Username:         username,
		Comment:          string(encodeComment(f.config.Comment)),
		ArchivalIndex:    ArchivalIndex{PageSizeLog2: f.pageSizeLog2, List: archivalCopy},
	}

	lock, err := newAdvisoryLock(f.onionPath + ".lock")
	if err != nil {
		return err
	}
	if err = lock.Lock(lockExclusive); err != nil {
		return err
	}
	f.lock = lock

	return nil
}

func (f *File) closeHandlesBestEffort() {
	if f.canonical != nil {
		f.device.Close(f.ctx, f.canonical)
	}
	if f.onion != nil {
		f.device.Close(f.ctx, f.onion)
	}
	if f.recovery != nil {
		f.device.Close(f.ctx, f.recovery)
	}
	if f.lock != nil {
		f.lock.Unlock()
		f.lock.Close()
	}
}
