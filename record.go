// Revision record: the committed set of page-level deltas for one
// revision, plus its archival index, attribution, and comment.
// Encoding follows the two-phase protocol used throughout this
// package's variable-length structures: a first pass reads the
// fixed-size prefix and reports the counts needed to allocate the
// variable-length parts; a second pass fills them in.
package onion

import "time"

// RevisionRecordFixedSize is the fixed-size prefix of an encoded
// revision record, before its variable-length entry list, username,
// and comment.
const RevisionRecordFixedSize = 76

// timeOfCreationSize is the fixed width of the UTC timestamp string
// "YYYYMMDDTHHMMSSZ".
const timeOfCreationSize = 16

// RevisionRecord is the in-memory form of one committed revision.
type RevisionRecord struct {
	RevisionID       uint64
	ParentRevisionID uint64
	TimeOfCreation   string // exactly timeOfCreationSize bytes, "YYYYMMDDTHHMMSSZ"
	LogiEOF          uint64
	PageSize         uint32
	PageSizeLog2     uint32
	UserID           uint32
	Username         string
	Comment          string
	ArchivalIndex    ArchivalIndex
}

func nowTimeOfCreation() string {
	return time.Now().UTC().Format("20060102T150405Z")
}

// encode serializes r to its full wire form: fixed prefix, archival
// index entries, username, comment, then the trailing checksum.
func (r *RevisionRecord) encode() ([]byte, error) {
	ts := r.TimeOfCreation
	if len(ts) != timeOfCreationSize {
		return nil, newErr(KindInvalidArgument, "encode_revision_record", "time_of_creation must be exactly 16 bytes", nil)
	}

	nEntries := uint64(len(r.ArchivalIndex.List))
	usernameBytes := []byte(r.Username)
	commentBytes := []byte(r.Comment)

	total := RevisionRecordFixedSize + int(nEntries)*IndexEntrySize + len(usernameBytes) + len(commentBytes)
	body := make([]byte, total)

	copy(body[0:4], signatureRevision)
	body[4] = revisionVersion
	// body[5:8] reserved, zero
	putU64(body[8:16], r.RevisionID)
	putU64(body[16:24], r.ParentRevisionID)
	copy(body[24:40], ts)
	putU64(body[40:48], r.LogiEOF)
	putU32(body[48:52], r.PageSize)
	putU32(body[52:56], r.PageSizeLog2)
	putU32(body[56:60], r.UserID)
	putU64(body[60:68], nEntries)
	putU32(body[68:72], uint32(len(usernameBytes)))
	putU32(body[72:76], uint32(len(commentBytes)))

	off := RevisionRecordFixedSize
	for _, e := range r.ArchivalIndex.List {
		copy(body[off:off+IndexEntrySize], e.encode(r.PageSizeLog2))
		off += IndexEntrySize
	}
	off += copy(body[off:], usernameBytes)
	copy(body[off:], commentBytes)

	out, _ := appendChecksum(body)
	return out, nil
}

// decodeRevisionRecordHeader is phase one of the two-phase decode: it
// requires at least RevisionRecordFixedSize bytes of buf, verifies
// signature and version, and returns the partially populated record
// (counts only; ArchivalIndex.List/Username/Comment are not yet
// filled) along with the total encoded length the caller must supply
// to decodeRevisionRecordBody.
func decodeRevisionRecordHeader(buf []byte) (*RevisionRecord, int, error) {
	if len(buf) < RevisionRecordFixedSize {
		return nil, 0, newErr(KindDecode, "decode_revision_record", "buffer shorter than fixed prefix", nil)
	}
	if string(buf[0:4]) != signatureRevision {
		return nil, 0, newErr(KindDecode, "decode_revision_record", "signature mismatch", nil)
	}
	if buf[4] != revisionVersion {
		return nil, 0, newErr(KindDecode, "decode_revision_record", "version mismatch", nil)
	}

	nEntries := getU64(buf[60:68])
	usernameSize := getU32(buf[68:72])
	commentSize := getU32(buf[72:76])

	total := RevisionRecordFixedSize + int(nEntries)*IndexEntrySize + int(usernameSize) + int(commentSize) + 4

	r := &RevisionRecord{
		RevisionID:       getU64(buf[8:16]),
		ParentRevisionID: getU64(buf[16:24]),
		TimeOfCreation:   string(buf[24:40]),
		LogiEOF:          getU64(buf[40:48]),
		PageSize:         getU32(buf[48:52]),
		PageSizeLog2:     getU32(buf[52:56]),
		UserID:           getU32(buf[56:60]),
	}
	return r, total, nil
}

// decodeRevisionRecordBody is phase two: buf must be exactly the total
// length returned by decodeRevisionRecordHeader. It verifies the
// trailing checksum and fills in the variable-length parts.
func decodeRevisionRecordBody(buf []byte, hdr *RevisionRecord) (*RevisionRecord, error) {
	if !verifyChecksum(buf) {
		return nil, newErr(KindDecode, "decode_revision_record", "checksum mismatch", nil)
	}

	nEntries := getU64(buf[60:68])
	usernameSize := getU32(buf[68:72])
	commentSize := getU32(buf[72:76])

	off := RevisionRecordFixedSize
	entries := make([]IndexEntry, nEntries)
	for i := range entries {
		e, err := decodeIndexEntry(buf[off:off+IndexEntrySize], hdr.PageSizeLog2)
		if err != nil {
			return nil, err
		}
		entries[i] = e
		off += IndexEntrySize
	}

	username := string(buf[off : off+int(usernameSize)])
	off += int(usernameSize)
	comment := ""
	if commentSize > 0 {
		comment = string(buf[off : off+int(commentSize)])
		off += int(commentSize)
	}

	hdr.Username = username
	hdr.Comment = comment
	hdr.ArchivalIndex = ArchivalIndex{PageSizeLog2: hdr.PageSizeLog2, List: entries}
	return hdr, nil
}

// decodeRevisionRecord runs both phases against a buffer the caller
// already knows is exactly long enough (used by tests and by callers
// holding the whole record in memory already).
func decodeRevisionRecord(buf []byte) (*RevisionRecord, error) {
	hdr, total, err := decodeRevisionRecordHeader(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) != total {
		return nil, newErr(KindDecode, "decode_revision_record", "inconsistent length between two-phase passes", nil)
	}
	return decodeRevisionRecordBody(buf, hdr)
}
