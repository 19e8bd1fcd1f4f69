package onion

// HeaderSize is the fixed encoded size of the history header in bytes.
const HeaderSize = 40

// Header flag bits. At most three bytes of the four-byte flags field
// are used.
const (
	FlagWriteLock        uint32 = 0x1
	FlagDivergentHistory uint32 = 0x2
	FlagPageAlignment    uint32 = 0x4
)

// Header is the in-memory representation of the onion file's fixed
// 40-byte history header, stored at onion file offset 0.
type Header struct {
	Version          uint8
	Flags            uint32 // only the low 3 bytes are meaningful on disk
	PageSize         uint32
	OriginEOF        uint64
	WholeHistoryAddr uint64
	WholeHistorySize uint64
}

func (h *Header) hasFlag(f uint32) bool { return h.Flags&f != 0 }

// encode serializes h into exactly HeaderSize bytes ending in a 4-byte
// Fletcher-32 checksum over the preceding bytes.
func (h *Header) encode() ([]byte, error) {
	body := make([]byte, HeaderSize-4)
	copy(body[0:4], signatureHeader)
	body[4] = h.Version
	// 3-byte flags field, little-endian, high byte unused.
	body[5] = byte(h.Flags)
	body[6] = byte(h.Flags >> 8)
	body[7] = byte(h.Flags >> 16)
	putU32(body[8:12], h.PageSize)
	putU64(body[12:20], h.OriginEOF)
	putU64(body[20:28], h.WholeHistoryAddr)
	putU64(body[28:36], h.WholeHistorySize)

	out, _ := appendChecksum(body)
	return out, nil
}

// decodeHeader parses a HeaderSize-byte buffer into a Header, verifying
// signature, version, and checksum.
func decodeHeader(buf []byte) (*Header, error) {
	if len(buf) != HeaderSize {
		return nil, newErr(KindDecode, "decode_header", "wrong buffer length", nil)
	}
	if string(buf[0:4]) != signatureHeader {
		return nil, newErr(KindDecode, "decode_header", "signature mismatch", nil)
	}
	if buf[4] != headerVersion {
		return nil, newErr(KindDecode, "decode_header", "version mismatch", nil)
	}
	if !verifyChecksum(buf) {
		return nil, newErr(KindDecode, "decode_header", "checksum mismatch", nil)
	}

	flags := uint32(buf[5]) | uint32(buf[6])<<8 | uint32(buf[7])<<16

	return &Header{
		Version:          buf[4],
		Flags:            flags,
		PageSize:         getU32(buf[8:12]),
		OriginEOF:        getU64(buf[12:20]),
		WholeHistoryAddr: getU64(buf[20:28]),
		WholeHistorySize: getU64(buf[28:36]),
	}, nil
}
