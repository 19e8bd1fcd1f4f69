package onion

import "encoding/binary"

// fletcher32 computes the Fletcher-32 checksum over data. Every encoded
// structure (header, index entry, record pointer, revision record,
// whole-history) ends with a 4-byte checksum computed this way over all
// preceding bytes. It is not cryptographic; it guards against corruption,
// not tampering.
func fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32

	// Fletcher-32 operates on 16-bit words; an odd trailing byte is
	// treated as if padded with a zero high byte.
	i := 0
	for i+1 < len(data) {
		word := uint32(data[i]) | uint32(data[i+1])<<8
		sum1 = (sum1 + word) % 0xFFFF
		sum2 = (sum2 + sum1) % 0xFFFF
		i += 2
	}
	if i < len(data) {
		word := uint32(data[i])
		sum1 = (sum1 + word) % 0xFFFF
		sum2 = (sum2 + sum1) % 0xFFFF
	}

	return (sum2 << 16) | sum1
}

func putU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func putU64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func getU32(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }
func getU64(b []byte) uint64    { return binary.LittleEndian.Uint64(b) }

// appendChecksum appends the 4-byte little-endian Fletcher-32 checksum
// of buf (computed over buf itself) and returns the extended slice along
// with the checksum value.
func appendChecksum(buf []byte) ([]byte, uint32) {
	sum := fletcher32(buf)
	out := make([]byte, len(buf)+4)
	copy(out, buf)
	putU32(out[len(buf):], sum)
	return out, sum
}

// verifyChecksum reports whether the trailing 4 bytes of buf match the
// Fletcher-32 checksum of the preceding bytes.
func verifyChecksum(buf []byte) bool {
	if len(buf) < 4 {
		return false
	}
	body := buf[:len(buf)-4]
	want := getU32(buf[len(buf)-4:])
	return fletcher32(body) == want
}

// Signatures for the three on-disk structures.
const (
	signatureHeader   = "OHDH"
	signatureRevision = "ORRS"
	signatureHistory  = "OWHS"
)

const (
	headerVersion   = uint8(1)
	revisionVersion = uint8(1)
	historyVersion  = uint8(1)
)
