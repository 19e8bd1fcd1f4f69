// Comment compression: revision-record comments above a small threshold
// are zstd-compressed before being written into the comment bytes, and
// transparently decompressed on ingest. Bounding the size of this one
// free-form, potentially large text field keeps it inline in the
// record without bloating otherwise fixed-width reads.
package onion

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
)

// commentCompressThreshold is the size above which a comment is stored
// zstd-compressed. Below it, compression overhead (frame header, window
// descriptor) would outweigh the savings.
const commentCompressThreshold = 256

// commentMagic prefixes a compressed comment so decodeComment can tell
// compressed from plain-text comments apart without a header flag.
var commentMagic = []byte("ONCZ")

var (
	commentEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	commentDecoder, _ = zstd.NewReader(nil)
)

// encodeComment returns the bytes to store in a revision record's
// comment field for the given user-supplied text.
func encodeComment(comment string) []byte {
	if len(comment) <= commentCompressThreshold {
		return []byte(comment)
	}
	compressed := commentEncoder.EncodeAll([]byte(comment), nil)
	out := make([]byte, 0, len(commentMagic)+len(compressed))
	out = append(out, commentMagic...)
	out = append(out, compressed...)
	return out
}

// decodeComment reverses encodeComment.
func decodeComment(raw string) (string, error) {
	b := []byte(raw)
	if !bytes.HasPrefix(b, commentMagic) {
		return raw, nil
	}
	out, err := commentDecoder.DecodeAll(b[len(commentMagic):], nil)
	if err != nil {
		return "", newErr(KindDecode, "decode_comment", "zstd decompression failed", err)
	}
	return string(out), nil
}
