// Recovery-file witness hashing: an additive blake2b digest over the
// whole-history copy written to the ".onion.recovery" file, alongside
// the mandatory Fletcher-32 structural checksums already embedded in
// the encoded bytes. A recovery tool can check it without re-deriving
// Fletcher-32 by hand: a file too short to hold the digest is a decode
// error, while a present digest that does not match the body reports a
// mismatch. A write torn inside the whole-history body and bit rot both
// show up as that mismatch; the digest does not tell them apart.
package onion

import "golang.org/x/crypto/blake2b"

const recoveryWitnessDigestSize = blake2b.Size256

// recoveryWitnessDigest hashes the encoded whole-history bytes with
// blake2b-256.
func recoveryWitnessDigest(wholeHistoryBytes []byte) [recoveryWitnessDigestSize]byte {
	return blake2b.Sum256(wholeHistoryBytes)
}

// encodeRecoveryFile prepends the witness digest to the whole-history
// bytes for writing to the recovery file.
func encodeRecoveryFile(wholeHistoryBytes []byte) []byte {
	digest := recoveryWitnessDigest(wholeHistoryBytes)
	out := make([]byte, recoveryWitnessDigestSize+len(wholeHistoryBytes))
	copy(out, digest[:])
	copy(out[recoveryWitnessDigestSize:], wholeHistoryBytes)
	return out
}

// decodeRecoveryFile splits a recovery file's contents back into its
// witness digest and whole-history bytes, reporting whether the digest
// still matches (a mismatch means the write was torn or the file has
// bit-rotted).
func decodeRecoveryFile(buf []byte) (wholeHistoryBytes []byte, ok bool, err error) {
	if len(buf) < recoveryWitnessDigestSize {
		return nil, false, newErr(KindDecode, "decode_recovery_file", "buffer shorter than witness digest", nil)
	}
	want := buf[:recoveryWitnessDigestSize]
	body := buf[recoveryWitnessDigestSize:]
	got := recoveryWitnessDigest(body)
	for i := range want {
		if want[i] != got[i] {
			return body, false, nil
		}
	}
	return body, true, nil
}
