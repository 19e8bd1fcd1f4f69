// Identity resolution for the create flow: user_id and username are
// populated from the effective operating-system user.
package onion

import (
	"os/user"
	"strconv"

	"github.com/zeebo/xxh3"
)

// resolveIdentity returns the effective OS user's numeric ID and
// username. No third-party package offers an OS-portable user lookup
// better than os/user, so this stays on the standard library.
func resolveIdentity() (userID uint32, username string, err error) {
	u, err := user.Current()
	if err != nil {
		return 0, "", newErr(KindIO, "resolve_identity", "could not determine effective user", err)
	}

	uid, convErr := strconv.ParseUint(u.Uid, 10, 32)
	if convErr != nil {
		// Windows SIDs aren't numeric; fall back to a stable hash of
		// the SID so user_id is still a deterministic uint32.
		uid = uint64(uint32(xxh3.HashString(u.Uid)))
	}

	name := u.Username
	if name == "" {
		name = u.Uid
	}

	return uint32(uid), name, nil
}

// usernameFingerprint computes a stable xxh3 fingerprint of username,
// reported by Describe alongside user_id for diagnostics when two sessions report
// the same numeric user_id under different account names (e.g. after a
// container rebuild reassigns a UID). It is not part of the on-disk
// revision record; it exists purely as an ambient diagnostic that
// reuses xxh3, already the revision index's hash function.
func usernameFingerprint(username string) uint64 {
	return xxh3.HashString(username)
}
