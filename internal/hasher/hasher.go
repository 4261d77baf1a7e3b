// Package hasher computes xxHash64 digests used to compare conversion runs.
package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ContentHash returns the hex xxHash64 of data, truncated to hexLen
// characters when 0 < hexLen < 16.
func ContentHash(data []byte, hexLen int) string {
	return truncate(xxhash.Sum64(data), hexLen)
}

// Fingerprint digests a set of relative paths independent of their order.
// Two runs that produce the same layout have the same fingerprint, which is
// how re-runs over an existing output directory are checked for drift.
func Fingerprint(paths []string, hexLen int) string {
	sorted := make([]string, len(paths))
	for i, p := range paths {
		sorted[i] = filepath.ToSlash(p)
	}
	sort.Strings(sorted)

	h := xxhash.New()
	for _, p := range sorted {
		h.WriteString(p)
		h.Write([]byte{0})
	}
	return truncate(h.Sum64(), hexLen)
}

func truncate(v uint64, hexLen int) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	full := hex.EncodeToString(b[:])
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}
