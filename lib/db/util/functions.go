package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for internal hash distribution
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the current time, only if the system random source fails
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// UintKey is a key type based on uint64 for internal hash representation
type UintKey uint64

// HashString hashes a string with xxhash and mixes in the seed.
// Used to derive stable numeric ids (e.g. raft replica ids) from names.
func HashString(s string, seed uint64) UintKey {
	return UintKey(xxhash.Sum64String(s) ^ seed)
}

// HashRecordKey hashes namespace and digest of a record for shard routing.
func HashRecordKey(namespace string, digest []byte, seed uint64) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(namespace)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(digest)
	return d.Sum64() ^ seed
}
