package db

import (
	"encoding/hex"
	"fmt"

	"github.com/ValentinKolb/ixKV/lib/value"
	"github.com/zeebo/blake3"
)

// DigestSize is the length of a record digest in bytes.
const DigestSize = 20

// Digest is the store-internal identity of a record, derived from the set name
// and the user key. It is all the store needs to address a record; the user key
// itself is only kept when the writer asks for it.
type Digest [DigestSize]byte

// ComputeDigest hashes set and user key (kind byte + canonical bytes) with
// blake3 and truncates the sum to DigestSize bytes.
func ComputeDigest(set string, key value.Value) Digest {
	h := blake3.New()
	_, _ = h.Write([]byte(set))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(key.DigestInput())

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// DigestFromBytes converts a byte slice into a Digest.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("invalid digest length %d, expected %d", len(b), DigestSize)
	}
	copy(d[:], b)
	return d, nil
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Less orders digests bytewise.
func (d Digest) Less(o Digest) bool {
	for i := 0; i < DigestSize; i++ {
		if d[i] != o[i] {
			return d[i] < o[i]
		}
	}
	return false
}
