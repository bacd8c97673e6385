// Package fingerprint computes content hashes used to detect unchanged
// features across re-scrapes.
package fingerprint

import (
	"encoding/binary"
	"strconv"

	"golang.org/x/crypto/sha3"
)

// Sum fingerprints a feature's identity, coordinates and serialized
// properties. propsJSON must be serialized deterministically (sorted keys);
// encoding/json already guarantees that for map types. The digest is a
// SHAKE-128 extendable-output hash cut to 16 bytes and split into two signed
// big-endian 64-bit halves, matching the persisted hash columns.
func Sum(featureID string, lng, lat float64, propsJSON []byte) (hi, lo int64) {
	preimage := make([]byte, 0, len(featureID)+len(propsJSON)+48)
	preimage = append(preimage, featureID...)
	preimage = append(preimage, 0)
	preimage = strconv.AppendFloat(preimage, lng, 'g', -1, 64)
	preimage = append(preimage, 0)
	preimage = strconv.AppendFloat(preimage, lat, 'g', -1, 64)
	preimage = append(preimage, 0)
	preimage = append(preimage, propsJSON...)

	var digest [16]byte
	sha3.ShakeSum128(digest[:], preimage)
	hi = int64(binary.BigEndian.Uint64(digest[0:8]))
	lo = int64(binary.BigEndian.Uint64(digest[8:16]))
	return hi, lo
}
