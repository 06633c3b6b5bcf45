package zil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Identifier represents a 32-byte unique identifier for an entity
// (block hash, state-delta hash, committee hash).
type Identifier [32]byte

// ZeroID is the default identifier. It doubles as the canonical null
// state-delta hash: a shard that performed no state transition declares it.
var ZeroID = Identifier{}

// canonical encoding options for hashing; deterministic map ordering so the
// same value always produces the same preimage.
var canonicalEncMode cbor.EncMode

func init() {
	var err error
	canonicalEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not create canonical encoder: %v", err))
	}
}

// MakeID hashes the canonical encoding of the given entity into an
// identifier.
func MakeID(entity interface{}) Identifier {
	data, err := canonicalEncMode.Marshal(entity)
	if err != nil {
		panic(fmt.Sprintf("could not encode entity: %v", err))
	}
	return HashToID(data)
}

// HashToID returns the SHA-256 digest of the given bytes as an identifier.
func HashToID(data []byte) Identifier {
	return Identifier(sha256.Sum256(data))
}

// HexStringToIdentifier converts a hex string to an identifier. The hex
// string must encode exactly 32 bytes.
func HexStringToIdentifier(hexString string) (Identifier, error) {
	var id Identifier
	n, err := hex.Decode(id[:], []byte(hexString))
	if err != nil {
		return id, err
	}
	if n != 32 {
		return id, fmt.Errorf("malformed input, expected 32 bytes, got %d", n)
	}
	return id, nil
}

func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero returns whether this is the zero identifier.
func (id Identifier) IsZero() bool {
	return id == ZeroID
}
