package zil

import (
	"github.com/onflow/flow-go/crypto"
)

// Member is one entry of a shard or DS committee roster. The position of a
// member in the roster defines its bit position in participation bitmaps.
type Member struct {
	PubKey  crypto.PublicKey
	Address string
}

// Committee is an ordered roster of members. Order is protocol-relevant and
// must not be changed after committee formation.
type Committee []Member

// Size returns the number of members in the roster.
func (c Committee) Size() int {
	return len(c)
}

// PublicKeys returns the member public keys in roster order.
func (c Committee) PublicKeys() []crypto.PublicKey {
	keys := make([]crypto.PublicKey, 0, len(c))
	for _, m := range c {
		keys = append(keys, m.PubKey)
	}
	return keys
}

// ContainsKey returns whether the given public key belongs to a roster
// member.
func (c Committee) ContainsKey(key crypto.PublicKey) bool {
	for _, m := range c {
		if m.PubKey.Equals(key) {
			return true
		}
	}
	return false
}

type encodableMember struct {
	PubKey  []byte
	Address string
}

// Hash returns the canonical hash of the roster. Every node must compute the
// same hash for the same roster, so members are encoded in roster order with
// keys in encoded form.
func (c Committee) Hash() Identifier {
	enc := make([]encodableMember, 0, len(c))
	for _, m := range c {
		var key []byte
		if m.PubKey != nil {
			key = m.PubKey.Encode()
		}
		enc = append(enc, encodableMember{PubKey: key, Address: m.Address})
	}
	return MakeID(enc)
}
