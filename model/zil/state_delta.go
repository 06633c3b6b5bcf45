package zil

// StateDelta is the raw serialized account-store mutation a shard attributes
// to its microblock, together with the hash the shard declared for it in the
// microblock header.
type StateDelta struct {
	Data []byte
}

// IsEmpty returns whether the delta carries no bytes.
func (sd StateDelta) IsEmpty() bool {
	return len(sd.Data) == 0
}

// Hash returns the SHA-256 digest of the delta bytes.
func (sd StateDelta) Hash() Identifier {
	return HashToID(sd.Data)
}
