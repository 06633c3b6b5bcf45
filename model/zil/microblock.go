package zil

import (
	"github.com/onflow/flow-go/crypto"
)

// MicroBlockHeader is the header of a per-shard microblock. A shard commits
// to one microblock per epoch; the DS committee aggregates one per shard.
type MicroBlockHeader struct {
	Version        uint32
	ShardID        uint32
	EpochNum       uint64
	DSBlockNum     uint64
	Timestamp      uint64 // unix milliseconds at microblock consensus time
	MinerPubKey    crypto.PublicKey
	CommitteeHash  Identifier
	StateDeltaHash Identifier
	TxRootHash     Identifier
	NumTxs         uint32
}

// encodableHeader is the canonical wire shape of the header used as the hash
// and co-signature preimage. Public keys are carried in encoded form so the
// preimage does not depend on in-memory key representation.
type encodableHeader struct {
	Version        uint32
	ShardID        uint32
	EpochNum       uint64
	DSBlockNum     uint64
	Timestamp      uint64
	MinerPubKey    []byte
	CommitteeHash  Identifier
	StateDeltaHash Identifier
	TxRootHash     Identifier
	NumTxs         uint32
}

func (h MicroBlockHeader) toEncodable() encodableHeader {
	var miner []byte
	if h.MinerPubKey != nil {
		miner = h.MinerPubKey.Encode()
	}
	return encodableHeader{
		Version:        h.Version,
		ShardID:        h.ShardID,
		EpochNum:       h.EpochNum,
		DSBlockNum:     h.DSBlockNum,
		Timestamp:      h.Timestamp,
		MinerPubKey:    miner,
		CommitteeHash:  h.CommitteeHash,
		StateDeltaHash: h.StateDeltaHash,
		TxRootHash:     h.TxRootHash,
		NumTxs:         h.NumTxs,
	}
}

// Serialize returns the canonical byte encoding of the header.
func (h MicroBlockHeader) Serialize() []byte {
	data, err := canonicalEncMode.Marshal(h.toEncodable())
	if err != nil {
		panic("could not encode microblock header: " + err.Error())
	}
	return data
}

// ID returns the self-certifying hash of the header.
func (h MicroBlockHeader) ID() Identifier {
	return HashToID(h.Serialize())
}

// CoSignatures carries the two-round collective signature attached to a
// microblock: the first-round signature CS1 with its participation bitmap B1,
// and the second-round aggregate CS2 with bitmap B2. Bit positions follow
// roster order.
type CoSignatures struct {
	CS1 crypto.Signature
	B1  []bool
	CS2 crypto.Signature
	B2  []bool
}

// MicroBlock is the atomic unit collected per shard per epoch.
type MicroBlock struct {
	Header    MicroBlockHeader
	BlockHash Identifier // carried hash, recomputed and checked on receipt
	Cosigs    CoSignatures
}

// ID returns the carried block hash.
func (mb *MicroBlock) ID() Identifier {
	return mb.BlockHash
}

type encodableMicroBlock struct {
	Header    encodableHeader
	BlockHash Identifier
	CS1       []byte
	B1        []bool
	CS2       []byte
	B2        []bool
}

// Serialize returns the canonical byte encoding of the whole microblock,
// which is the form handed to block storage.
func (mb *MicroBlock) Serialize() []byte {
	data, err := canonicalEncMode.Marshal(encodableMicroBlock{
		Header:    mb.Header.toEncodable(),
		BlockHash: mb.BlockHash,
		CS1:       mb.Cosigs.CS1,
		B1:        mb.Cosigs.B1,
		CS2:       mb.Cosigs.CS2,
		B2:        mb.Cosigs.B2,
	})
	if err != nil {
		panic("could not encode microblock: " + err.Error())
	}
	return data
}

// CoSigMessage builds the exact byte sequence the second-round aggregate
// signature covers: the canonical header encoding, followed by the raw CS1
// bytes, followed by the length-prefixed bit-vector encoding of B1.
func (mb *MicroBlock) CoSigMessage() []byte {
	msg := mb.Header.Serialize()
	msg = append(msg, mb.Cosigs.CS1...)
	msg = AppendBitVector(msg, mb.Cosigs.B1)
	return msg
}
