// Package unittest provides test fixtures for the aggregation subsystem.
package unittest

import (
	crand "crypto/rand"
	"testing"
	"time"

	"github.com/onflow/flow-go/crypto"
	"github.com/stretchr/testify/require"

	"github.com/dirsvc/microblock/model/zil"
	"github.com/dirsvc/microblock/module/quorum"
	"github.com/dirsvc/microblock/module/signature"
)

// IdentifierFixture returns a random identifier.
func IdentifierFixture(t *testing.T) zil.Identifier {
	var id zil.Identifier
	_, err := crand.Read(id[:])
	require.NoError(t, err)
	return id
}

// PrivateKeyFixture returns a random BLS private key.
func PrivateKeyFixture(t *testing.T) crypto.PrivateKey {
	seed := make([]byte, crypto.KeyGenSeedMinLen)
	_, err := crand.Read(seed)
	require.NoError(t, err)
	sk, err := crypto.GeneratePrivateKey(crypto.BLSBLS12381, seed)
	require.NoError(t, err)
	return sk
}

// CommitteeFixture returns a roster of the given size together with the
// members' private keys, index-aligned with the roster.
func CommitteeFixture(t *testing.T, size int) (zil.Committee, []crypto.PrivateKey) {
	roster := make(zil.Committee, 0, size)
	keys := make([]crypto.PrivateKey, 0, size)
	for i := 0; i < size; i++ {
		sk := PrivateKeyFixture(t)
		keys = append(keys, sk)
		roster = append(roster, zil.Member{
			PubKey:  sk.PublicKey(),
			Address: "localhost:0",
		})
	}
	return roster, keys
}

// QuorumBitmap returns a bitmap of the given size with exactly the first
// NumForConsensus(size) bits set.
func QuorumBitmap(size int) []bool {
	bitmap := make([]bool, size)
	for i := 0; i < quorum.NumForConsensus(size); i++ {
		bitmap[i] = true
	}
	return bitmap
}

// MicroBlockHeaderFixture returns a header for the given epoch and shard,
// with a fresh timestamp and placeholder hashes. Apply opts to customize.
func MicroBlockHeaderFixture(t *testing.T, epoch uint64, shardID uint32, opts ...func(*zil.MicroBlockHeader)) zil.MicroBlockHeader {
	header := zil.MicroBlockHeader{
		Version:        zil.DefaultParams().MicroBlockVersion,
		ShardID:        shardID,
		EpochNum:       epoch,
		DSBlockNum:     1,
		Timestamp:      uint64(time.Now().UnixMilli()),
		CommitteeHash:  IdentifierFixture(t),
		StateDeltaHash: zil.ZeroID,
		TxRootHash:     IdentifierFixture(t),
		NumTxs:         0,
	}
	for _, opt := range opts {
		opt(&header)
	}
	return header
}

// SignedMicroBlockFixture builds a microblock for the given roster with a
// valid two-round co-signature: B1 and B2 carry a quorum of set bits and CS2
// is the aggregate of the set members' signatures over the co-sign message.
// The header's miner key is the first roster member unless overridden.
func SignedMicroBlockFixture(t *testing.T, roster zil.Committee, keys []crypto.PrivateKey, epoch uint64, shardID uint32, opts ...func(*zil.MicroBlockHeader)) *zil.MicroBlock {
	require.Equal(t, len(roster), len(keys))

	header := MicroBlockHeaderFixture(t, epoch, shardID)
	header.MinerPubKey = roster[0].PubKey
	header.CommitteeHash = roster.Hash()
	for _, opt := range opts {
		opt(&header)
	}

	hasher := signature.NewCoSigHasher()

	b1 := QuorumBitmap(len(roster))
	cs1, err := keys[0].Sign(header.Serialize(), hasher)
	require.NoError(t, err)

	mb := &zil.MicroBlock{
		Header:    header,
		BlockHash: header.ID(),
		Cosigs: zil.CoSignatures{
			CS1: cs1,
			B1:  b1,
			B2:  QuorumBitmap(len(roster)),
		},
	}

	message := mb.CoSigMessage()
	sigs := make([]crypto.Signature, 0, len(keys))
	for i, set := range mb.Cosigs.B2 {
		if !set {
			continue
		}
		sig, err := keys[i].Sign(message, hasher)
		require.NoError(t, err)
		sigs = append(sigs, sig)
	}
	aggSig, err := crypto.AggregateBLSSignatures(sigs)
	require.NoError(t, err)
	mb.Cosigs.CS2 = aggSig

	return mb
}

// WithMiner sets the header's miner public key.
func WithMiner(key crypto.PublicKey) func(*zil.MicroBlockHeader) {
	return func(header *zil.MicroBlockHeader) {
		header.MinerPubKey = key
	}
}

// WithCommitteeHash sets the header's committee hash.
func WithCommitteeHash(hash zil.Identifier) func(*zil.MicroBlockHeader) {
	return func(header *zil.MicroBlockHeader) {
		header.CommitteeHash = hash
	}
}

// WithStateDeltaHash sets the header's state-delta hash.
func WithStateDeltaHash(hash zil.Identifier) func(*zil.MicroBlockHeader) {
	return func(header *zil.MicroBlockHeader) {
		header.StateDeltaHash = hash
	}
}

// WithTimestamp sets the header's timestamp.
func WithTimestamp(ts time.Time) func(*zil.MicroBlockHeader) {
	return func(header *zil.MicroBlockHeader) {
		header.Timestamp = uint64(ts.UnixMilli())
	}
}

// StateDeltaFixture returns a non-empty state delta along with its declared
// hash.
func StateDeltaFixture(t *testing.T) (zil.StateDelta, zil.Identifier) {
	data := make([]byte, 64)
	_, err := crand.Read(data)
	require.NoError(t, err)
	stateDelta := zil.StateDelta{Data: data}
	return stateDelta, stateDelta.Hash()
}
