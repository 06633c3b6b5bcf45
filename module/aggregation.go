// Package module contains the collaborator interfaces consumed by the
// microblock aggregation subsystem. Implementations are injected at
// construction; there are no ambient singletons.
package module

import (
	"github.com/onflow/flow-go/crypto"

	"github.com/dirsvc/microblock/model/zil"
)

// Committees provides the current epoch's committee structure: the shard
// rosters, the DS committee roster, and the public-key index over shard
// membership. Roster order is protocol-relevant and must be stable.
type Committees interface {

	// NumShards returns the number of regular shards. The DS committee uses
	// the sentinel shard id equal to this value.
	NumShards() int

	// ShardRoster returns the roster for a regular shard id.
	ShardRoster(shardID uint32) (zil.Committee, error)

	// DSCommittee returns the DS committee roster.
	DSCommittee() zil.Committee

	// ShardIDForKey looks up the shard a public key belongs to. The second
	// return is false for keys that are not current shard members.
	ShardIDForKey(key crypto.PublicKey) (uint32, bool)

	// CommitteeHash returns the canonical hash of the roster for the given
	// shard id, accepting the DS sentinel id.
	CommitteeHash(shardID uint32) (zil.Identifier, error)

	// IsShardNode returns whether the key belongs to any regular shard.
	IsShardNode(key crypto.PublicKey) bool

	// IsDSNode returns whether the key belongs to the DS committee.
	IsDSNode(key crypto.PublicKey) bool
}

// LatestBlockOracle reports whether a (DS block number, epoch number) pair is
// consistent with the locally known chain head. It guards the collector
// against stale and premature submissions.
type LatestBlockOracle interface {
	IsLatest(dsBlockNum uint64, epochNum uint64) bool
}

// AccountStore is the handle to the external account state. The staging API
// is transactional per call: a staged delta is either re-serialized into its
// canonical form or abandoned by the caller.
type AccountStore interface {

	// DeserializeDeltaStaged parses the wire-form delta bytes into the
	// staging area.
	DeserializeDeltaStaged(data []byte) error

	// SerializeStagedDelta re-serializes the staged delta into the store's
	// canonical form.
	SerializeStagedDelta() error

	// GetSerializedDelta returns the canonical serialized form produced by
	// the last SerializeStagedDelta call.
	GetSerializedDelta() []byte
}

// CoinbaseLedger records per-shard reward participation derived from the two
// co-signature bitmaps.
type CoinbaseLedger interface {
	SaveCoinbase(b1, b2 []bool, shardID uint32, epoch uint64) error
}

// FinalBlockTrigger is the downstream consensus hook fired exactly once per
// epoch when the collector reaches quorum.
type FinalBlockTrigger interface {
	RunFinalBlockConsensus(epoch uint64)
}

// FaultInjector is consulted before a submission enters the normal path.
// Production nodes use the no-op injector; fault-injection tests substitute
// strategies that drop submissions.
type FaultInjector interface {
	DropShardSubmission(epoch uint64) bool
}

// AggregationMetrics tracks the externally observable behavior of the
// aggregation engine.
type AggregationMetrics interface {
	MicroBlockAccepted(epoch uint64, shardID uint32)
	MicroBlockRejected(reason string)
	MicroBlockBuffered(epoch uint64)
	QuorumReached(epoch uint64)
}
