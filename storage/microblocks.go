// Package storage defines the persistence interfaces the aggregation
// subsystem depends on.
package storage

import (
	"github.com/dirsvc/microblock/model/zil"
)

// MicroBlocks persists the raw serialized form of accepted microblocks.
// Storage is append-only and keyed by block hash, so a retried write of the
// same microblock is idempotent.
type MicroBlocks interface {

	// Put stores the serialized microblock under its hash, indexed by epoch
	// and shard id.
	Put(blockHash zil.Identifier, epoch uint64, shardID uint32, data []byte) error

	// ByHash retrieves the serialized microblock with the given hash.
	// Returns ErrNotFound if it is not stored.
	ByHash(blockHash zil.Identifier) ([]byte, error)

	// ByEpoch retrieves the serialized microblocks stored for an epoch, in
	// shard-id order.
	ByEpoch(epoch uint64) ([][]byte, error)
}
