// Package committees provides the roster provider consumed by the
// aggregation engine. Shard assignment itself happens upstream at the DS
// block boundary; this package only serves the resulting structure.
package committees

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/onflow/flow-go/crypto"

	"github.com/dirsvc/microblock/model/zil"
	"github.com/dirsvc/microblock/module"
)

// committee hashes are recomputed on every submission check; the epoch's
// rosters are fixed between DS blocks, so a small cache removes the repeated
// canonical encoding work.
const hashCacheSize = 64

// Static serves a fixed shard structure, as computed for the current DS
// block.
type Static struct {
	shards []zil.Committee
	ds     zil.Committee
	byKey  map[string]uint32 // encoded public key -> shard id
	dsKeys map[string]struct{}
	hashes *lru.Cache
}

var _ module.Committees = (*Static)(nil)

func NewStatic(shards []zil.Committee, ds zil.Committee) (*Static, error) {
	byKey := make(map[string]uint32)
	for shardID, roster := range shards {
		for _, member := range roster {
			byKey[string(member.PubKey.Encode())] = uint32(shardID)
		}
	}
	dsKeys := make(map[string]struct{}, len(ds))
	for _, member := range ds {
		dsKeys[string(member.PubKey.Encode())] = struct{}{}
	}
	hashes, err := lru.New(hashCacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create hash cache: %w", err)
	}
	return &Static{
		shards: shards,
		ds:     ds,
		byKey:  byKey,
		dsKeys: dsKeys,
		hashes: hashes,
	}, nil
}

func (s *Static) NumShards() int {
	return len(s.shards)
}

func (s *Static) ShardRoster(shardID uint32) (zil.Committee, error) {
	if int(shardID) >= len(s.shards) {
		return nil, fmt.Errorf("invalid shard id %d (%d shards)", shardID, len(s.shards))
	}
	return s.shards[shardID], nil
}

func (s *Static) DSCommittee() zil.Committee {
	return s.ds
}

func (s *Static) ShardIDForKey(key crypto.PublicKey) (uint32, bool) {
	shardID, ok := s.byKey[string(key.Encode())]
	return shardID, ok
}

func (s *Static) CommitteeHash(shardID uint32) (zil.Identifier, error) {
	if cached, ok := s.hashes.Get(shardID); ok {
		return cached.(zil.Identifier), nil
	}
	var roster zil.Committee
	if shardID == zil.DSShardID(len(s.shards)) {
		roster = s.ds
	} else {
		var err error
		roster, err = s.ShardRoster(shardID)
		if err != nil {
			return zil.ZeroID, err
		}
	}
	hash := roster.Hash()
	s.hashes.Add(shardID, hash)
	return hash, nil
}

func (s *Static) IsShardNode(key crypto.PublicKey) bool {
	_, ok := s.byKey[string(key.Encode())]
	return ok
}

func (s *Static) IsDSNode(key crypto.PublicKey) bool {
	_, ok := s.dsKeys[string(key.Encode())]
	return ok
}
