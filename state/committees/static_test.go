package committees_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirsvc/microblock/model/zil"
	"github.com/dirsvc/microblock/state/committees"
	"github.com/dirsvc/microblock/utils/unittest"
)

func TestStatic(t *testing.T) {
	shard0, _ := unittest.CommitteeFixture(t, 3)
	shard1, _ := unittest.CommitteeFixture(t, 3)
	ds, _ := unittest.CommitteeFixture(t, 4)

	provider, err := committees.NewStatic([]zil.Committee{shard0, shard1}, ds)
	require.NoError(t, err)

	assert.Equal(t, 2, provider.NumShards())

	t.Run("shard roster lookup", func(t *testing.T) {
		roster, err := provider.ShardRoster(1)
		require.NoError(t, err)
		assert.Equal(t, shard1, roster)

		_, err = provider.ShardRoster(2)
		assert.Error(t, err)
	})

	t.Run("key to shard index", func(t *testing.T) {
		shardID, ok := provider.ShardIDForKey(shard1[2].PubKey)
		require.True(t, ok)
		assert.Equal(t, uint32(1), shardID)

		_, ok = provider.ShardIDForKey(ds[0].PubKey)
		assert.False(t, ok)
	})

	t.Run("membership checks", func(t *testing.T) {
		assert.True(t, provider.IsShardNode(shard0[0].PubKey))
		assert.False(t, provider.IsShardNode(ds[0].PubKey))
		assert.True(t, provider.IsDSNode(ds[0].PubKey))
		assert.False(t, provider.IsDSNode(shard0[0].PubKey))
	})

	t.Run("committee hash", func(t *testing.T) {
		hash, err := provider.CommitteeHash(0)
		require.NoError(t, err)
		assert.Equal(t, shard0.Hash(), hash)

		// sentinel id resolves to the DS roster
		hash, err = provider.CommitteeHash(zil.DSShardID(provider.NumShards()))
		require.NoError(t, err)
		assert.Equal(t, ds.Hash(), hash)

		// cached lookups return the same value
		again, err := provider.CommitteeHash(0)
		require.NoError(t, err)
		assert.Equal(t, shard0.Hash(), again)

		_, err = provider.CommitteeHash(7)
		assert.Error(t, err)
	})
}
