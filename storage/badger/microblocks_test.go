package badger_test

import (
	"errors"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirsvc/microblock/model/zil"
	"github.com/dirsvc/microblock/storage"
	badgerstorage "github.com/dirsvc/microblock/storage/badger"
	"github.com/dirsvc/microblock/utils/unittest"
)

func TestMicroBlocksStoreRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badgerdb.DB) {
		blocks := badgerstorage.NewMicroBlocks(db)

		hash := unittest.IdentifierFixture(t)
		data := []byte("block bytes")
		require.NoError(t, blocks.Put(hash, 5, 0, data))

		got, err := blocks.ByHash(hash)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})
}

func TestMicroBlocksRetrieveMissing(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badgerdb.DB) {
		blocks := badgerstorage.NewMicroBlocks(db)

		_, err := blocks.ByHash(unittest.IdentifierFixture(t))
		require.Error(t, err)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
}

func TestMicroBlocksPutIdempotent(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badgerdb.DB) {
		blocks := badgerstorage.NewMicroBlocks(db)

		hash := unittest.IdentifierFixture(t)
		data := []byte("block bytes")
		require.NoError(t, blocks.Put(hash, 5, 0, data))
		require.NoError(t, blocks.Put(hash, 5, 0, data))

		byEpoch, err := blocks.ByEpoch(5)
		require.NoError(t, err)
		assert.Len(t, byEpoch, 1)
	})
}

func TestMicroBlocksByEpoch(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badgerdb.DB) {
		blocks := badgerstorage.NewMicroBlocks(db)

		first := []byte("shard 0 block")
		second := []byte("shard 1 block")
		other := []byte("other epoch block")
		require.NoError(t, blocks.Put(unittest.IdentifierFixture(t), 5, 0, first))
		require.NoError(t, blocks.Put(unittest.IdentifierFixture(t), 5, 1, second))
		require.NoError(t, blocks.Put(unittest.IdentifierFixture(t), 6, 0, other))

		byEpoch, err := blocks.ByEpoch(5)
		require.NoError(t, err)
		require.Len(t, byEpoch, 2)
		// index keys order results by shard id
		assert.Equal(t, first, byEpoch[0])
		assert.Equal(t, second, byEpoch[1])

		empty, err := blocks.ByEpoch(7)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

var _ storage.MicroBlocks = (*badgerstorage.MicroBlocks)(nil)

func TestEpochPrefixIsolation(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badgerdb.DB) {
		blocks := badgerstorage.NewMicroBlocks(db)

		require.NoError(t, blocks.Put(unittest.IdentifierFixture(t), 0x0100, 0, []byte("a")))

		// epoch 0x01 must not pick up the 0x0100 entry via prefix overlap
		byEpoch, err := blocks.ByEpoch(0x01)
		require.NoError(t, err)
		assert.Empty(t, byEpoch)
	})
}

func TestMicroBlockHashRoundTrip(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badgerdb.DB) {
		blocks := badgerstorage.NewMicroBlocks(db)

		mb := zil.MicroBlock{
			Header: zil.MicroBlockHeader{Version: 1, ShardID: 0, EpochNum: 5},
		}
		mb.BlockHash = mb.Header.ID()

		require.NoError(t, blocks.Put(mb.BlockHash, 5, 0, mb.Serialize()))
		got, err := blocks.ByHash(mb.BlockHash)
		require.NoError(t, err)
		assert.Equal(t, mb.Serialize(), got)
	})
}
