// Package badger implements the persistence interfaces on top of a badger
// key-value database.
package badger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/dirsvc/microblock/model/zil"
	"github.com/dirsvc/microblock/storage"
)

const (
	codeMicroBlock      = 0x01
	codeMicroBlockIndex = 0x02
)

// MicroBlocks is a badger-backed microblock store. Writes are append-only:
// re-storing the same block hash is a no-op overwrite with identical bytes,
// which keeps retries after partial failures safe.
type MicroBlocks struct {
	db *badger.DB
}

var _ storage.MicroBlocks = (*MicroBlocks)(nil)

func NewMicroBlocks(db *badger.DB) *MicroBlocks {
	return &MicroBlocks{db: db}
}

func microBlockKey(blockHash zil.Identifier) []byte {
	key := make([]byte, 0, 1+len(blockHash))
	key = append(key, codeMicroBlock)
	return append(key, blockHash[:]...)
}

func microBlockIndexKey(epoch uint64, shardID uint32, blockHash zil.Identifier) []byte {
	key := make([]byte, 0, 1+8+4+len(blockHash))
	key = append(key, codeMicroBlockIndex)
	key = binary.BigEndian.AppendUint64(key, epoch)
	key = binary.BigEndian.AppendUint32(key, shardID)
	return append(key, blockHash[:]...)
}

func epochPrefix(epoch uint64) []byte {
	prefix := make([]byte, 0, 1+8)
	prefix = append(prefix, codeMicroBlockIndex)
	return binary.BigEndian.AppendUint64(prefix, epoch)
}

func (m *MicroBlocks) Put(blockHash zil.Identifier, epoch uint64, shardID uint32, data []byte) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		err := txn.Set(microBlockKey(blockHash), data)
		if err != nil {
			return fmt.Errorf("could not store microblock body: %w", err)
		}
		err = txn.Set(microBlockIndexKey(epoch, shardID, blockHash), blockHash[:])
		if err != nil {
			return fmt.Errorf("could not store microblock index: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not persist microblock %x: %w", blockHash, err)
	}
	return nil
}

func (m *MicroBlocks) ByHash(blockHash zil.Identifier) ([]byte, error) {
	var data []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(microBlockKey(blockHash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not retrieve microblock %x: %w", blockHash, err)
	}
	return data, nil
}

func (m *MicroBlocks) ByEpoch(epoch uint64) ([][]byte, error) {
	var blocks [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = epochPrefix(epoch)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			hash, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var blockHash zil.Identifier
			copy(blockHash[:], hash)
			item, err := txn.Get(microBlockKey(blockHash))
			if err != nil {
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			blocks = append(blocks, data)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not retrieve microblocks for epoch %d: %w", epoch, err)
	}
	return blocks, nil
}
