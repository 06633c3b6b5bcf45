package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dirsvc/microblock/model/zil"
)

func microBlockForShard(shardID uint32) *zil.MicroBlock {
	header := zil.MicroBlockHeader{ShardID: shardID, EpochNum: 5}
	return &zil.MicroBlock{Header: header, BlockHash: header.ID()}
}

func TestDrainDue(t *testing.T) {
	buf := NewSubmissions()

	mbA := microBlockForShard(0)
	buf.Enqueue(5, mbA, zil.StateDelta{})
	assert.Equal(t, uint(1), buf.Size())

	var drained []*zil.MicroBlock
	handler := func(mb *zil.MicroBlock, _ zil.StateDelta) {
		drained = append(drained, mb)
	}

	// advancing to an earlier epoch processes nothing and keeps the entry
	buf.DrainDue(4, handler)
	assert.Empty(t, drained)
	assert.Equal(t, uint(1), buf.Size())

	// reaching the entry's epoch processes it exactly once
	buf.DrainDue(5, handler)
	assert.Equal(t, []*zil.MicroBlock{mbA}, drained)
	assert.Equal(t, uint(0), buf.Size())

	// the bucket is removed, draining again is a no-op
	buf.DrainDue(5, handler)
	assert.Len(t, drained, 1)
}

func TestDrainDueDiscardsStale(t *testing.T) {
	buf := NewSubmissions()
	buf.Enqueue(3, microBlockForShard(0), zil.StateDelta{})
	buf.Enqueue(4, microBlockForShard(1), zil.StateDelta{})
	buf.Enqueue(6, microBlockForShard(2), zil.StateDelta{})

	var drained []*zil.MicroBlock
	buf.DrainDue(5, func(mb *zil.MicroBlock, _ zil.StateDelta) {
		drained = append(drained, mb)
	})

	// stale entries are dropped without processing, future entries stay
	assert.Empty(t, drained)
	assert.Equal(t, uint(1), buf.Size())
}

func TestDrainDueInsertionOrder(t *testing.T) {
	buf := NewSubmissions()
	first := microBlockForShard(2)
	second := microBlockForShard(0)
	third := microBlockForShard(1)
	buf.Enqueue(7, first, zil.StateDelta{})
	buf.Enqueue(7, second, zil.StateDelta{})
	buf.Enqueue(7, third, zil.StateDelta{})

	var drained []*zil.MicroBlock
	buf.DrainDue(7, func(mb *zil.MicroBlock, _ zil.StateDelta) {
		drained = append(drained, mb)
	})
	assert.Equal(t, []*zil.MicroBlock{first, second, third}, drained)
}
