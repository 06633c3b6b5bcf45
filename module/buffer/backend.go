package buffer

import (
	"sync"

	"github.com/dirsvc/microblock/model/zil"
)

// item is one buffered submission.
type item struct {
	microBlock *zil.MicroBlock
	stateDelta zil.StateDelta
}

// backend stores buffered submissions in per-epoch buckets, each bucket in
// insertion order.
type backend struct {
	mu      sync.Mutex
	buckets map[uint64][]item
}

func newBackend() *backend {
	return &backend{
		buckets: make(map[uint64][]item),
	}
}

func (b *backend) add(epoch uint64, microBlock *zil.MicroBlock, stateDelta zil.StateDelta) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buckets[epoch] = append(b.buckets[epoch], item{
		microBlock: microBlock,
		stateDelta: stateDelta,
	})
}

// takeDue removes every bucket with epoch < current and returns the bucket
// for the current epoch, removing it as well. Buckets for future epochs are
// left untouched. Stale entries are discarded, never returned.
func (b *backend) takeDue(current uint64) []item {
	b.mu.Lock()
	defer b.mu.Unlock()

	var due []item
	for epoch := range b.buckets {
		if epoch < current {
			delete(b.buckets, epoch)
		} else if epoch == current {
			due = b.buckets[epoch]
			delete(b.buckets, epoch)
		}
	}
	return due
}

func (b *backend) size() uint {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := uint(0)
	for _, bucket := range b.buckets {
		total += uint(len(bucket))
	}
	return total
}
