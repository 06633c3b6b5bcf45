// Package buffer holds microblock submissions that arrive ahead of the DS
// epoch clock, or ahead of the committee's internal phase gate, until the
// collector is ready to process them.
package buffer

import (
	"github.com/dirsvc/microblock/model/zil"
)

// Submissions buffers (epoch, microblock, state delta) tuples. It owns its
// entries exclusively until they are drained or discarded.
type Submissions struct {
	backend *backend
}

func NewSubmissions() *Submissions {
	return &Submissions{backend: newBackend()}
}

// Enqueue buffers a submission for the given epoch.
func (s *Submissions) Enqueue(epoch uint64, microBlock *zil.MicroBlock, stateDelta zil.StateDelta) {
	s.backend.add(epoch, microBlock, stateDelta)
}

// DrainDue discards every buffered entry for epochs before current and
// invokes the handler, in insertion order, for each entry of the current
// epoch. Entries for future epochs stay buffered.
//
// The handler is called without the buffer lock held: the drain path feeds
// back into the main collection path, which takes its own lock, and holding
// both would create an ordering cycle with submissions that buffer while the
// collector lock is held.
func (s *Submissions) DrainDue(current uint64, handler func(*zil.MicroBlock, zil.StateDelta)) {
	for _, entry := range s.backend.takeDue(current) {
		handler(entry.microBlock, entry.stateDelta)
	}
}

// Size returns the total number of buffered entries.
func (s *Submissions) Size() uint {
	return s.backend.size()
}
