// Package faultinject provides injectable fault strategies for the
// aggregation engine. Quorum-edge behavior is exercised by making a node
// refuse shard submissions; each strategy is consulted before a submission
// enters the normal processing path.
package faultinject

import (
	"go.uber.org/atomic"

	"github.com/dirsvc/microblock/module"
)

// Disabled is the production strategy: nothing is ever dropped.
type Disabled struct{}

var _ module.FaultInjector = (*Disabled)(nil)

func NewDisabled() *Disabled {
	return &Disabled{}
}

func (Disabled) DropShardSubmission(uint64) bool {
	return false
}

// DropAll refuses every shard submission, simulating a backup that never
// contributes microblocks to the collector.
type DropAll struct{}

var _ module.FaultInjector = (*DropAll)(nil)

func NewDropAll() *DropAll {
	return &DropAll{}
}

func (DropAll) DropShardSubmission(uint64) bool {
	return true
}

// DropEveryNth refuses every n-th shard submission, counting from the first.
// Safe for concurrent use by multiple dispatch workers.
type DropEveryNth struct {
	n     uint64
	count *atomic.Uint64
}

var _ module.FaultInjector = (*DropEveryNth)(nil)

func NewDropEveryNth(n uint64) *DropEveryNth {
	return &DropEveryNth{n: n, count: atomic.NewUint64(0)}
}

func (d *DropEveryNth) DropShardSubmission(uint64) bool {
	count := d.count.Inc()
	return d.n > 0 && count%d.n == 0
}
