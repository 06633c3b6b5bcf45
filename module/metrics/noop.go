package metrics

import (
	"github.com/dirsvc/microblock/module"
)

// NoopCollector ignores all metrics. Used where observability is not wired.
type NoopCollector struct{}

var _ module.AggregationMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (NoopCollector) MicroBlockAccepted(uint64, uint32) {}
func (NoopCollector) MicroBlockRejected(string)         {}
func (NoopCollector) MicroBlockBuffered(uint64)         {}
func (NoopCollector) QuorumReached(uint64)              {}
