package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dirsvc/microblock/module"
)

const (
	namespaceDirectory   = "directory"
	subsystemAggregation = "aggregation"
)

// AggregationCollector reports the aggregation engine's externally observable
// behavior to prometheus.
type AggregationCollector struct {
	accepted      *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	buffered      prometheus.Counter
	quorumReached prometheus.Counter
}

var _ module.AggregationMetrics = (*AggregationCollector)(nil)

func NewAggregationCollector() *AggregationCollector {
	return &AggregationCollector{
		accepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceDirectory,
			Subsystem: subsystemAggregation,
			Name:      "microblocks_accepted_total",
			Help:      "number of microblocks accepted into the collector, by shard",
		}, []string{"shard"}),
		rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceDirectory,
			Subsystem: subsystemAggregation,
			Name:      "microblocks_rejected_total",
			Help:      "number of microblock submissions rejected, by reason",
		}, []string{"reason"}),
		buffered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceDirectory,
			Subsystem: subsystemAggregation,
			Name:      "microblocks_buffered_total",
			Help:      "number of microblock submissions buffered for a later epoch or phase",
		}),
		quorumReached: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceDirectory,
			Subsystem: subsystemAggregation,
			Name:      "quorum_reached_total",
			Help:      "number of epochs for which the full microblock set was collected",
		}),
	}
}

func (c *AggregationCollector) MicroBlockAccepted(_ uint64, shardID uint32) {
	c.accepted.WithLabelValues(strconv.FormatUint(uint64(shardID), 10)).Inc()
}

func (c *AggregationCollector) MicroBlockRejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

func (c *AggregationCollector) MicroBlockBuffered(uint64) {
	c.buffered.Inc()
}

func (c *AggregationCollector) QuorumReached(uint64) {
	c.quorumReached.Inc()
}
