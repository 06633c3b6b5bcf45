package zil

import "time"

// DSShardID returns the sentinel shard id used by the DS committee itself:
// one past the last regular shard index.
func DSShardID(numShards int) uint32 {
	return uint32(numShards)
}

// Params holds the protocol parameters the aggregation subsystem depends on.
// They are committee-wide constants, not local tuning knobs: every node in
// the committee must run with the same values.
type Params struct {
	// MicroBlockVersion is the expected header version of submitted
	// microblocks.
	MicroBlockVersion uint32

	// ConsensusObjectTimeout and MicroBlockTimeout together bound how stale a
	// microblock timestamp may be at submission time.
	ConsensusObjectTimeout time.Duration
	MicroBlockTimeout      time.Duration

	// ExtraDistributeTime widens the timestamp window on distribution
	// boundary epochs, when shards additionally wait for transaction
	// distribution before running microblock consensus.
	ExtraDistributeTime time.Duration

	// BlocksPerDistributionCycle is the length of the periodic epoch cycle.
	// The last epoch of each cycle is vacuous (no state transition) and the
	// first epoch of each cycle is a distribution boundary.
	BlocksPerDistributionCycle uint64
}

// DefaultParams returns the protocol defaults.
func DefaultParams() Params {
	return Params{
		MicroBlockVersion:          1,
		ConsensusObjectTimeout:     60 * time.Second,
		MicroBlockTimeout:          30 * time.Second,
		ExtraDistributeTime:        60 * time.Second,
		BlocksPerDistributionCycle: 100,
	}
}

// IsVacuousEpoch returns whether the given epoch performs no state-delta
// transition.
func (p Params) IsVacuousEpoch(epoch uint64) bool {
	return (epoch+1)%p.BlocksPerDistributionCycle == 0
}

// SubmissionWindow returns the allowed timestamp staleness for microblocks of
// the given epoch. The window widens by the distribution allowance only on
// the first epoch of each distribution cycle.
func (p Params) SubmissionWindow(epoch uint64) time.Duration {
	window := p.ConsensusObjectTimeout + p.MicroBlockTimeout
	if epoch%p.BlocksPerDistributionCycle == 0 {
		window += p.ExtraDistributeTime
	}
	return window
}
