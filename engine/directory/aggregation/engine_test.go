package aggregation

import (
	"testing"
	"time"

	"github.com/onflow/flow-go/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/dirsvc/microblock/engine"
	"github.com/dirsvc/microblock/model/messages"
	"github.com/dirsvc/microblock/model/zil"
	"github.com/dirsvc/microblock/module"
	"github.com/dirsvc/microblock/module/faultinject"
	"github.com/dirsvc/microblock/module/metrics"
	"github.com/dirsvc/microblock/state/account"
	"github.com/dirsvc/microblock/state/committees"
	"github.com/dirsvc/microblock/state/delta"
	"github.com/dirsvc/microblock/utils/unittest"
)

func TestAggregationEngine(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

type EngineSuite struct {
	suite.Suite

	shardRosters []zil.Committee
	shardKeys    [][]crypto.PrivateKey
	dsRoster     zil.Committee
	dsKeys       []crypto.PrivateKey

	provider *committees.Static
	blocks   *unittest.BlockStore
	trigger  *unittest.TriggerRecorder
	core     *Core
	engine   *Engine
}

func (s *EngineSuite) SetupTest() {
	s.buildEngine(faultinject.NewDisabled(), false)
}

func (s *EngineSuite) buildEngine(faults module.FaultInjector, observer bool) {
	s.shardRosters = make([]zil.Committee, 2)
	s.shardKeys = make([][]crypto.PrivateKey, 2)
	for i := range s.shardRosters {
		s.shardRosters[i], s.shardKeys[i] = unittest.CommitteeFixture(s.T(), 4)
	}
	s.dsRoster, s.dsKeys = unittest.CommitteeFixture(s.T(), 4)

	var err error
	s.provider, err = committees.NewStatic(s.shardRosters, s.dsRoster)
	s.Require().NoError(err)

	s.blocks = unittest.NewBlockStore()
	s.trigger = unittest.NewTriggerRecorder()
	s.core = NewCore(
		zerolog.Nop(),
		metrics.NewNoopCollector(),
		zil.DefaultParams(),
		s.provider,
		unittest.AcceptAllOracle(),
		s.blocks,
		delta.NewProcessor(zerolog.Nop(), account.NewStore()),
		&unittest.CoinbaseRecorder{},
		s.trigger,
		zil.DSShardID(2)+1,
	)
	s.engine = New(zerolog.Nop(), metrics.NewNoopCollector(), s.core, s.provider, faults, observer)
}

func (s *EngineSuite) microBlockFor(epoch uint64, shardID uint32) *zil.MicroBlock {
	return unittest.SignedMicroBlockFixture(
		s.T(), s.shardRosters[shardID], s.shardKeys[shardID], epoch, shardID)
}

// A submission for a future epoch is held until the epoch clock catches up:
// flushing at an intermediate epoch must not release it early.
func (s *EngineSuite) TestFutureSubmissionBufferedUntilDue() {
	s.core.SetCurrentEpoch(3)
	s.core.SetAcceptingPhase(true)

	mb := s.microBlockFor(5, 0)
	outcome, err := s.engine.SubmitShardMicroBlock(5, mb, zil.StateDelta{})
	s.Require().NoError(err)
	s.Require().Equal(OutcomeBuffered, outcome)
	s.Assert().Equal(uint(1), s.engine.BufferSize())

	s.core.SetCurrentEpoch(4)
	s.engine.FlushBufferForCurrentEpoch()
	s.Assert().Empty(s.core.MicroBlocks(5))
	s.Assert().Equal(uint(1), s.engine.BufferSize())

	s.core.SetCurrentEpoch(5)
	s.engine.FlushBufferForCurrentEpoch()
	s.Assert().Len(s.core.MicroBlocks(5), 1)
	s.Assert().Equal(uint(0), s.engine.BufferSize())

	// a second flush is a no-op
	s.engine.FlushBufferForCurrentEpoch()
	s.Assert().Len(s.core.MicroBlocks(5), 1)
}

func (s *EngineSuite) TestClosedPhaseGateBuffers() {
	s.core.SetCurrentEpoch(5)
	s.core.SetAcceptingPhase(false)

	mb := s.microBlockFor(5, 0)
	outcome, err := s.engine.SubmitShardMicroBlock(5, mb, zil.StateDelta{})
	s.Require().NoError(err)
	s.Require().Equal(OutcomeBuffered, outcome)
	s.Assert().Empty(s.core.MicroBlocks(5))

	s.core.SetAcceptingPhase(true)
	s.engine.FlushBufferForCurrentEpoch()
	s.Assert().Len(s.core.MicroBlocks(5), 1)
}

func (s *EngineSuite) TestLateSubmissionRejected() {
	s.core.SetCurrentEpoch(5)
	s.core.SetAcceptingPhase(true)

	mb := s.microBlockFor(4, 0)
	outcome, err := s.engine.SubmitShardMicroBlock(4, mb, zil.StateDelta{})
	s.Require().Error(err)
	s.Assert().Equal(OutcomeRejected, outcome)
	s.Assert().True(engine.IsOutdatedInputError(err))
}

func (s *EngineSuite) TestObserverAcknowledgesWithoutState() {
	s.buildEngine(faultinject.NewDisabled(), true)
	s.core.SetCurrentEpoch(5)
	s.core.SetAcceptingPhase(true)

	mb := s.microBlockFor(5, 0)
	outcome, err := s.engine.SubmitShardMicroBlock(5, mb, zil.StateDelta{})
	s.Require().NoError(err)
	s.Assert().Equal(OutcomeNotApplicable, outcome)
	s.Assert().Empty(s.core.MicroBlocks(5))
	s.Assert().Equal(uint(0), s.engine.BufferSize())

	s.Assert().NoError(s.engine.SubmitMissingMicroBlocks(5, []*zil.MicroBlock{mb}, []zil.StateDelta{{}}))
	s.Assert().Empty(s.core.MicroBlocks(5))
}

func (s *EngineSuite) TestFaultInjectionDropsSubmission() {
	s.buildEngine(faultinject.NewDropAll(), false)
	s.core.SetCurrentEpoch(5)
	s.core.SetAcceptingPhase(true)

	mb := s.microBlockFor(5, 0)
	outcome, err := s.engine.SubmitShardMicroBlock(5, mb, zil.StateDelta{})
	s.Require().NoError(err)
	s.Assert().Equal(OutcomeNotApplicable, outcome)
	s.Assert().Empty(s.core.MicroBlocks(5))
}

func (s *EngineSuite) TestShutdownCompletesScheduledTrigger() {
	s.core.SetCurrentEpoch(5)
	s.core.SetAcceptingPhase(true)

	for shardID := uint32(0); shardID < 2; shardID++ {
		_, err := s.engine.SubmitShardMicroBlock(5, s.microBlockFor(5, shardID), zil.StateDelta{})
		s.Require().NoError(err)
	}

	// Done drains the trigger pool, so the final-block trigger scheduled by
	// the quorum transition must have run by the time the channel closes
	select {
	case <-s.engine.Done():
	case <-time.After(time.Second):
		s.FailNow("engine did not shut down")
	}
	s.Assert().Equal([]uint64{5}, s.trigger.Calls())
}

func (s *EngineSuite) TestProcessGatesOnSenderMembership() {
	s.core.SetCurrentEpoch(5)
	s.core.SetAcceptingPhase(true)

	mb := s.microBlockFor(5, 0)

	s.Run("shard flow accepts shard sender", func() {
		err := s.engine.Process(&messages.MicroBlockSubmission{
			Kind:        messages.ShardMicroBlock,
			EpochNum:    5,
			MicroBlocks: []*zil.MicroBlock{mb},
			StateDeltas: []zil.StateDelta{{}},
			SenderKey:   s.shardKeys[0][1].PublicKey(),
		})
		s.Require().NoError(err)
		s.Assert().Len(s.core.MicroBlocks(5), 1)
	})

	s.Run("shard flow rejects non-shard sender", func() {
		err := s.engine.Process(&messages.MicroBlockSubmission{
			Kind:        messages.ShardMicroBlock,
			EpochNum:    5,
			MicroBlocks: []*zil.MicroBlock{mb},
			StateDeltas: []zil.StateDelta{{}},
			SenderKey:   s.dsKeys[0].PublicKey(),
		})
		s.Require().Error(err)
		s.Assert().True(engine.IsInvalidInputError(err))
	})

	s.Run("missing flow rejects non-DS sender", func() {
		err := s.engine.Process(&messages.MicroBlockSubmission{
			Kind:        messages.MissingMicroBlock,
			EpochNum:    5,
			MicroBlocks: []*zil.MicroBlock{mb},
			StateDeltas: []zil.StateDelta{{}},
			SenderKey:   s.shardKeys[0][0].PublicKey(),
		})
		s.Require().Error(err)
		s.Assert().True(engine.IsInvalidInputError(err))
	})

	s.Run("empty shard submission rejected", func() {
		err := s.engine.Process(&messages.MicroBlockSubmission{
			Kind:      messages.ShardMicroBlock,
			EpochNum:  5,
			SenderKey: s.shardKeys[0][0].PublicKey(),
		})
		s.Require().Error(err)
		s.Assert().True(engine.IsInvalidInputError(err))
	})

	s.Run("unknown event type rejected", func() {
		s.Assert().Error(s.engine.Process("not a submission"))
	})
}
