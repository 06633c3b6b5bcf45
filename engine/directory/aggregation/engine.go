// Package aggregation implements the DS committee's microblock aggregation
// engine: it collects one microblock per shard per epoch, verifies each
// submission's collective signature and state delta, buffers early arrivals,
// reconciles committee-requested missing microblocks, and triggers the final
// block consensus exactly once per epoch when the full set is collected.
package aggregation

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dirsvc/microblock/engine"
	"github.com/dirsvc/microblock/model/messages"
	"github.com/dirsvc/microblock/model/zil"
	"github.com/dirsvc/microblock/module"
	"github.com/dirsvc/microblock/module/buffer"
)

// Outcome describes what the engine did with a submission.
type Outcome int

const (
	// OutcomeRejected means the submission failed validation; the returned
	// error carries the reason.
	OutcomeRejected Outcome = iota
	// OutcomeAccepted means the submission passed the full pipeline.
	OutcomeAccepted
	// OutcomeBuffered means the submission was held for a later epoch or
	// phase.
	OutcomeBuffered
	// OutcomeNotApplicable means this node acknowledged the submission
	// without mutating state (observer role, or a fault-injected drop).
	OutcomeNotApplicable
)

// Engine receives microblock submission messages from the dispatch layer. It
// gates on sender membership, routes between the shard and missing flows,
// and drives the submission buffer.
type Engine struct {
	unit       *engine.Unit
	log        zerolog.Logger
	metrics    module.AggregationMetrics
	core       *Core
	buffer     *buffer.Submissions
	committees module.Committees
	faults     module.FaultInjector

	// observer marks a read-only follower: all submissions are acknowledged
	// as no-ops by protocol convention.
	observer bool
}

func New(
	log zerolog.Logger,
	metrics module.AggregationMetrics,
	core *Core,
	committees module.Committees,
	faults module.FaultInjector,
	observer bool,
) *Engine {
	return &Engine{
		unit:       engine.NewUnit(),
		log:        log.With().Str("engine", "aggregation").Logger(),
		metrics:    metrics,
		core:       core,
		buffer:     buffer.NewSubmissions(),
		committees: committees,
		faults:     faults,
		observer:   observer,
	}
}

// Ready returns a ready channel that is closed once the engine has fully
// started.
func (e *Engine) Ready() <-chan struct{} {
	return e.unit.Ready()
}

// Done returns a done channel that is closed once the engine has fully
// stopped. A final-block trigger scheduled before shutdown completes before
// the channel closes.
func (e *Engine) Done() <-chan struct{} {
	return e.unit.Done(e.core.StopWorkers)
}

// Process processes a message from the dispatch layer.
func (e *Engine) Process(event interface{}) error {
	return e.unit.Do(func() error {
		switch ev := event.(type) {
		case *messages.MicroBlockSubmission:
			return e.onSubmission(ev)
		default:
			return fmt.Errorf("invalid event type (%T)", event)
		}
	})
}

// onSubmission gates a submission on the claimed sender's membership and
// routes it to the matching flow.
func (e *Engine) onSubmission(msg *messages.MicroBlockSubmission) error {
	switch msg.Kind {
	case messages.ShardMicroBlock:
		if !e.committees.IsShardNode(msg.SenderKey) {
			return engine.NewInvalidInputErrorf(
				"microblock sender key does not match any of the shard members")
		}
		if len(msg.MicroBlocks) == 0 {
			return engine.NewInvalidInputErrorf("shard submission carries no microblocks")
		}
		if len(msg.StateDeltas) == 0 {
			return engine.NewInvalidInputErrorf("shard submission carries no state deltas")
		}
		_, err := e.SubmitShardMicroBlock(msg.EpochNum, msg.MicroBlocks[0], msg.StateDeltas[0])
		return err

	case messages.MissingMicroBlock:
		if !e.committees.IsDSNode(msg.SenderKey) {
			return engine.NewInvalidInputErrorf(
				"microblock sender key does not match any of the DS members")
		}
		return e.SubmitMissingMicroBlocks(msg.EpochNum, msg.MicroBlocks, msg.StateDeltas)

	default:
		return engine.NewInvalidInputErrorf("malformed submission kind (%d)", msg.Kind)
	}
}

// SubmitShardMicroBlock routes a shard's submission by epoch: future epochs
// are buffered, the current epoch is processed when the phase gate is open
// and buffered otherwise, and past epochs are rejected as too late.
func (e *Engine) SubmitShardMicroBlock(epoch uint64, mb *zil.MicroBlock, stateDelta zil.StateDelta) (Outcome, error) {

	if e.observer {
		e.log.Warn().Msg("microblock submission not applicable in observer role")
		return OutcomeNotApplicable, nil
	}
	if e.faults.DropShardSubmission(epoch) {
		e.log.Warn().Uint64("epoch", epoch).Msg("refusing microblock submission (fault injection)")
		return OutcomeNotApplicable, nil
	}

	current := e.core.CurrentEpoch()
	switch {
	case epoch > current:
		e.buffer.Enqueue(epoch, mb, stateDelta)
		e.metrics.MicroBlockBuffered(epoch)
		return OutcomeBuffered, nil

	case epoch == current:
		if !e.core.AcceptingPhase() {
			e.buffer.Enqueue(epoch, mb, stateDelta)
			e.metrics.MicroBlockBuffered(epoch)
			return OutcomeBuffered, nil
		}
		err := e.core.OnShardMicroBlock(mb, stateDelta)
		if err != nil {
			return OutcomeRejected, err
		}
		return OutcomeAccepted, nil

	default:
		return OutcomeRejected, engine.NewOutdatedInputErrorf(
			"microblock submission for epoch %d is too late (current: %d)", epoch, current)
	}
}

// SubmitMissingMicroBlocks hands a fetched batch to the recovery path.
func (e *Engine) SubmitMissingMicroBlocks(epoch uint64, microBlocks []*zil.MicroBlock, stateDeltas []zil.StateDelta) error {
	if e.observer {
		e.log.Warn().Msg("missing microblock submission not applicable in observer role")
		return nil
	}
	return e.core.OnMissingMicroBlocks(epoch, microBlocks, stateDeltas)
}

// FlushBufferForCurrentEpoch processes every buffered submission that became
// due, discarding entries for past epochs. Invoked by the epoch-advance
// driver once the phase gate opens. The buffer lock is not held while the
// entries re-enter the collection path.
func (e *Engine) FlushBufferForCurrentEpoch() {
	current := e.core.CurrentEpoch()
	e.buffer.DrainDue(current, func(mb *zil.MicroBlock, stateDelta zil.StateDelta) {
		err := e.core.OnShardMicroBlock(mb, stateDelta)
		if err != nil {
			e.log.Warn().Err(err).
				Uint64("epoch", current).
				Uint32("shard_id", mb.Header.ShardID).
				Msg("could not process buffered microblock")
		}
	})
}

// BufferSize returns the number of buffered submissions.
func (e *Engine) BufferSize() uint {
	return e.buffer.Size()
}
