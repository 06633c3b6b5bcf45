package aggregation

import (
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/dirsvc/microblock/engine"
	"github.com/dirsvc/microblock/model/zil"
	"github.com/dirsvc/microblock/module"
	"github.com/dirsvc/microblock/module/signature"
	"github.com/dirsvc/microblock/state/delta"
	"github.com/dirsvc/microblock/storage"
)

// rejection reasons as reported to metrics
const (
	reasonDuplicateShard = "duplicate_shard"
	reasonBlockHash      = "block_hash_mismatch"
	reasonVersion        = "version_mismatch"
	reasonNotLatest      = "not_latest"
	reasonTimestamp      = "timestamp_out_of_window"
	reasonUnknownMiner   = "unknown_miner_key"
	reasonShardMismatch  = "shard_id_mismatch"
	reasonCommitteeHash  = "committee_hash_mismatch"
	reasonCoSig          = "cosig_invalid"
	reasonEpochClosed    = "epoch_closed"
	reasonCoinbase       = "coinbase_failed"
	reasonStorage        = "storage_failed"
	reasonStateDelta     = "state_delta_invalid"
)

// epochState is the collector state for one epoch. It is created lazily on
// first submission or first missing-set declaration and lives until the
// epoch-advance driver prunes it; the collector never self-evicts.
type epochState struct {
	accepted map[uint32]*zil.MicroBlock  // accepted microblocks by shard id
	byHash   map[zil.Identifier]struct{} // hashes of accepted microblocks
	closed   bool                        // whether the epoch stopped accepting submissions
	quorum   chan struct{}               // closed once the full shard set is collected

	missing         map[zil.Identifier]struct{} // committee-declared outstanding block hashes
	missingResolved chan struct{}               // closed once the missing set empties
}

func newEpochState() *epochState {
	return &epochState{
		accepted: make(map[uint32]*zil.MicroBlock),
		byHash:   make(map[zil.Identifier]struct{}),
		quorum:   make(chan struct{}),
	}
}

// numShardBlocks counts the accepted microblocks of regular shards,
// excluding one collected under the DS sentinel id.
func (s *epochState) numShardBlocks(dsShard uint32) int {
	n := len(s.accepted)
	if _, ok := s.accepted[dsShard]; ok {
		n--
	}
	return n
}

// Core implements the per-epoch microblock collection state machine: it runs
// the submission pipeline, owns the stop-accepting transition, and fires the
// downstream final-block trigger exactly once per epoch.
type Core struct {
	log      zerolog.Logger
	metrics  module.AggregationMetrics
	params   zil.Params
	verifier *signature.CoSigVerifier

	committees module.Committees
	oracle     module.LatestBlockOracle
	blocks     storage.MicroBlocks
	deltas     *delta.Processor
	coinbase   module.CoinbaseLedger
	trigger    module.FinalBlockTrigger

	// ownShardID is the shard this node belonged to before joining the DS
	// committee; microblocks of that shard skip co-signature verification in
	// the recovery path.
	ownShardID uint32

	currentEpoch   *atomic.Uint64
	acceptingPhase *atomic.Bool // whether the committee phase gate admits submissions

	mu     sync.Mutex // guards epochs; held across the full check-then-mutate sequence
	epochs map[uint64]*epochState

	workers *workerpool.WorkerPool // runs the detached downstream trigger

	now func() time.Time
}

func NewCore(
	log zerolog.Logger,
	metrics module.AggregationMetrics,
	params zil.Params,
	committees module.Committees,
	oracle module.LatestBlockOracle,
	blocks storage.MicroBlocks,
	deltas *delta.Processor,
	coinbase module.CoinbaseLedger,
	trigger module.FinalBlockTrigger,
	ownShardID uint32,
) *Core {
	return &Core{
		log:            log.With().Str("component", "microblock_collector").Logger(),
		metrics:        metrics,
		params:         params,
		verifier:       signature.NewCoSigVerifier(log),
		committees:     committees,
		oracle:         oracle,
		blocks:         blocks,
		deltas:         deltas,
		coinbase:       coinbase,
		trigger:        trigger,
		ownShardID:     ownShardID,
		currentEpoch:   atomic.NewUint64(0),
		acceptingPhase: atomic.NewBool(false),
		epochs:         make(map[uint64]*epochState),
		workers:        workerpool.New(1),
		now:            time.Now,
	}
}

// StopWorkers stops the trigger worker pool, waiting for any scheduled
// downstream trigger to complete. No submission may enter the pipeline
// afterwards; the engine orders this after its unit has drained.
func (c *Core) StopWorkers() {
	c.workers.StopWait()
}

// SetCurrentEpoch advances the collector's epoch clock. Called by the
// epoch-advance driver before flushing the submission buffer.
func (c *Core) SetCurrentEpoch(epoch uint64) {
	c.currentEpoch.Store(epoch)
}

// CurrentEpoch returns the collector's current epoch.
func (c *Core) CurrentEpoch() uint64 {
	return c.currentEpoch.Load()
}

// SetAcceptingPhase opens or closes the committee's phase gate. While the
// gate is closed, current-epoch submissions are buffered instead of
// processed.
func (c *Core) SetAcceptingPhase(accepting bool) {
	c.acceptingPhase.Store(accepting)
}

// AcceptingPhase returns whether the phase gate currently admits
// submissions.
func (c *Core) AcceptingPhase() bool {
	return c.acceptingPhase.Load()
}

// epochStateLocked returns the state for the epoch, creating it lazily.
// Callers must hold c.mu.
func (c *Core) epochStateLocked(epoch uint64) *epochState {
	state, ok := c.epochs[epoch]
	if !ok {
		state = newEpochState()
		c.epochs[epoch] = state
	}
	return state
}

// QuorumDone returns a channel closed once the full microblock set for the
// epoch has been collected. Multiple observers may wait on it; timing out the
// wait is the observer's responsibility.
func (c *Core) QuorumDone(epoch uint64) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epochStateLocked(epoch).quorum
}

// MicroBlocks returns the microblocks accepted so far for the epoch.
func (c *Core) MicroBlocks(epoch uint64) []*zil.MicroBlock {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.epochs[epoch]
	if !ok {
		return nil
	}
	blocks := make([]*zil.MicroBlock, 0, len(state.accepted))
	for _, mb := range state.accepted {
		blocks = append(blocks, mb)
	}
	return blocks
}

// PruneUpToEpoch removes all collector state for epochs up to and including
// the given epoch, along with the recorded state deltas. Invoked by the
// epoch-advance driver after downstream finalization.
func (c *Core) PruneUpToEpoch(epoch uint64) {
	c.mu.Lock()
	for e := range c.epochs {
		if e <= epoch {
			delete(c.epochs, e)
		}
	}
	c.mu.Unlock()
	c.deltas.PruneUpToEpoch(epoch)
}

// OnShardMicroBlock runs the full acceptance pipeline for a shard's
// submission at the current epoch. All rejections are reported as errors of
// the appropriate kind; none is fatal to the process.
func (c *Core) OnShardMicroBlock(mb *zil.MicroBlock, stateDelta zil.StateDelta) error {

	epoch := c.currentEpoch.Load()
	shardID := mb.Header.ShardID
	log := c.log.With().
		Uint64("epoch", epoch).
		Uint32("shard_id", shardID).
		Hex("block_hash", mb.BlockHash[:]).
		Logger()

	// cheap duplicate pre-filter before the expensive checks; the
	// authoritative duplicate check is repeated under the lock at insert
	c.mu.Lock()
	_, dup := c.epochStateLocked(epoch).accepted[shardID]
	c.mu.Unlock()
	if dup {
		c.metrics.MicroBlockRejected(reasonDuplicateShard)
		return engine.NewDuplicatedEntryErrorf("duplicate microblock for shard %d", shardID)
	}

	err := c.checkSubmission(mb, epoch)
	if err != nil {
		return err
	}

	roster, err := c.rosterFor(shardID)
	if err != nil {
		c.metrics.MicroBlockRejected(reasonShardMismatch)
		return engine.NewInvalidInputErrorf("could not resolve roster: %v", err)
	}
	if !c.verifier.VerifyMicroBlock(roster, mb) {
		c.metrics.MicroBlockRejected(reasonCoSig)
		return engine.NewInvalidInputErrorf("microblock co-signature verification failed")
	}

	// the remaining checks and effects form one critical section: the
	// duplicate/closed reads must be atomic with the insert
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.epochStateLocked(epoch)
	if state.closed {
		c.metrics.MicroBlockRejected(reasonEpochClosed)
		return engine.NewOutdatedInputErrorf("microblock collection for epoch %d already closed", epoch)
	}
	if _, ok := state.accepted[shardID]; ok {
		c.metrics.MicroBlockRejected(reasonDuplicateShard)
		return engine.NewDuplicatedEntryErrorf("duplicate microblock for shard %d", shardID)
	}

	if shardID != zil.DSShardID(c.committees.NumShards()) {
		err = c.coinbase.SaveCoinbase(mb.Cosigs.B1, mb.Cosigs.B2, shardID, epoch)
		if err != nil {
			c.metrics.MicroBlockRejected(reasonCoinbase)
			return fmt.Errorf("could not save coinbase for shard %d: %w", shardID, err)
		}
	}

	err = c.blocks.Put(mb.BlockHash, mb.Header.EpochNum, shardID, mb.Serialize())
	if err != nil {
		c.metrics.MicroBlockRejected(reasonStorage)
		return fmt.Errorf("could not persist microblock: %w", err)
	}

	if !c.params.IsVacuousEpoch(epoch) {
		err = c.deltas.Process(stateDelta, mb.Header.StateDeltaHash, mb.BlockHash, epoch)
		if err != nil {
			c.metrics.MicroBlockRejected(reasonStateDelta)
			return engine.NewInvalidInputErrorf("state delta attached to the microblock is invalid: %v", err)
		}
	}

	state.accepted[shardID] = mb
	state.byHash[mb.BlockHash] = struct{}{}
	delete(state.missing, mb.BlockHash)
	c.metrics.MicroBlockAccepted(epoch, shardID)

	log.Info().
		Int("collected", len(state.accepted)).
		Int("expected", c.committees.NumShards()).
		Msg("microblock accepted")

	// quorum is a pure cardinality check over the expected shard count, not
	// counting a DS microblock under the sentinel id; the last arrival
	// completing the set performs the one-way CLOSED transition and
	// schedules the downstream trigger, all within this critical section
	if state.numShardBlocks(zil.DSShardID(c.committees.NumShards())) == c.committees.NumShards() {
		state.closed = true
		close(state.quorum)
		c.metrics.QuorumReached(epoch)
		log.Info().Msg("all shard microblocks received, scheduling final block consensus")
		c.workers.Submit(func() {
			c.trigger.RunFinalBlockConsensus(epoch)
		})
	}

	return nil
}

// checkSubmission runs the structural and identity gates of the submission
// pipeline, in order, each fail-fast.
func (c *Core) checkSubmission(mb *zil.MicroBlock, epoch uint64) error {

	computed := mb.Header.ID()
	if computed != mb.BlockHash {
		c.metrics.MicroBlockRejected(reasonBlockHash)
		return engine.NewInvalidInputErrorf(
			"microblock hash mismatch (computed: %x, carried: %x)", computed, mb.BlockHash)
	}

	if mb.Header.Version != c.params.MicroBlockVersion {
		c.metrics.MicroBlockRejected(reasonVersion)
		return engine.NewInvalidInputErrorf(
			"microblock version mismatch (expected: %d, got: %d)", c.params.MicroBlockVersion, mb.Header.Version)
	}

	if !c.oracle.IsLatest(mb.Header.DSBlockNum+1, mb.Header.EpochNum) {
		c.metrics.MicroBlockRejected(reasonNotLatest)
		return engine.NewOutdatedInputErrorf(
			"microblock refers to a non-latest block (ds block: %d, epoch: %d)", mb.Header.DSBlockNum, mb.Header.EpochNum)
	}

	window := c.params.SubmissionWindow(epoch)
	skew := c.now().Sub(time.UnixMilli(int64(mb.Header.Timestamp)))
	if skew < 0 {
		skew = -skew
	}
	if skew > window {
		c.metrics.MicroBlockRejected(reasonTimestamp)
		return engine.NewInvalidInputErrorf(
			"microblock timestamp outside allowed window (skew: %s, window: %s)", skew, window)
	}

	if mb.Header.ShardID == zil.DSShardID(c.committees.NumShards()) {
		if !c.committees.DSCommittee().ContainsKey(mb.Header.MinerPubKey) {
			c.metrics.MicroBlockRejected(reasonUnknownMiner)
			return engine.NewInvalidInputErrorf("cannot find the miner key in DS committee")
		}
	} else {
		minerShard, ok := c.committees.ShardIDForKey(mb.Header.MinerPubKey)
		if !ok {
			c.metrics.MicroBlockRejected(reasonUnknownMiner)
			return engine.NewInvalidInputErrorf("cannot find the miner key in any shard")
		}
		if minerShard != mb.Header.ShardID {
			c.metrics.MicroBlockRejected(reasonShardMismatch)
			return engine.NewInvalidInputErrorf(
				"microblock shard id mismatch (member of: %d, claimed: %d)", minerShard, mb.Header.ShardID)
		}
	}

	committeeHash, err := c.committees.CommitteeHash(mb.Header.ShardID)
	if err != nil {
		c.metrics.MicroBlockRejected(reasonShardMismatch)
		return engine.NewInvalidInputErrorf("could not compute committee hash: %v", err)
	}
	if committeeHash != mb.Header.CommitteeHash {
		c.metrics.MicroBlockRejected(reasonCommitteeHash)
		return engine.NewInvalidInputErrorf(
			"microblock committee hash mismatch (expected: %x, received: %x)", committeeHash, mb.Header.CommitteeHash)
	}

	return nil
}

// rosterFor resolves the roster a microblock's co-signature is checked
// against: the DS committee for the sentinel shard id, the indexed shard
// otherwise.
func (c *Core) rosterFor(shardID uint32) (zil.Committee, error) {
	if shardID == zil.DSShardID(c.committees.NumShards()) {
		return c.committees.DSCommittee(), nil
	}
	return c.committees.ShardRoster(shardID)
}
