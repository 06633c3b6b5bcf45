package aggregation

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/dirsvc/microblock/engine"
	"github.com/dirsvc/microblock/model/zil"
)

// SetMissing declares the set of block hashes the committee considers
// outstanding for the epoch. Recovery only admits fetched microblocks whose
// hash appears in this set. Declaring a new set re-declares what resolution
// means: waiters from an earlier unresolved declaration stay attached and are
// woken when the new set resolves; a fresh notification is armed only after a
// previous one already fired.
func (c *Core) SetMissing(epoch uint64, hashes []zil.Identifier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.epochStateLocked(epoch)
	state.missing = make(map[zil.Identifier]struct{}, len(hashes))
	for _, hash := range hashes {
		// hashes already accepted are not outstanding
		if _, ok := state.byHash[hash]; ok {
			continue
		}
		state.missing[hash] = struct{}{}
	}
	if state.missingResolved == nil || isClosedChan(state.missingResolved) {
		state.missingResolved = make(chan struct{})
	}
	if len(state.missing) == 0 {
		close(state.missingResolved)
	}
}

func isClosedChan(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// MissingResolved returns a channel closed once the epoch's declared missing
// set has been fully reconciled. It is nil if no missing set was declared.
func (c *Core) MissingResolved(epoch uint64) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epochStateLocked(epoch).missingResolved
}

// OnMissingMicroBlocks reconciles a batch of fetched microblocks against the
// epoch's missing set, replaying the acceptance pipeline with relaxed
// ordering. The response may be partial or stale, so each item is validated
// independently and a failing item is skipped rather than aborting the
// batch; only a storage write failure is fatal to the whole batch.
func (c *Core) OnMissingMicroBlocks(epoch uint64, microBlocks []*zil.MicroBlock, stateDeltas []zil.StateDelta) error {

	current := c.currentEpoch.Load()
	log := c.log.With().Uint64("epoch", epoch).Logger()
	if epoch != current {
		log.Info().
			Uint64("current_epoch", current).
			Msg("untimely delivery of missing microblocks")
	}

	if len(microBlocks) != len(stateDeltas) {
		return engine.NewInvalidInputErrorf(
			"fetched %d microblocks but %d state deltas", len(microBlocks), len(stateDeltas))
	}

	var itemErrs *multierror.Error

	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.epochStateLocked(epoch)

	for i, mb := range microBlocks {
		err := c.reconcileOne(state, epoch, current, mb, stateDeltas[i])
		if err != nil {
			if isFatalToBatch(err) {
				return fmt.Errorf("aborting missing-microblock batch: %w", err)
			}
			log.Warn().Err(err).
				Uint32("shard_id", mb.Header.ShardID).
				Hex("block_hash", mb.BlockHash[:]).
				Msg("skipping fetched microblock")
			itemErrs = multierror.Append(itemErrs, err)
			continue
		}
		log.Info().
			Uint32("shard_id", mb.Header.ShardID).
			Int("collected", len(state.accepted)).
			Int("expected", c.committees.NumShards()).
			Msg("missing microblock recovered")
	}

	if len(state.missing) > 0 {
		return fmt.Errorf("still missing %d microblocks after fetching: %w",
			len(state.missing), itemErrs.ErrorOrNil())
	}

	if state.missingResolved != nil && !isClosedChan(state.missingResolved) {
		close(state.missingResolved)
	}
	return nil
}

// batchFatal wraps errors that must abort the whole recovery batch.
type batchFatal struct {
	err error
}

func (e batchFatal) Error() string { return e.err.Error() }
func (e batchFatal) Unwrap() error { return e.err }

func isFatalToBatch(err error) bool {
	_, ok := err.(batchFatal)
	return ok
}

// reconcileOne validates and admits a single fetched microblock. Callers
// must hold c.mu.
func (c *Core) reconcileOne(state *epochState, epoch uint64, current uint64, mb *zil.MicroBlock, stateDelta zil.StateDelta) error {

	shardID := mb.Header.ShardID
	dsShard := zil.DSShardID(c.committees.NumShards())

	if !c.oracle.IsLatest(mb.Header.DSBlockNum+1, mb.Header.EpochNum) {
		return engine.NewOutdatedInputErrorf(
			"fetched microblock refers to a non-latest block (ds block: %d, epoch: %d)",
			mb.Header.DSBlockNum, mb.Header.EpochNum)
	}

	// membership check: DS roster lookup for the sentinel shard id, the
	// public-key index otherwise
	if shardID == dsShard {
		if !c.committees.DSCommittee().ContainsKey(mb.Header.MinerPubKey) {
			return engine.NewInvalidInputErrorf("cannot find the miner key in DS committee")
		}
	} else {
		minerShard, ok := c.committees.ShardIDForKey(mb.Header.MinerPubKey)
		if !ok {
			return engine.NewInvalidInputErrorf("cannot find the miner key in any shard")
		}
		if minerShard != shardID {
			return engine.NewInvalidInputErrorf(
				"microblock shard id mismatch (member of: %d, claimed: %d)", minerShard, shardID)
		}
	}

	// this node already trusts its own shard's prior agreement
	if shardID != c.ownShardID {
		roster, err := c.rosterFor(shardID)
		if err != nil {
			return engine.NewInvalidInputErrorf("could not resolve roster: %v", err)
		}
		if !c.verifier.VerifyMicroBlock(roster, mb) {
			return engine.NewInvalidInputErrorf("microblock co-signature verification failed")
		}
	}

	if _, requested := state.missing[mb.BlockHash]; !requested {
		return engine.NewInvalidInputErrorf("fetched microblock %x is not in the missing list", mb.BlockHash)
	}

	if _, ok := state.byHash[mb.BlockHash]; ok {
		return engine.NewDuplicatedEntryErrorf("microblock %x already collected", mb.BlockHash)
	}
	if _, ok := state.accepted[shardID]; ok {
		return engine.NewDuplicatedEntryErrorf("microblock for shard %d already collected", shardID)
	}

	if shardID != dsShard {
		err := c.coinbase.SaveCoinbase(mb.Cosigs.B1, mb.Cosigs.B2, shardID, current)
		if err != nil {
			return fmt.Errorf("could not save coinbase for shard %d: %w", shardID, err)
		}
	}

	if !c.params.IsVacuousEpoch(epoch) {
		err := c.deltas.Process(stateDelta, mb.Header.StateDeltaHash, mb.BlockHash, epoch)
		if err != nil {
			return engine.NewInvalidInputErrorf("state delta attached to the microblock is invalid: %v", err)
		}
	}

	err := c.blocks.Put(mb.BlockHash, mb.Header.EpochNum, shardID, mb.Serialize())
	if err != nil {
		return batchFatal{err: fmt.Errorf("could not persist microblock: %w", err)}
	}

	state.accepted[shardID] = mb
	state.byHash[mb.BlockHash] = struct{}{}
	delete(state.missing, mb.BlockHash)
	c.metrics.MicroBlockAccepted(epoch, shardID)

	return nil
}
