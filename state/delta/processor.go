// Package delta validates and applies the state deltas shards attach to
// their microblocks.
package delta

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dirsvc/microblock/model/zil"
	"github.com/dirsvc/microblock/module"
)

// Processor checks a microblock's declared state-delta hash against the
// committed bytes, stages the delta into the account store, and records the
// canonical serialized form per (epoch, block hash).
//
// The account store's staging is transactional per call; on failure the
// processor leaves nothing recorded and the store's staged state is the
// store's own concern. Failures are always reported, never fatal.
type Processor struct {
	log      zerolog.Logger
	accounts module.AccountStore

	mu      sync.Mutex
	applied map[uint64]map[zil.Identifier][]byte // applied canonical deltas, per epoch per block hash
}

func NewProcessor(log zerolog.Logger, accounts module.AccountStore) *Processor {
	return &Processor{
		log:      log.With().Str("component", "delta_processor").Logger(),
		accounts: accounts,
		applied:  make(map[uint64]map[zil.Identifier][]byte),
	}
}

// Process validates the delta against its declared hash and applies it. A
// null declared hash commits to no state transition and is valid only with
// empty delta bytes; a non-null declared hash must match the SHA-256 digest
// of the bytes exactly.
func (p *Processor) Process(stateDelta zil.StateDelta, declaredHash zil.Identifier, blockHash zil.Identifier, epoch uint64) error {

	if declaredHash.IsZero() {
		if !stateDelta.IsEmpty() {
			return fmt.Errorf("null state-delta hash declared with %d delta bytes", len(stateDelta.Data))
		}
		p.log.Debug().
			Uint64("epoch", epoch).
			Hex("block_hash", blockHash[:]).
			Msg("state-delta hash is null, no state transition")
		return nil
	}

	if stateDelta.IsEmpty() {
		return fmt.Errorf("state-delta hash %x declared with no delta bytes", declaredHash)
	}

	computed := stateDelta.Hash()
	if computed != declaredHash {
		return fmt.Errorf("state-delta hash mismatch (computed: %x, declared: %x)", computed, declaredHash)
	}

	err := p.accounts.DeserializeDeltaStaged(stateDelta.Data)
	if err != nil {
		return fmt.Errorf("could not stage state delta: %w", err)
	}

	// the staged wire form is re-serialized and read back so that the
	// recorded bytes are the store's canonical encoding, not the shard's
	err = p.accounts.SerializeStagedDelta()
	if err != nil {
		return fmt.Errorf("could not serialize staged delta: %w", err)
	}
	canonical := p.accounts.GetSerializedDelta()

	p.mu.Lock()
	defer p.mu.Unlock()
	forEpoch, ok := p.applied[epoch]
	if !ok {
		forEpoch = make(map[zil.Identifier][]byte)
		p.applied[epoch] = forEpoch
	}
	forEpoch[blockHash] = canonical

	p.log.Info().
		Uint64("epoch", epoch).
		Hex("block_hash", blockHash[:]).
		Int("delta_size", len(stateDelta.Data)).
		Msg("state delta applied")

	return nil
}

// AppliedDelta returns the canonical serialized delta recorded for the given
// block hash in the given epoch.
func (p *Processor) AppliedDelta(epoch uint64, blockHash zil.Identifier) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	canonical, ok := p.applied[epoch][blockHash]
	return canonical, ok
}

// PruneUpToEpoch drops all recorded deltas for epochs up to and including the
// given epoch. Called by the epoch-advance driver after finalization; the
// processor never self-evicts.
func (p *Processor) PruneUpToEpoch(epoch uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for e := range p.applied {
		if e <= epoch {
			delete(p.applied, e)
		}
	}
}
