// Package account provides the default account-store handle used by the
// state-delta processor. It models the staged-delta API: wire-form delta
// bytes are parsed into a staging area and re-serialized into the store's
// canonical form.
package account

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v4"

	"github.com/dirsvc/microblock/module"
)

// Mutation is one account's staged balance/nonce change.
type Mutation struct {
	Address string
	Balance uint64
	Nonce   uint64
}

// Store holds one staged delta at a time. The wire form a shard produces may
// list mutations in any order; the canonical form is the msgpack encoding of
// the mutations sorted by address, so the same logical delta always
// re-serializes to the same bytes regardless of wire ordering.
type Store struct {
	mu        sync.Mutex
	staged    []Mutation
	canonical []byte
}

var _ module.AccountStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{}
}

func (s *Store) DeserializeDeltaStaged(data []byte) error {
	var staged []Mutation
	err := msgpack.Unmarshal(data, &staged)
	if err != nil {
		return fmt.Errorf("could not decode state delta: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = staged
	return nil
}

func (s *Store) SerializeStagedDelta() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return fmt.Errorf("no staged delta to serialize")
	}
	ordered := make([]Mutation, len(s.staged))
	copy(ordered, s.staged)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Address < ordered[j].Address
	})
	canonical, err := msgpack.Marshal(ordered)
	if err != nil {
		return fmt.Errorf("could not encode canonical delta: %w", err)
	}
	s.canonical = canonical
	return nil
}

func (s *Store) GetSerializedDelta() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canonical
}

// DiscardStaged abandons the staged delta without applying it.
func (s *Store) DiscardStaged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = nil
	s.canonical = nil
}

// EncodeWireDelta encodes mutations in the given order, as a shard would on
// the wire before canonicalization.
func EncodeWireDelta(mutations []Mutation) ([]byte, error) {
	data, err := msgpack.Marshal(mutations)
	if err != nil {
		return nil, fmt.Errorf("could not encode wire delta: %w", err)
	}
	return data, nil
}
