package unittest

import (
	"sync"

	"github.com/dirsvc/microblock/model/zil"
	"github.com/dirsvc/microblock/module"
	"github.com/dirsvc/microblock/storage"
)

// OracleFunc adapts a function to the LatestBlockOracle interface.
type OracleFunc func(dsBlockNum, epochNum uint64) bool

var _ module.LatestBlockOracle = (OracleFunc)(nil)

func (f OracleFunc) IsLatest(dsBlockNum, epochNum uint64) bool {
	return f(dsBlockNum, epochNum)
}

// AcceptAllOracle accepts every (DS block, epoch) pair.
func AcceptAllOracle() OracleFunc {
	return func(uint64, uint64) bool { return true }
}

// CoinbaseSave records one SaveCoinbase invocation.
type CoinbaseSave struct {
	ShardID uint32
	Epoch   uint64
}

// CoinbaseRecorder records coinbase bookkeeping calls and can be set to
// fail.
type CoinbaseRecorder struct {
	mu    sync.Mutex
	Saves []CoinbaseSave
	Err   error
}

var _ module.CoinbaseLedger = (*CoinbaseRecorder)(nil)

func (r *CoinbaseRecorder) SaveCoinbase(_, _ []bool, shardID uint32, epoch uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Saves = append(r.Saves, CoinbaseSave{ShardID: shardID, Epoch: epoch})
	return nil
}

// TriggerRecorder records final-block consensus triggers and signals each on
// a channel for synchronization with the detached trigger goroutine.
type TriggerRecorder struct {
	mu     sync.Mutex
	epochs []uint64
	Fired  chan uint64
}

var _ module.FinalBlockTrigger = (*TriggerRecorder)(nil)

func NewTriggerRecorder() *TriggerRecorder {
	return &TriggerRecorder{Fired: make(chan uint64, 16)}
}

func (r *TriggerRecorder) RunFinalBlockConsensus(epoch uint64) {
	r.mu.Lock()
	r.epochs = append(r.epochs, epoch)
	r.mu.Unlock()
	r.Fired <- epoch
}

// Calls returns the epochs the trigger fired for, in order.
func (r *TriggerRecorder) Calls() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := make([]uint64, len(r.epochs))
	copy(calls, r.epochs)
	return calls
}

// BlockStore is an in-memory microblock store. Setting FailPut makes every
// Put fail, for exercising storage-failure paths.
type BlockStore struct {
	mu      sync.Mutex
	blocks  map[zil.Identifier][]byte
	byEpoch map[uint64][][]byte
	FailPut error
}

var _ storage.MicroBlocks = (*BlockStore)(nil)

func NewBlockStore() *BlockStore {
	return &BlockStore{
		blocks:  make(map[zil.Identifier][]byte),
		byEpoch: make(map[uint64][][]byte),
	}
}

func (s *BlockStore) Put(blockHash zil.Identifier, epoch uint64, _ uint32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPut != nil {
		return s.FailPut
	}
	if _, ok := s.blocks[blockHash]; ok {
		return nil
	}
	s.blocks[blockHash] = data
	s.byEpoch[epoch] = append(s.byEpoch[epoch], data)
	return nil
}

func (s *BlockStore) ByHash(blockHash zil.Identifier) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blocks[blockHash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (s *BlockStore) ByEpoch(epoch uint64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byEpoch[epoch], nil
}

// Len returns the number of stored microblocks.
func (s *BlockStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blocks)
}
