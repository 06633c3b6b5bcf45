// Package messages contains the typed network events the message dispatch
// layer hands to the aggregation engine. Wire encoding and decoding is the
// messenger's contract; by the time a value reaches this package it is fully
// typed and carries the claimed sender public key.
package messages

import (
	"github.com/onflow/flow-go/crypto"

	"github.com/dirsvc/microblock/model/zil"
)

// SubmissionKind discriminates the two microblock submission flows.
type SubmissionKind uint8

const (
	// ShardMicroBlock is a shard's regular per-epoch submission.
	ShardMicroBlock SubmissionKind = iota + 1
	// MissingMicroBlock is a DS member's response to a missing-microblock
	// fetch request.
	MissingMicroBlock
)

// MicroBlockSubmission is a microblock submission message. A shard submission
// carries exactly one microblock and delta in practice; a missing submission
// carries one entry per fetched hash, with deltas index-aligned to blocks.
type MicroBlockSubmission struct {
	Kind        SubmissionKind
	EpochNum    uint64
	MicroBlocks []*zil.MicroBlock
	StateDeltas []zil.StateDelta
	SenderKey   crypto.PublicKey
}
