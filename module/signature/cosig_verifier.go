// Package signature implements the collective-signature verification used by
// the DS committee when accepting shard microblocks.
package signature

import (
	"github.com/onflow/flow-go/crypto"
	"github.com/onflow/flow-go/crypto/hash"
	"github.com/rs/zerolog"

	"github.com/dirsvc/microblock/model/zil"
	"github.com/dirsvc/microblock/module/quorum"
)

// MicroBlockCoSigTag is the domain separation tag for microblock collective
// signatures.
const MicroBlockCoSigTag = "ZIL_V1_MicroBlock_CoSig"

// NewCoSigHasher returns the hasher used for signing and verifying microblock
// collective signatures. It is the expand-message step of the BLS
// hash-to-curve, a KMAC128-based xof with 128-byte outputs.
func NewCoSigHasher() hash.Hasher {
	return crypto.NewExpandMsgXOFKMAC128(MicroBlockCoSigTag)
}

// CoSigVerifier checks aggregate signatures against a roster and a
// participation bitmap. It performs no state mutation; every failure is
// reported as an invalid result, never as a fatal error.
type CoSigVerifier struct {
	log    zerolog.Logger
	hasher hash.Hasher
}

func NewCoSigVerifier(log zerolog.Logger) *CoSigVerifier {
	return &CoSigVerifier{
		log:    log.With().Str("component", "cosig_verifier").Logger(),
		hasher: NewCoSigHasher(),
	}
}

// Verify checks that the aggregate signature over the given message was
// produced by a quorum of the roster, with the contributing subset indicated
// by the bitmap. Bit positions follow roster order.
func (v *CoSigVerifier) Verify(roster zil.Committee, bitmap []bool, message []byte, aggSig crypto.Signature) bool {

	if len(bitmap) != roster.Size() {
		v.log.Warn().
			Int("roster_size", roster.Size()).
			Int("bitmap_size", len(bitmap)).
			Msg("co-sig bitmap size does not match roster size")
		return false
	}

	// collect the contributing subset of public keys, in roster order
	keys := make([]crypto.PublicKey, 0, len(bitmap))
	for i, set := range bitmap {
		if set {
			keys = append(keys, roster[i].PubKey)
		}
	}

	if len(keys) < quorum.NumForConsensus(roster.Size()) {
		v.log.Warn().
			Int("signers", len(keys)).
			Int("required", quorum.NumForConsensus(roster.Size())).
			Msg("co-sig was not generated by enough nodes")
		return false
	}

	// the quorum floor rules out an empty subset, but aggregation failure is
	// still checked rather than assumed away
	aggKey, err := crypto.AggregateBLSPublicKeys(keys)
	if err != nil {
		v.log.Warn().Err(err).Msg("public key aggregation failed")
		return false
	}

	valid, err := aggKey.Verify(aggSig, message, v.hasher)
	if err != nil {
		v.log.Warn().Err(err).Msg("co-sig verification errored")
		return false
	}
	if !valid {
		v.log.Warn().Msg("co-sig verification failed")
	}
	return valid
}

// VerifyMicroBlock checks the second-round collective signature of a
// microblock against the roster of its producing shard. The message covered
// is the header encoding followed by the first-round signature and the
// length-prefixed first-round bitmap.
func (v *CoSigVerifier) VerifyMicroBlock(roster zil.Committee, mb *zil.MicroBlock) bool {
	return v.Verify(roster, mb.Cosigs.B2, mb.CoSigMessage(), mb.Cosigs.CS2)
}
