// Package quorum computes the signer thresholds of the collective-signature
// protocol.
package quorum

// NumForConsensus returns the minimum number of co-signers required for a
// collective signature over a roster of the given size to be valid. The
// two-thirds-plus-one supermajority is a committee-wide protocol parameter:
// it must match the threshold used at signing time by every participant.
func NumForConsensus(rosterSize int) int {
	if rosterSize <= 0 {
		return 0
	}
	return rosterSize*2/3 + 1
}
