package quorum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumForConsensus(t *testing.T) {
	cases := []struct {
		rosterSize int
		expected   int
	}{
		{0, 0},
		{-1, 0},
		{1, 1},
		{3, 3},
		{4, 3},
		{6, 5},
		{10, 7},
		{600, 401},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, NumForConsensus(c.rosterSize), "roster size %d", c.rosterSize)
	}
}

// the threshold always represents a strict supermajority: more than
// two-thirds of the roster, and never more than the roster itself
func TestNumForConsensusSupermajority(t *testing.T) {
	for n := 1; n <= 1000; n++ {
		min := NumForConsensus(n)
		assert.Greater(t, 3*min, 2*n)
		assert.LessOrEqual(t, min, n)
	}
}
