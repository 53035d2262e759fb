package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Monotonic(t *testing.T) {
	var tr tracker

	assert.Equal(t, 5, tr.at(5))
	assert.Equal(t, 50, tr.at(50))
	assert.Equal(t, 50, tr.at(30), "progress never moves backwards")
	assert.Equal(t, 100, tr.at(250))
	assert.Equal(t, 100, tr.current())
}

func TestBands_StayWithinRoundRange(t *testing.T) {
	for _, depth := range []int{1, 2, 3, 7, 100} {
		b := newBands(depth)
		for r := 0; r < depth; r++ {
			assert.GreaterOrEqual(t, b.search(r), progressRounds)
			assert.LessOrEqual(t, b.analyze(r), progressRoundsTo)
			assert.LessOrEqual(t, b.search(r), b.found(r, 0, 3))
			assert.LessOrEqual(t, b.found(r, 2, 3), b.analyze(r))
		}
	}
}
