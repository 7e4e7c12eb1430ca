package machine

import (
	"math"
	"testing"
	"time"

	"github.com/mastercactapus/plotter/motion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceMove(t *testing.T) {
	lim := motion.Limits{
		MaxVelocity:     20,
		MaxAcceleration: 160,
		StepsPerMM:      motion.StepsPerMM{X: 80, Y: 80},
	}
	seg := motion.Travel(motion.Steps{X: 3, Y: 7}, motion.Steps{X: 803, Y: -593}, lim)

	slices := sliceMove(seg, 100*time.Millisecond)
	require.NotEmpty(t, slices)

	pos := seg.From
	ms := 0
	for _, sl := range slices {
		assert.GreaterOrEqual(t, sl.ms, 1)
		assert.LessOrEqual(t, sl.ms, 100)
		assert.NotEqual(t, pos, sl.to)
		pos = sl.to
		ms += sl.ms
	}
	assert.Equal(t, seg.To, pos)
	assert.InDelta(t, seg.Duration()*1000, float64(ms), 1)
}

func TestSliceMove_Short(t *testing.T) {
	lim := motion.Limits{
		MaxVelocity:     20,
		MaxAcceleration: 160,
		StepsPerMM:      motion.StepsPerMM{X: 80, Y: 80},
	}
	seg := motion.Travel(motion.Steps{}, motion.Steps{X: 1}, lim)
	slices := sliceMove(seg, 100*time.Millisecond)
	require.Len(t, slices, 1)
	assert.Equal(t, motion.Steps{X: 1}, slices[0].to)
	assert.Equal(t, int(math.Max(1, math.Round(seg.Duration()*1000))), slices[0].ms)

	assert.Empty(t, sliceMove(motion.Travel(motion.Steps{}, motion.Steps{}, lim), 100*time.Millisecond))
}
