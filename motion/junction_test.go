package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJunctionVelocity_Endpoints(t *testing.T) {
	assert.Equal(t, 1600.0, JunctionVelocity(0, 1600, 12800, 4))
	assert.Equal(t, 0.0, JunctionVelocity(math.Pi, 1600, 12800, 4))
	assert.Equal(t, 0.0, JunctionVelocity(math.Pi/2, 1600, 12800, 0))
}

func TestJunctionVelocity_Monotonic(t *testing.T) {
	const peak, accel, dev = 1600.0, 12800.0, 4.0

	prev := JunctionVelocity(0, peak, accel, dev)
	for i := 1; i <= 180; i++ {
		theta := float64(i) * math.Pi / 180
		v := JunctionVelocity(theta, peak, accel, dev)
		assert.LessOrEqual(t, v, prev, "theta %d°", i)
		if prev < peak {
			assert.Less(t, v, prev, "theta %d°", i)
		}
		prev = v
	}
	assert.Equal(t, 0.0, prev)
}

func TestDeflection(t *testing.T) {
	a, b := Steps{X: 0}, Steps{X: 10}
	assert.InDelta(t, 0, deflection(a, b, Steps{X: 20}), 1e-9)
	assert.InDelta(t, math.Pi/2, deflection(a, b, Steps{X: 10, Y: 10}), 1e-9)
	assert.InDelta(t, math.Pi, deflection(a, b, Steps{X: 0}), 1e-9)
}
