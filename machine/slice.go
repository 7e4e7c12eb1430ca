package machine

import (
	"math"
	"time"

	"github.com/mastercactapus/plotter/motion"
)

// slice is one XM command: move to an absolute step target over ms.
type slice struct {
	ms int
	to motion.Steps
}

func round(x, y float64) motion.Steps {
	return motion.Steps{X: int(math.Round(x)), Y: int(math.Round(y))}
}

// sliceMove samples seg every interval. Targets are absolute, so rounding
// error never accumulates across slices. Samples that do not move a whole
// step are folded into the next one.
func sliceMove(seg motion.Segment, interval time.Duration) []slice {
	total := seg.Duration()
	if seg.From == seg.To || total <= 0 || math.IsNaN(total) {
		return nil
	}
	dt := interval.Seconds()
	n := int(math.Ceil(total / dt))
	if n < 1 {
		n = 1
	}

	var res []slice
	prev := seg.From
	prevMS := 0
	for i := 1; i <= n; i++ {
		t := math.Min(float64(i)*dt, total)
		to := seg.To
		if i < n {
			to = round(seg.Position(t))
		}
		if to == prev {
			continue
		}
		ms := int(math.Round(t * 1000))
		if ms <= prevMS {
			if i < n {
				continue
			}
			ms = prevMS + 1
		}
		res = append(res, slice{ms: ms - prevMS, to: to})
		prev, prevMS = to, ms
	}
	return res
}
