// Package motion turns ordered strokes into a timed, velocity-limited job.
package motion

import (
	"fmt"
	"math"

	"github.com/mastercactapus/plotter/coord"
	"github.com/mastercactapus/plotter/fault"
)

// Plan builds a Job that draws strokes in order. The pen starts up at
// lim.Home.
//
// Strokes that are shorter than one step after conversion are skipped.
// Plan fails with fault.UnreachableGeometry before producing anything if a
// point lies outside lim.Bounds.
func Plan(strokes []coord.Polyline, lim Limits) (Job, error) {
	if err := lim.Validate(); err != nil {
		return Job{}, fault.New(fault.MalformedInput, "plan", err)
	}
	if !lim.Bounds.Contains(lim.Home) {
		return Job{}, fault.New(fault.UnreachableGeometry, "plan", fmt.Errorf("home %v outside %vx%vmm", lim.Home, lim.Bounds.Width, lim.Bounds.Height))
	}
	for i, s := range strokes {
		for j, p := range s {
			if !p.IsFinite() || !lim.Bounds.Contains(p) {
				err := fault.New(fault.UnreachableGeometry, "plan", fmt.Errorf("stroke %d point %d (%g, %g) outside %gx%gmm", i, j, p.X, p.Y, lim.Bounds.Width, lim.Bounds.Height))
				return Job{}, err
			}
		}
	}

	p := planner{
		lim:   lim,
		vmax:  lim.VelocitySteps(),
		accel: lim.AccelerationSteps(),
		dev:   lim.JunctionDeviation * lim.scale(),
		pos:   lim.ToSteps(lim.Home),
	}
	p.pen(PenUp, -1)

	for i, s := range strokes {
		pts := p.convert(s)
		if len(pts) < 2 {
			continue
		}
		p.pen(PenUp, i)
		p.travel(pts[0], i)
		p.pen(PenDown, i)
		p.stroke(pts, i)
	}
	p.pen(PenUp, -1)
	if lim.ReturnHome {
		p.travel(lim.ToSteps(lim.Home), -1)
	}

	return Job{Steps: p.steps, Limits: lim}, nil
}

// Travel profiles a rest-to-rest move at the limits of lim.
func Travel(from, to Steps, lim Limits) Segment {
	return profile(from, to, 0, 0, lim.VelocitySteps(), lim.AccelerationSteps())
}

type planner struct {
	lim   Limits
	vmax  float64
	accel float64
	dev   float64

	pos   Steps
	state PenState
	known bool
	steps []Step
}

// convert rounds a stroke to step positions, merging points that land on
// the same step.
func (p *planner) convert(s coord.Polyline) []Steps {
	res := make([]Steps, 0, len(s))
	for _, pt := range s {
		st := p.lim.ToSteps(pt)
		if len(res) > 0 && res[len(res)-1] == st {
			continue
		}
		res = append(res, st)
	}
	return res
}

func (p *planner) pen(state PenState, stroke int) {
	if p.known && p.state == state {
		return
	}
	p.known = true
	p.state = state
	p.steps = append(p.steps, Step{Kind: PenStep, Pen: state, Stroke: stroke})
}

func (p *planner) travel(to Steps, stroke int) {
	if to == p.pos {
		return
	}
	p.steps = append(p.steps, Step{
		Kind:   MoveStep,
		Move:   Travel(p.pos, to, p.lim),
		Travel: true,
		Stroke: stroke,
	})
	p.pos = to
}

// stroke plans a pen-down polyline that starts and ends at rest.
func (p *planner) stroke(pts []Steps, stroke int) {
	n := len(pts) - 1
	v := make([]float64, n+1)
	for i := 1; i < n; i++ {
		v[i] = JunctionVelocity(deflection(pts[i-1], pts[i], pts[i+1]), p.vmax, p.accel, p.dev)
	}

	// each junction must leave room to brake for the next one
	for i := n - 1; i >= 0; i-- {
		l := pts[i+1].Sub(pts[i]).Len()
		v[i] = math.Min(v[i], math.Sqrt(v[i+1]*v[i+1]+2*p.accel*l))
	}
	// and must be reachable from the previous one
	for i := 0; i < n; i++ {
		l := pts[i+1].Sub(pts[i]).Len()
		v[i+1] = math.Min(v[i+1], math.Sqrt(v[i]*v[i]+2*p.accel*l))
	}

	for i := 0; i < n; i++ {
		p.steps = append(p.steps, Step{
			Kind:   MoveStep,
			Move:   profile(pts[i], pts[i+1], v[i], v[i+1], p.vmax, p.accel),
			Stroke: stroke,
		})
	}
	p.pos = pts[n]
}
