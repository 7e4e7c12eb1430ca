package gcode

import (
	"errors"
	"fmt"

	"github.com/mastercactapus/plotter/coord"
)

const mmPerInch = 25.4

var errUnsupported = errors.New("unsupported code")

// Motion is a linear move produced by a block.
type Motion struct {
	From, To coord.Point
	// Draw is true when the pen is down for the move.
	Draw bool
	// Feed is the programmed feed rate in mm/min, or 0 if none was set.
	Feed float64
}

// VM tracks modal state and pen position while interpreting G-code for a
// pen plotter. G0 always travels with the pen up. G1 draws unless the pen
// was raised with M5 or a positive Z.
type VM struct {
	pos coord.Point

	modal [256]float64

	feed   float64
	penUp  bool
	penSet bool
}

// NewVM constructs a new VM with default state.
func NewVM() *VM {
	vm := &VM{}

	// power-on modal state
	vm.modal[ModalGroupMotion] = 0
	vm.modal[ModalGroupCoordinateSystem] = 54
	vm.modal[ModalGroupPlaneSelection] = 17
	vm.modal[ModalGroupDistanceMode] = 90
	vm.modal[ModalGroupFeedRateMode] = 94
	vm.modal[ModalGroupUnits] = 21
	vm.modal[ModalGroupStopping] = 0
	vm.modal[ModalGroupSpindle] = 5
	vm.modal[ModalGroupCoolant] = 9

	return vm
}

func (vm VM) Inches() bool         { return vm.modal[ModalGroupUnits] == 20 }
func (vm VM) RelativeMotion() bool { return vm.modal[ModalGroupDistanceMode] == 91 }

// Pos is the current position in millimeters.
func (vm VM) Pos() coord.Point { return vm.pos }

func isSupported(g Word) bool {
	switch g.W {
	case 'X', 'Y', 'Z', 'F', 'P', 'S', 'N':
		return true
	case 'G':
		switch g.Arg {
		case 0, 1, 4, 17, 20, 21, 54, 90, 91, 94:
			return true
		}
	case 'M':
		switch g.Arg {
		case 0, 1, 2, 3, 4, 5, 30:
			return true
		}
	}

	return false
}

func (vm *VM) scale() float64 {
	if vm.Inches() {
		return mmPerInch
	}
	return 1
}

// Run applies b. It reports a Motion when b moves in X or Y.
func (vm *VM) Run(b Block) (Motion, bool, error) {
	if err := b.Validate(); err != nil {
		return Motion{}, false, err
	}
	dwell := false
	for _, g := range b {
		if !isSupported(g) {
			return Motion{}, false, fmt.Errorf("%w: %s", errUnsupported, g)
		}
		mg := g.ModalGroup()
		if mg != ModalGroupNone && mg != ModalGroupNonModal {
			vm.modal[mg] = g.Arg
		}
		switch g {
		case Word{W: 'G', Arg: 4}:
			dwell = true
		case Word{W: 'M', Arg: 3}, Word{W: 'M', Arg: 4}:
			vm.penUp, vm.penSet = false, true
		case Word{W: 'M', Arg: 5}:
			vm.penUp, vm.penSet = true, true
		}
	}

	mul := vm.scale()
	if ok, f := b.Arg('F'); ok {
		vm.feed = f * mul
	}
	if ok, z := b.Arg('Z'); ok {
		vm.penUp, vm.penSet = z > 0, true
	}
	if dwell {
		return Motion{}, false, nil
	}

	okX, x := b.Arg('X')
	okY, y := b.Arg('Y')
	if !okX && !okY {
		return Motion{}, false, nil
	}

	to := vm.pos
	if vm.RelativeMotion() {
		to = to.Add(coord.Point{X: x * mul, Y: y * mul})
	} else {
		if okX {
			to.X = x * mul
		}
		if okY {
			to.Y = y * mul
		}
	}

	m := Motion{From: vm.pos, To: to, Feed: vm.feed}
	switch vm.modal[ModalGroupMotion] {
	case 0:
		m.Draw = false
	case 1:
		m.Draw = !vm.penSet || !vm.penUp
	}
	vm.pos = to
	return m, true, nil
}
