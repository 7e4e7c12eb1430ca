package gcode

import (
	"fmt"
	"io"

	"github.com/mastercactapus/plotter/fault"
	"github.com/mastercactapus/plotter/geometry"
)

// Drawing reads G-code from r and returns its pen-down moves as paths in
// millimeters.
func Drawing(r io.Reader) (geometry.Drawing, error) {
	p := NewParser(r)
	vm := NewVM()
	b := geometry.NewBuilder(1)

	open := false
	for {
		block, err := p.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return geometry.Drawing{}, fault.New(fault.MalformedInput, "gcode", err)
		}
		m, ok, err := vm.Run(block)
		if err != nil {
			return geometry.Drawing{}, fault.New(fault.MalformedInput, "gcode", fmt.Errorf("line %d: %w", p.line, err))
		}
		if !ok {
			continue
		}
		if !m.Draw {
			open = false
			continue
		}
		if !open {
			b.MoveTo(m.From)
			open = true
		}
		b.LineTo(m.To)
	}

	return b.Drawing(), nil
}
