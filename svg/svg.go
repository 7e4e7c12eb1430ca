// Package svg loads the drawable geometry of an SVG document.
package svg

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mastercactapus/plotter/coord"
	"github.com/mastercactapus/plotter/fault"
	"github.com/mastercactapus/plotter/geometry"
)

// pxPerMM is the CSS reference resolution of 96 px per inch.
const pxPerMM = 96 / 25.4

// pxPerUnit converts absolute length units to CSS pixels.
var pxPerUnit = map[string]float64{
	"":   1,
	"px": 1,
	"mm": pxPerMM,
	"cm": pxPerMM * 10,
	"in": 96,
	"pt": 96.0 / 72,
	"pc": 16,
}

var errRelativeLength = errors.New("relative length")

type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []*node    `xml:",any"`
}

func (n *node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func (n *node) String() string {
	if id := n.attr("id"); id != "" {
		return fmt.Sprintf("<%s id=%q>", n.XMLName.Local, id)
	}
	return "<" + n.XMLName.Local + ">"
}

func (n *node) hidden() bool {
	if n.attr("display") == "none" || n.attr("visibility") == "hidden" {
		return true
	}
	style := strings.ReplaceAll(n.attr("style"), " ", "")
	return strings.Contains(style, "display:none")
}

// parseLength returns a length in px. Percentages and font relative units
// fail with errRelativeLength.
func parseLength(v string) (float64, error) {
	s := &scanner{data: v}
	n, err := s.number()
	if err != nil {
		return 0, err
	}
	unit := strings.TrimSpace(v[s.index:])
	mul, ok := pxPerUnit[unit]
	if !ok {
		return 0, fmt.Errorf("%w: %q", errRelativeLength, v)
	}
	return n * mul, nil
}

// length reads an optional length attribute, defaulting to 0.
func (n *node) length(name string) (float64, error) {
	v := n.attr(name)
	if v == "" {
		return 0, nil
	}
	l, err := parseLength(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return l, nil
}

// viewport returns the mm per user unit and the transform from user space
// to the scaled drawing.
func viewport(root *node) (float64, Matrix, error) {
	scale := 1 / pxPerMM
	vb := root.attr("viewBox")
	if vb == "" {
		return scale, Identity, nil
	}
	box, err := numbers(vb)
	if err != nil || len(box) != 4 || box[2] <= 0 || box[3] <= 0 {
		return 0, Identity, fmt.Errorf("bad viewBox %q", vb)
	}
	m := Translate(-box[0], -box[1])

	w, errW := parseLength(root.attr("width"))
	h, errH := parseLength(root.attr("height"))
	switch {
	case errW == nil && errH == nil:
		// preserveAspectRatio meet
		scale *= math.Min(w/box[2], h/box[3])
	case errW == nil:
		scale *= w / box[2]
	case errH == nil:
		scale *= h / box[3]
	}
	return scale, m, nil
}

// Parse reads an SVG document. Coordinates stay in user units; the
// returned Drawing's Scale converts them to millimeters.
func Parse(r io.Reader) (geometry.Drawing, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return geometry.Drawing{}, fault.New(fault.MalformedInput, "svg", err)
	}
	if root.XMLName.Local != "svg" {
		return geometry.Drawing{}, fault.Errorf(fault.MalformedInput, "svg", "root element is <"+root.XMLName.Local+">, not <svg>")
	}

	scale, m, err := viewport(&root)
	if err != nil {
		return geometry.Drawing{}, fault.New(fault.MalformedInput, "svg", err)
	}

	b := geometry.NewBuilder(scale)
	if err := walk(b, &root, m); err != nil {
		return geometry.Drawing{}, fault.New(fault.MalformedInput, "svg", err)
	}
	return b.Drawing(), nil
}

func walk(b *geometry.Builder, n *node, m Matrix) error {
	if n.hidden() {
		return nil
	}
	if t := n.attr("transform"); t != "" {
		tm, err := ParseTransform(t)
		if err != nil {
			return fmt.Errorf("%s transform: %w", n, err)
		}
		m = m.Multiply(tm)
	}

	switch n.XMLName.Local {
	case "svg", "g", "a", "switch":
		for _, c := range n.Children {
			if err := walk(b, c, m); err != nil {
				return err
			}
		}
		return nil
	}

	if err := shape(pen{b: b, m: m}, n); err != nil {
		return fmt.Errorf("%s: %w", n, err)
	}
	return nil
}

// shape draws a single element. Anything that is not a basic shape, like
// text or defs, is skipped.
func shape(p pen, n *node) error {
	var v [6]float64
	lengths := func(names ...string) error {
		for i, name := range names {
			l, err := n.length(name)
			if err != nil {
				return err
			}
			v[i] = l
		}
		return nil
	}

	switch n.XMLName.Local {
	case "path":
		return drawPath(n.attr("d"), p)

	case "line":
		if err := lengths("x1", "y1", "x2", "y2"); err != nil {
			return err
		}
		p.moveTo(coord.Point{X: v[0], Y: v[1]})
		p.lineTo(coord.Point{X: v[2], Y: v[3]})

	case "polyline", "polygon":
		pts, err := numbers(n.attr("points"))
		if err != nil {
			return err
		}
		if len(pts)%2 != 0 {
			return errors.New("odd number of coordinates in points")
		}
		if len(pts) < 4 {
			return nil
		}
		p.moveTo(coord.Point{X: pts[0], Y: pts[1]})
		for i := 2; i < len(pts); i += 2 {
			p.lineTo(coord.Point{X: pts[i], Y: pts[i+1]})
		}
		if n.XMLName.Local == "polygon" {
			p.close()
		}

	case "rect":
		if err := lengths("x", "y", "width", "height", "rx", "ry"); err != nil {
			return err
		}
		rect(p, v[0], v[1], v[2], v[3], n.attr("rx") != "", v[4], n.attr("ry") != "", v[5])

	case "circle":
		if err := lengths("cx", "cy", "r"); err != nil {
			return err
		}
		ellipse(p, v[0], v[1], v[2], v[2])

	case "ellipse":
		if err := lengths("cx", "cy", "rx", "ry"); err != nil {
			return err
		}
		ellipse(p, v[0], v[1], v[2], v[3])
	}
	return nil
}

func rect(p pen, x, y, w, h float64, hasRX bool, rx float64, hasRY bool, ry float64) {
	if w <= 0 || h <= 0 {
		return
	}
	switch {
	case hasRX && !hasRY:
		ry = rx
	case hasRY && !hasRX:
		rx = ry
	}
	rx = math.Min(math.Max(rx, 0), w/2)
	ry = math.Min(math.Max(ry, 0), h/2)

	pt := func(px, py float64) coord.Point { return coord.Point{X: px, Y: py} }
	if rx == 0 || ry == 0 {
		p.moveTo(pt(x, y))
		p.lineTo(pt(x+w, y))
		p.lineTo(pt(x+w, y+h))
		p.lineTo(pt(x, y+h))
		p.close()
		return
	}

	p.moveTo(pt(x+rx, y))
	p.lineTo(pt(x+w-rx, y))
	p.arcTo(pt(x+w-rx, y), rx, ry, 0, false, true, pt(x+w, y+ry))
	p.lineTo(pt(x+w, y+h-ry))
	p.arcTo(pt(x+w, y+h-ry), rx, ry, 0, false, true, pt(x+w-rx, y+h))
	p.lineTo(pt(x+rx, y+h))
	p.arcTo(pt(x+rx, y+h), rx, ry, 0, false, true, pt(x, y+h-ry))
	p.lineTo(pt(x, y+ry))
	p.arcTo(pt(x, y+ry), rx, ry, 0, false, true, pt(x+rx, y))
	p.close()
}

func ellipse(p pen, cx, cy, rx, ry float64) {
	if rx <= 0 || ry <= 0 {
		return
	}
	k := kappa
	pt := func(x, y float64) coord.Point { return coord.Point{X: cx + x, Y: cy + y} }
	p.moveTo(pt(rx, 0))
	p.cubicTo(pt(rx, k*ry), pt(k*rx, ry), pt(0, ry))
	p.cubicTo(pt(-k*rx, ry), pt(-rx, k*ry), pt(-rx, 0))
	p.cubicTo(pt(-rx, -k*ry), pt(-k*rx, -ry), pt(0, -ry))
	p.cubicTo(pt(k*rx, -ry), pt(rx, -k*ry), pt(rx, 0))
	p.close()
}
