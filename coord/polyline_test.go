package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPolyline(t *testing.T) {
	l, ok := NewPolyline([]Point{{X: 0}, {X: 0}, {X: 1}, {X: 1}, {X: 1, Y: 1}})
	assert.True(t, ok)
	assert.Equal(t, Polyline{{X: 0}, {X: 1}, {X: 1, Y: 1}}, l)

	_, ok = NewPolyline([]Point{{X: 2, Y: 2}, {X: 2, Y: 2}})
	assert.False(t, ok)

	_, ok = NewPolyline(nil)
	assert.False(t, ok)
}

func TestPolyline_Reverse(t *testing.T) {
	l := Polyline{{X: 0}, {X: 1}, {X: 2}}
	r := l.Reverse()
	assert.Equal(t, Polyline{{X: 2}, {X: 1}, {X: 0}}, r)
	assert.Equal(t, Point{X: 0}, l.Start(), "original untouched")
}

func TestPolyline_Length(t *testing.T) {
	l := Polyline{{X: 0}, {X: 3}, {X: 3, Y: 4}}
	assert.Equal(t, 7.0, l.Length())
}
