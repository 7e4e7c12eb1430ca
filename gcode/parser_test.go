package gcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	blocks, err := Parse(`%
g21 (metric) g90
G0 X1.5 Y-2 ; rapid
N10 G1 X+3Y4 F600

`)
	require.NoError(t, err)
	assert.Equal(t, []Block{
		{{W: 'G', Arg: 21}, {W: 'G', Arg: 90}},
		{{W: 'G', Arg: 0}, {W: 'X', Arg: 1.5}, {W: 'Y', Arg: -2}},
		{{W: 'N', Arg: 10}, {W: 'G', Arg: 1}, {W: 'X', Arg: 3}, {W: 'Y', Arg: 4}, {W: 'F', Arg: 600}},
	}, blocks)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("G1 X1\nG1 X?\n")
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Line)

	_, err = Parse("G1 X1.2.3")
	assert.Error(t, err)
}

func TestBlock_Validate(t *testing.T) {
	assert.NoError(t, Block{{W: 'G', Arg: 21}, {W: 'G', Arg: 1}, {W: 'X', Arg: 1}}.Validate())
	assert.ErrorIs(t, Block{{W: 'X', Arg: 1}, {W: 'X', Arg: 2}}.Validate(), errRepeatedWord)
	assert.ErrorIs(t, Block{{W: 'G', Arg: 0}, {W: 'G', Arg: 1}}.Validate(), errModalClash)
	assert.ErrorIs(t, Block{{W: '?', Arg: 0}}.Validate(), errInvalidWord)
}

func TestWord_String(t *testing.T) {
	assert.Equal(t, "X1.5", Word{W: 'X', Arg: 1.5}.String())
	assert.Equal(t, "G1", Word{W: 'G', Arg: 1}.String())
	assert.Equal(t, "Y0", Word{W: 'Y', Arg: -0.0001}.String())
	assert.Equal(t, "F1234.568", Word{W: 'F', Arg: 1234.5678}.String())
}
