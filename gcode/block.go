package gcode

import (
	"errors"
	"strings"
)

// Block is one line of G-code.
type Block []Word

func (b Block) Arg(w byte) (bool, float64) {
	for _, g := range b {
		if g.W == w {
			return true, g.Arg
		}
	}
	return false, 0
}

func (b Block) SetArg(w byte, val float64) {
	for i, g := range b {
		if g.W == w {
			b[i].Arg = val
			return
		}
	}
}

// Args returns the words that are not modal commands.
func (b Block) Args() Block {
	res := make(Block, 0, len(b))
	for _, g := range b {
		if g.ModalGroup() == ModalGroupNone {
			res = append(res, g)
		}
	}
	return res
}

func (b Block) Clone() Block {
	c := make(Block, len(b))
	copy(c, b)
	return c
}

func (b Block) HasModal() bool {
	for _, g := range b {
		if g.ModalGroup() != ModalGroupNone {
			return true
		}
	}
	return false
}

var (
	errInvalidWord  = errors.New("invalid word in block")
	errRepeatedWord = errors.New("word was repeated in a block")
	errModalClash   = errors.New("multiple words from same modal group")
)

func (b Block) Validate() error {
	var checkWord [256]bool
	var checkModal [256]bool

	for _, g := range b {
		if !g.IsValid() {
			return errInvalidWord
		}
		if g.W != 'G' && g.W != 'M' && checkWord[g.W] {
			return errRepeatedWord
		}
		checkWord[g.W] = true
		m := g.ModalGroup()
		if m == ModalGroupNone {
			continue
		}
		if checkModal[m] {
			return errModalClash
		}
		checkModal[m] = true
	}

	return nil
}

func (b Block) String() string {
	var s strings.Builder
	for i, w := range b {
		if i > 0 {
			s.WriteByte(' ')
		}
		s.WriteString(w.String())
	}
	return s.String()
}
