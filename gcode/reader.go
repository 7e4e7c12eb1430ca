package gcode

import (
	"io"
	"strings"
)

// Reader yields blocks until io.EOF.
type Reader interface {
	Read() (Block, error)
}

// BlocksReader reads from a fixed list.
type BlocksReader struct {
	Blocks []Block
	n      int
}

func (b *BlocksReader) Read() (Block, error) {
	if b.n == len(b.Blocks) {
		return nil, io.EOF
	}

	b.n++
	return b.Blocks[b.n-1], nil
}

// ReadAll collects blocks from r until io.EOF.
func ReadAll(r Reader) ([]Block, error) {
	var res []Block
	for {
		b, err := r.Read()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res = append(res, b)
	}
}

// Parse reads every block in data.
func Parse(data string) ([]Block, error) {
	return ReadAll(NewParser(strings.NewReader(data)))
}
