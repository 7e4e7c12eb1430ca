package svg

import (
	"fmt"
	"strconv"
)

// scanner reads the number grammar shared by path data, point lists and
// transform lists.
type scanner struct {
	data  string
	index int
}

func (s *scanner) peek() byte {
	if s.index >= len(s.data) {
		return 0
	}
	return s.data[s.index]
}

func (s *scanner) next() byte {
	c := s.peek()
	if s.index < len(s.data) {
		s.index++
	}
	return c
}

func (s *scanner) done() bool { return s.index >= len(s.data) }

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }

func (s *scanner) whitespace() {
	for isSpace(s.peek()) {
		s.index++
	}
}

// commaWhitespace skips "wsp* comma? wsp*".
func (s *scanner) commaWhitespace() {
	s.whitespace()
	if s.peek() == ',' {
		s.index++
		s.whitespace()
	}
}

// atNumber reports whether a number starts at the current position.
func (s *scanner) atNumber() bool {
	c := s.peek()
	return c == '+' || c == '-' || c == '.' || ('0' <= c && c <= '9')
}

func (s *scanner) digits() string {
	start := s.index
	for c := s.peek(); '0' <= c && c <= '9'; c = s.peek() {
		s.index++
	}
	return s.data[start:s.index]
}

// number parses "sign? (digits | digits? '.' digits) exponent?".
func (s *scanner) number() (float64, error) {
	start := s.index
	if c := s.peek(); c == '+' || c == '-' {
		s.index++
	}
	intPart := s.digits()
	fracPart := ""
	if s.peek() == '.' {
		s.index++
		fracPart = s.digits()
		if intPart == "" && fracPart == "" {
			return 0, fmt.Errorf("expected a number at %d, got only a \".\"", start)
		}
	} else if intPart == "" {
		return 0, fmt.Errorf("expected a number at %d, got %q", start, string(s.peek()))
	}

	if c := s.peek(); c == 'e' || c == 'E' {
		save := s.index
		s.index++
		if c := s.peek(); c == '+' || c == '-' {
			s.index++
		}
		if s.digits() == "" {
			// "e" starts a unit like "em", not an exponent
			s.index = save
		}
	}

	return strconv.ParseFloat(s.data[start:s.index], 64)
}

// flag parses a single '0' or '1', which need no separator.
func (s *scanner) flag() (bool, error) {
	switch c := s.next(); c {
	case '0':
		return false, nil
	case '1':
		return true, nil
	default:
		return false, fmt.Errorf("expected flag at %d, got %q", s.index-1, string(c))
	}
}

// numbers parses a comma or space separated list, as in a points
// attribute.
func numbers(data string) ([]float64, error) {
	s := &scanner{data: data}
	var res []float64
	s.whitespace()
	for !s.done() {
		n, err := s.number()
		if err != nil {
			return nil, err
		}
		res = append(res, n)
		s.commaWhitespace()
	}
	return res, nil
}
