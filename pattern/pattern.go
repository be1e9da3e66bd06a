// Package pattern compiles bit level instruction patterns and scans byte
// regions for them.
//
// A pattern is a whitespace separated list of 8 bit groups. Each bit is 0, 1
// or a '.' wildcard. Square brackets around one or more groups mark a
// capture whose raw bytes are returned with every match:
//
//	01001... 10001011 00...101 [........ ........ ........ ........]
package pattern

import (
	"fmt"
	"strings"

	"fxrpatch/protocol"
)

// Pattern is a compiled, fixed length matcher
type Pattern struct {
	source   string
	value    []byte
	mask     []byte
	captures []span

	// anchor is the index of the first fully fixed byte, -1 if none
	anchor int
}

type span struct {
	start int
	end   int
}

// Compile parses a pattern description
func Compile(spec string) (*Pattern, error) {
	p := &Pattern{source: spec, anchor: -1}

	var (
		bits      int
		value     byte
		mask      byte
		open      = -1
		groupText strings.Builder
	)

	flush := func() error {
		if bits == 0 {
			return nil
		}
		if bits != 8 {
			return protocol.Errorf(protocol.KindPatternSyntax, "bit group %q has %d bits, want 8", groupText.String(), bits)
		}
		p.value = append(p.value, value)
		p.mask = append(p.mask, mask)
		bits, value, mask = 0, 0, 0
		groupText.Reset()
		return nil
	}

	for i, r := range spec {
		switch r {
		case '0', '1', '.':
			if bits == 8 {
				return nil, protocol.Errorf(protocol.KindPatternSyntax, "bit group %q at offset %d is longer than 8 bits", groupText.String()+string(r), i)
			}
			value <<= 1
			mask <<= 1
			if r != '.' {
				mask |= 1
				if r == '1' {
					value |= 1
				}
			}
			bits++
			groupText.WriteRune(r)
		case ' ', '\t', '\n', '\r':
			if err := flush(); err != nil {
				return nil, err
			}
		case '[':
			if err := flush(); err != nil {
				return nil, err
			}
			if open >= 0 {
				return nil, protocol.Errorf(protocol.KindPatternSyntax, "nested capture at offset %d", i)
			}
			open = len(p.value)
		case ']':
			if err := flush(); err != nil {
				return nil, err
			}
			if open < 0 {
				return nil, protocol.Errorf(protocol.KindPatternSyntax, "unbalanced ']' at offset %d", i)
			}
			if open == len(p.value) {
				return nil, protocol.Errorf(protocol.KindPatternSyntax, "empty capture at offset %d", i)
			}
			p.captures = append(p.captures, span{start: open, end: len(p.value)})
			open = -1
		default:
			return nil, protocol.Errorf(protocol.KindPatternSyntax, "unexpected character %q at offset %d", r, i)
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	if open >= 0 {
		return nil, protocol.Errorf(protocol.KindPatternSyntax, "unterminated capture")
	}
	if len(p.value) == 0 {
		return nil, protocol.Errorf(protocol.KindPatternSyntax, "empty pattern")
	}

	for i, m := range p.mask {
		if m == 0xFF {
			p.anchor = i
			break
		}
	}

	return p, nil
}

// MustCompile is Compile for built in patterns, it panics on syntax errors
func MustCompile(spec string) *Pattern {
	p, err := Compile(spec)
	if err != nil {
		panic(fmt.Sprintf("pattern: %v", err))
	}
	return p
}

// Len is the number of bytes a match covers
func (p *Pattern) Len() int {
	return len(p.value)
}

// NumCaptures is the number of capture markers in the source
func (p *Pattern) NumCaptures() int {
	return len(p.captures)
}

// Value and Mask expose the compiled bytes, a set mask bit means the
// corresponding value bit must match
func (p *Pattern) Value() []byte { return append([]byte(nil), p.value...) }
func (p *Pattern) Mask() []byte  { return append([]byte(nil), p.mask...) }

func (p *Pattern) String() string {
	return p.source
}

// matchAt assumes region holds at least Len bytes from offset
func (p *Pattern) matchAt(region []byte, offset int) bool {
	window := region[offset : offset+len(p.value)]
	for j, m := range p.mask {
		if window[j]&m != p.value[j] {
			return false
		}
	}
	return true
}
