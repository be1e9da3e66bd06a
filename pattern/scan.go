package pattern

import (
	"bytes"
	"iter"
)

// Capture is the raw bytes matched by one capture marker
type Capture struct {
	Location uint64
	Bytes    []byte
}

// Match is one occurrence of a pattern. Locations are offsets into the
// scanned region until Rebase turns them into absolute addresses.
type Match struct {
	Location uint64
	Captures []Capture
}

// Rebase shifts the match and its captures by base
func (m Match) Rebase(base uint64) Match {
	out := Match{Location: base + m.Location, Captures: make([]Capture, len(m.Captures))}
	for i, c := range m.Captures {
		out.Captures[i] = Capture{Location: base + c.Location, Bytes: c.Bytes}
	}
	return out
}

// ScanFirst returns the first match scanning forward from offset 0
func ScanFirst(region []byte, p *Pattern) (Match, bool) {
	for m := range ScanAll(region, p) {
		return m, true
	}
	return Match{}, false
}

// ScanAll yields every non overlapping match in ascending order. After a
// match at o the scan resumes at o+Len.
func ScanAll(region []byte, p *Pattern) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		n := p.Len()
		for offset := 0; offset+n <= len(region); {
			next, ok := p.nextCandidate(region, offset)
			if !ok {
				return
			}
			offset = next
			if !p.matchAt(region, offset) {
				offset++
				continue
			}
			if !yield(p.build(region, offset)) {
				return
			}
			offset += n
		}
	}
}

// Count is the number of matches ScanAll would yield
func Count(region []byte, p *Pattern) int {
	count := 0
	for range ScanAll(region, p) {
		count++
	}
	return count
}

// nextCandidate skips ahead to the next offset whose anchor byte fits
func (p *Pattern) nextCandidate(region []byte, offset int) (int, bool) {
	last := len(region) - p.Len()
	if offset > last {
		return 0, false
	}
	if p.anchor < 0 {
		return offset, true
	}
	idx := bytes.IndexByte(region[offset+p.anchor:last+p.anchor+1], p.value[p.anchor])
	if idx < 0 {
		return 0, false
	}
	return offset + idx, true
}

func (p *Pattern) build(region []byte, offset int) Match {
	m := Match{Location: uint64(offset), Captures: make([]Capture, len(p.captures))}
	for i, s := range p.captures {
		raw := make([]byte, s.end-s.start)
		copy(raw, region[offset+s.start:offset+s.end])
		m.Captures[i] = Capture{Location: uint64(offset + s.start), Bytes: raw}
	}
	return m
}
