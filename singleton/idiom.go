package singleton

import (
	"iter"

	"fxrpatch/pattern"
	"fxrpatch/process"
)

// NullCheckPattern is the runtime's lazily checked global lookup before it
// asks a type's reflection metadata for its name:
//
//	 0 MOV  REG, [rip+static]
//	 7 TEST REG, REG
//	10 JNZ  short
//	12 LEA  RCX, [rip+metadata]
//	19 CALL get_singleton_name
const NullCheckPattern = "01001... 10001011 00...101 [........ ........ ........ ........] " +
	"01001... 10000101 11...... " +
	"01110101 ........ " +
	"01001... 10001101 00001101 [........ ........ ........ ........] " +
	"11101000 [........ ........ ........ ........]"

// where each displacement is relative to, counted from the match start
const (
	staticEnd   = 7
	metadataEnd = 19
	accessorEnd = 24
)

var nullCheck = pattern.MustCompile(NullCheckPattern)

// Candidate is one null check whose three targets passed the section checks
type Candidate struct {
	Location     process.ProcessMemoryAddress
	Static       process.ProcessMemoryAddress
	Metadata     process.ProcessMemoryAddress
	NameAccessor process.ProcessMemoryAddress
}

// Candidates scans a copy of .text and yields the plausible null checks.
// The static slot and the metadata must land in .data and the accessor in
// .text, anything else is a false positive of the pattern.
func Candidates(text []byte, textRange, dataRange process.SectionRange) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for m := range pattern.ScanAll(text, nullCheck) {
			c, ok := resolveCandidate(m.Rebase(uint64(textRange.Start)), textRange, dataRange)
			if !ok {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

func resolveCandidate(m pattern.Match, textRange, dataRange process.SectionRange) (Candidate, bool) {
	static, err := pattern.ResolveRelative(m.Captures[0], m.Location+staticEnd)
	if err != nil || !dataRange.Contains(process.ProcessMemoryAddress(static)) {
		return Candidate{}, false
	}
	metadata, err := pattern.ResolveRelative(m.Captures[1], m.Location+metadataEnd)
	if err != nil || !dataRange.Contains(process.ProcessMemoryAddress(metadata)) {
		return Candidate{}, false
	}
	accessor, err := pattern.ResolveRelative(m.Captures[2], m.Location+accessorEnd)
	if err != nil || !textRange.Contains(process.ProcessMemoryAddress(accessor)) {
		return Candidate{}, false
	}
	return Candidate{
		Location:     process.ProcessMemoryAddress(m.Location),
		Static:       process.ProcessMemoryAddress(static),
		Metadata:     process.ProcessMemoryAddress(metadata),
		NameAccessor: process.ProcessMemoryAddress(accessor),
	}, true
}
