package process

import (
	"fmt"
)

// PointerSize is the width of a pointer in the target process
const PointerSize = 8

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// Add offsets an address by a signed displacement, wrapping like the hardware does
func (pma ProcessMemoryAddress) Add(displacement int64) ProcessMemoryAddress {
	return ProcessMemoryAddress(int64(pma) + displacement)
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// SectionRange is the half open [Start, End) interval a module section occupies
type SectionRange struct {
	Start ProcessMemoryAddress
	End   ProcessMemoryAddress
}

// Contains reports whether addr lies inside the section
func (r SectionRange) Contains(addr ProcessMemoryAddress) bool {
	return addr >= r.Start && addr < r.End
}

// Size returns the length of the section in bytes
func (r SectionRange) Size() ProcessMemorySize {
	if r.End <= r.Start {
		return 0
	}
	return ProcessMemorySize(r.End - r.Start)
}

func (r SectionRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.ToString(), r.End.ToString())
}
