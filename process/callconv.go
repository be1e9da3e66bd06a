package process

import "fmt"

// CallingConvention selects the ABI used for a foreign call
type CallingConvention int

const (
	// Win64 is the Microsoft x64 convention: RCX, RDX, R8, R9 then stack, result in RAX
	Win64 CallingConvention = iota
)

func (c CallingConvention) String() string {
	switch c {
	case Win64:
		return "win64"
	default:
		return fmt.Sprintf("callconv(%d)", int(c))
	}
}
