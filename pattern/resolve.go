package pattern

import (
	"encoding/binary"

	"fxrpatch/protocol"
)

// DisplacementSize is the width of a rel32 operand
const DisplacementSize = 4

// Displacement decodes a capture as a signed little endian rel32
func Displacement(c Capture) (int32, error) {
	if len(c.Bytes) != DisplacementSize {
		return 0, protocol.Errorf(protocol.KindPatternSyntax, "capture at 0x%x is %d bytes, a displacement needs %d", c.Location, len(c.Bytes), DisplacementSize)
	}
	return int32(binary.LittleEndian.Uint32(c.Bytes)), nil
}

// ResolveRelative returns instructionEnd plus the capture's displacement.
// instructionEnd is idiom specific: always the address the CPU adds the
// displacement to, which is not necessarily the end of the capture.
func ResolveRelative(c Capture, instructionEnd uint64) (uint64, error) {
	d, err := Displacement(c)
	if err != nil {
		return 0, err
	}
	return uint64(int64(instructionEnd) + int64(d)), nil
}

// ResolveCallTarget resolves a capture that is the rel32 of a CALL or JMP,
// where the displacement field ends the instruction
func ResolveCallTarget(c Capture) (uint64, error) {
	return ResolveRelative(c, c.Location+DisplacementSize)
}
