package game

import "fxrpatch/pattern"

// Idioms are the code fingerprints the FXR patcher needs from one game
type Idioms struct {
	// GetAllocator ends in a call to the FXR allocator accessor, captured as rel32
	GetAllocator *pattern.Pattern
	// PatchOffsets matches the start of the function that turns a
	// definition's file offsets into pointers
	PatchOffsets *pattern.Pattern
	// PrepareFxr matches the start of the function that readies a definition for use
	PrepareFxr *pattern.Pattern
}

// Elden Ring 1.12:
//
//	48 8b 44 24 28    MOV   RAX,qword ptr [RSP + 0x28]
//	8b 40 04          MOV   EAX,dword ptr [RAX + 0x4]
//	c1 e8 10          SHR   EAX,0x10
//	83 f8 05          CMP   EAX,0x5
//	74 07             JZ    +7
//	33 c0             XOR   EAX,EAX
//	e9 59 01 00 00    JMP   epilogue
//	e8 cd bb fb ff    CALL  get_fxr_allocator
const eldenRingGetAllocator = "01001... 10001011 01000100 ..100100 00101000 " +
	"10001011 01000000 00000100 " +
	"11000001 11101000 00010000 " +
	"10000011 11111000 00000101 " +
	"01110100 ........ " +
	"00110011 11000000 " +
	"11101001 ........ ........ ........ ........ " +
	"11101000 [........ ........ ........ ........]"

// Prologue of patch_fxr_offsets(fxr, fxr, fxr): three spills, a 0x100 frame
// filled with 0xcc, then both RCX and RAX reloaded from the first spill.
const eldenRingPatchOffsets = "01001... 10001001 01000100 ..100100 00011000 " +
	"01001... 10001001 01010100 ..100100 00010000 " +
	"01001... 10001001 01001100 ..100100 00001000 " +
	"01010111 " +
	"01001... 10000001 11101100 00000000 00000001 00000000 00000000 " +
	"01001... 10001011 11111100 " +
	"10111001 01000000 00000000 00000000 00000000 " +
	"10111000 11001100 11001100 11001100 11001100 " +
	"11110011 10101011 " +
	"01001... 10001011 10001100 ..100100 00010000 00000001 00000000 00000000 " +
	"01001... 10001011 10000100 ..100100 00010000 00000001 00000000 00000000"

// Prologue of prepare_fxr(fxr): one spill and a 0x130 frame filled with 0xcc
const eldenRingPrepareFxr = "01001... 10001001 01001100 ..100100 00001000 " +
	"01010111 " +
	"01001... 10000001 11101100 00110000 00000001 00000000 00000000 " +
	"01001... 10001011 11111100 " +
	"10111001 01001100 00000000 00000000 00000000 " +
	"10111000 11001100 11001100 11001100 11001100 " +
	"11110011 10101011 " +
	"01001... 10001011 10001100 ..100100 01000000 00000001 00000000 00000000 " +
	"01001... 10001011 10000100 ..100100 01000000 00000001 00000000 00000000"

var eldenRingIdioms = Idioms{
	GetAllocator: pattern.MustCompile(eldenRingGetAllocator),
	PatchOffsets: pattern.MustCompile(eldenRingPatchOffsets),
	PrepareFxr:   pattern.MustCompile(eldenRingPrepareFxr),
}

// Named lists every idiom with a stable label, for diagnostics
func (i Idioms) Named() []NamedPattern {
	return []NamedPattern{
		{Name: "get_allocator", Pattern: i.GetAllocator},
		{Name: "patch_fxr_offsets", Pattern: i.PatchOffsets},
		{Name: "prepare_fxr", Pattern: i.PrepareFxr},
	}
}

type NamedPattern struct {
	Name    string
	Pattern *pattern.Pattern
}
