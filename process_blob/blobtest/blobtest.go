// Package blobtest builds fabricated game images for tests: a module with
// .text and .data sections, code idioms placed at known addresses, and Go
// functions standing in for the game's own routines.
package blobtest

import (
	"encoding/binary"
	"testing"

	"fxrpatch/pattern"
	"fxrpatch/process"
	"fxrpatch/process_blob"
)

const (
	Module    = "eldenring.exe"
	ImageBase = process.ProcessMemoryAddress(0x140000000)
	TextStart = process.ProcessMemoryAddress(0x140001000)
	TextEnd   = process.ProcessMemoryAddress(0x140041000)
	DataStart = process.ProcessMemoryAddress(0x143000000)
	DataEnd   = process.ProcessMemoryAddress(0x143040000)
)

// Game is an Image laid out like a loaded game executable
type Game struct {
	*process_blob.Image

	Text process.SectionRange
	Data process.SectionRange

	// NameAccessor is the registered char* get_singleton_name(metadata)
	NameAccessor process.ProcessMemoryAddress

	t        testing.TB
	textNext process.ProcessMemoryAddress
	dataNext process.ProcessMemoryAddress
	names    map[uintptr]uintptr
}

// NewGame maps an empty game module and registers the name accessor
func NewGame(t testing.TB, productName string) *Game {
	t.Helper()

	g := &Game{
		Image:    process_blob.NewImage(),
		Text:     process.SectionRange{Start: TextStart, End: TextEnd},
		Data:     process.SectionRange{Start: DataStart, End: DataEnd},
		t:        t,
		textNext: TextStart,
		dataNext: DataStart,
		names:    make(map[uintptr]uintptr),
	}
	err := g.AddModule(Module, ImageBase, map[string]process.SectionRange{
		".text": g.Text,
		".data": g.Data,
	})
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if productName != "" {
		g.SetProductName(productName)
	}

	g.NameAccessor = g.Emit(1, func(process.ProcessMemoryAddress) []byte { return []byte{0xC3} })
	g.RegisterFunction(g.NameAccessor, func(args ...uintptr) uintptr {
		return g.names[args[0]]
	})
	return g
}

// Emit places code in .text at the next 16 byte boundary. build receives the
// final address so it can encode relative operands.
func (g *Game) Emit(size int, build func(at process.ProcessMemoryAddress) []byte) process.ProcessMemoryAddress {
	g.t.Helper()
	at := g.textNext
	code := build(at)
	if len(code) != size {
		g.t.Fatalf("code at %s is %d bytes, reserved %d", at.ToString(), len(code), size)
	}
	if err := g.WriteMemory(at, code); err != nil {
		g.t.Fatalf("writing code at %s: %v", at.ToString(), err)
	}
	g.textNext = (at + process.ProcessMemoryAddress(size) + 0x1F) &^ 0xF
	return at
}

// Alloc reserves zeroed, 16 byte aligned space in .data
func (g *Game) Alloc(size int) process.ProcessMemoryAddress {
	g.t.Helper()
	at := g.dataNext
	g.dataNext = (at + process.ProcessMemoryAddress(size) + 0xF) &^ 0xF
	if g.dataNext > g.Data.End {
		g.t.Fatalf(".data exhausted")
	}
	return at
}

// Bytes stores raw bytes in .data
func (g *Game) Bytes(b []byte) process.ProcessMemoryAddress {
	g.t.Helper()
	at := g.Alloc(len(b))
	if err := g.WriteMemory(at, b); err != nil {
		g.t.Fatalf("writing data at %s: %v", at.ToString(), err)
	}
	return at
}

func (g *Game) Pointer(at, value process.ProcessMemoryAddress) {
	g.t.Helper()
	if err := g.WritePOINTER(at, value); err != nil {
		g.t.Fatalf("WritePOINTER %s: %v", at.ToString(), err)
	}
}

func (g *Game) Uint32(at process.ProcessMemoryAddress, value uint32) {
	g.t.Helper()
	if err := g.WriteUINT32(at, value); err != nil {
		g.t.Fatalf("WriteUINT32 %s: %v", at.ToString(), err)
	}
}

// Singleton emits a null check for a type whose accessor returns name, and
// returns the static slot holding the (initially null) instance pointer
func (g *Game) Singleton(name string) process.ProcessMemoryAddress {
	g.t.Helper()
	return g.SingletonRawName(append([]byte(name), 0))
}

// SingletonRawName is Singleton with the accessor's bytes given verbatim
func (g *Game) SingletonRawName(name []byte) process.ProcessMemoryAddress {
	g.t.Helper()
	metadata := g.Alloc(0x10)
	g.names[uintptr(metadata)] = uintptr(g.Bytes(name))

	slot := g.Alloc(process.PointerSize)
	g.Emit(NullCheckSize, func(at process.ProcessMemoryAddress) []byte {
		return NullCheck(at, slot, metadata, g.NameAccessor)
	})
	return slot
}

const NullCheckSize = 24

// NullCheck encodes
//
//	MOV RAX,[rip+static]; TEST RAX,RAX; JNZ +0x10; LEA RCX,[rip+metadata]; CALL accessor
func NullCheck(at, static, metadata, accessor process.ProcessMemoryAddress) []byte {
	code := make([]byte, 0, NullCheckSize)
	code = append(code, 0x48, 0x8B, 0x05)
	code = append(code, Rel32(at+7, static)...)
	code = append(code, 0x48, 0x85, 0xC0)
	code = append(code, 0x75, 0x10)
	code = append(code, 0x48, 0x8D, 0x0D)
	code = append(code, Rel32(at+19, metadata)...)
	code = append(code, 0xE8)
	code = append(code, Rel32(at+24, accessor)...)
	return code
}

// Rel32 encodes the displacement from the end of an instruction to target
func Rel32(end, target process.ProcessMemoryAddress) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(int32(int64(target)-int64(end))))
	return b
}

// Synthesize returns bytes that match p, wildcard bits cleared and each
// capture span filled with the matching entry of captures
func Synthesize(p *pattern.Pattern, captures ...[]byte) []byte {
	code := p.Value()
	m, ok := pattern.ScanFirst(code, p)
	if !ok {
		panic("blobtest: pattern does not match its own value bytes")
	}
	for i, c := range m.Captures {
		if i < len(captures) {
			copy(code[c.Location:c.Location+uint64(len(c.Bytes))], captures[i])
		}
	}
	return code
}
