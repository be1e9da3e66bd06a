package process_blob

import (
	"errors"
	"testing"

	"fxrpatch/process"
)

func newTestImage(t *testing.T) *Image {
	t.Helper()
	img := NewImage()
	err := img.AddModule("game.exe", 0x140000000, map[string]process.SectionRange{
		".text": {Start: 0x140001000, End: 0x140002000},
		".data": {Start: 0x140003000, End: 0x140004000},
	})
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	return img
}

func TestReadWriteTyped(t *testing.T) {
	img := newTestImage(t)

	if err := img.WritePOINTER(0x140003010, 0x140003100); err != nil {
		t.Fatalf("WritePOINTER: %v", err)
	}
	if err := img.WriteUINT32(0x140003100, 0xdeadbeef); err != nil {
		t.Fatalf("WriteUINT32: %v", err)
	}

	ptr, err := img.ReadPOINTER(0x140003010)
	if err != nil || ptr != 0x140003100 {
		t.Fatalf("ReadPOINTER = 0x%x, %v", ptr, err)
	}
	v, err := img.ReadUINT32(ptr)
	if err != nil || v != 0xdeadbeef {
		t.Fatalf("ReadUINT32 = 0x%x, %v", v, err)
	}
	i, err := img.ReadINT32(ptr)
	if err != nil || i != int32(-559038737) {
		t.Fatalf("ReadINT32 = %d, %v", i, err)
	}
	if img.Writes() != 2 {
		t.Fatalf("Writes = %d, want 2", img.Writes())
	}
}

func TestReadUnmapped(t *testing.T) {
	img := newTestImage(t)

	if _, err := img.ReadUINT64(0x150000000); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Fatalf("unmapped read error = %v", err)
	}
	// straddles the end of .data
	if _, err := img.ReadUINT64(0x140003ffc); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Fatalf("straddling read error = %v", err)
	}
	if _, err := img.ReadPOINTER(0); !errors.Is(err, process.ErrInvalidPointer) {
		t.Fatalf("null read error = %v", err)
	}
}

func TestReadNTS(t *testing.T) {
	img := newTestImage(t)
	img.WriteMemory(0x140003200, []byte("CSSfx\x00junk"))
	img.WriteMemory(0x140003ffd, []byte("abc"))

	s, err := img.ReadNTS(0x140003200, 64)
	if err != nil || s != "CSSfx" {
		t.Fatalf("ReadNTS = %q, %v", s, err)
	}
	s, err = img.ReadNTS(0x140003ffd, 64)
	if err != nil || s != "abc" {
		t.Fatalf("ReadNTS at region end = %q, %v", s, err)
	}
}

func TestModulesAndCalls(t *testing.T) {
	img := newTestImage(t)

	r, err := img.ModuleSection("game.exe", ".text")
	if err != nil || r.Start != 0x140001000 || r.Size() != 0x1000 {
		t.Fatalf("ModuleSection = %v, %v", r, err)
	}
	if _, err := img.ModuleSection("game.exe", ".rdata"); !errors.Is(err, process.ErrSectionNotFound) {
		t.Fatalf("missing section error = %v", err)
	}
	if _, err := img.ModuleBase("other.exe"); !errors.Is(err, process.ErrModuleNotFound) {
		t.Fatalf("missing module error = %v", err)
	}

	img.RegisterFunction(0x140001500, func(args ...uintptr) uintptr {
		return args[0] + args[1]
	})
	got, err := img.Call(process.Win64, 0x140001500, 2, 3)
	if err != nil || got != 5 {
		t.Fatalf("Call = %d, %v", got, err)
	}
	if _, err := img.Call(process.Win64, 0x140001600); err == nil {
		t.Fatalf("expected error calling an unregistered address")
	}
}

func TestAllocAlignsAndSeparates(t *testing.T) {
	img := NewImage()
	a, err := img.Alloc(20, 16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b, err := img.Alloc(20, 16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if a%16 != 0 || b%16 != 0 || a == b {
		t.Fatalf("Alloc returned 0x%x and 0x%x", a, b)
	}
	if err := img.WriteMemory(a, make([]byte, 20)); err != nil {
		t.Fatalf("write to block: %v", err)
	}
	if err := img.WriteMemory(a, make([]byte, 21)); err == nil {
		t.Fatalf("write past the block should fail")
	}
}

func TestMapRejectsOverlap(t *testing.T) {
	img := newTestImage(t)
	if _, err := img.Map(0x140001800, 0x100, "x", "rw-"); err == nil {
		t.Fatalf("expected overlap error")
	}
}

func TestSaveLoad(t *testing.T) {
	img := newTestImage(t)
	img.SetProductName("ELDEN RING™")
	img.WriteMemory(0x140001000, []byte{0x48, 0x8B, 0x05})

	dir := t.TempDir()
	if err := img.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	name, err := loaded.ProductName()
	if err != nil || name != "ELDEN RING™" {
		t.Fatalf("ProductName = %q, %v", name, err)
	}
	data, err := loaded.ReadMemory(0x140001000, 3)
	if err != nil || string(data) != string([]byte{0x48, 0x8B, 0x05}) {
		t.Fatalf("ReadMemory = %x, %v", data, err)
	}
	r, err := loaded.ModuleSection("game.exe", ".data")
	if err != nil || r.Start != 0x140003000 {
		t.Fatalf("ModuleSection = %v, %v", r, err)
	}
}
