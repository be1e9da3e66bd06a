package hexdump

import (
	"strings"
	"testing"

	"fxrpatch/process/memory_map"
)

func TestDumpLines(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i + 0x41)
	}
	options := DefaultOptions()
	options.StartAddress = 0x1400010a0
	out := Dump(data, options)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}
	for i, want := range []string{"00000001400010a0", "00000001400010b0", "00000001400010c0"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want address %s", i, lines[i], want)
		}
	}
	if !strings.Contains(lines[0], "41") || !strings.Contains(lines[0], "A") {
		t.Errorf("line 0 = %q, want hex and ascii of 'A'", lines[0])
	}
}

func TestHighlightsChangeOutput(t *testing.T) {
	data := []byte{0xe8, 0xcd, 0xbb, 0xfb, 0xff, 0x90}
	plain := DumpWithHighlights(data, 0)
	marked := DumpWithHighlights(data, 0, Span{Start: 1, End: 5})
	if plain == marked {
		t.Fatal("highlighted dump is identical to the plain one")
	}
	if strings.Count(marked, "\n") != 1 {
		t.Fatalf("dump = %q", marked)
	}
}

func TestPointerPreview(t *testing.T) {
	data := []byte{
		0x10, 0x30, 0x00, 0x43, 0x01, 0x00, 0x00, 0x00,
		0xef, 0xbe, 0xad, 0xde, 0x00, 0x00, 0x00, 0x00,
	}
	options := DefaultOptions()
	options.MemoryMap = []memory_map.MemoryMapItem{{Address: 0x143000000, Size: 0x10000, Perms: "rw-"}}
	out := Dump(data, options)
	if !strings.Contains(out, "0x143003010") {
		t.Errorf("dump = %q, want pointer preview of 0x143003010", out)
	}
	if strings.Contains(out, "0xdeadbeef") {
		t.Errorf("dump = %q, unmapped value previewed as pointer", out)
	}
}
