// Package hexdump renders coloured hex dumps of code and data, with byte
// spans highlighted and pointer previews checked against a memory map.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"fxrpatch/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Span is a half open byte range [Start, End) relative to the dumped data
type Span struct {
	Start int
	End   int
}

func (s Span) contains(i int) bool {
	return i >= s.Start && i < s.End
}

// Options defines options for customizing the hexdump output
type Options struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// StartAddress is printed for the first byte
	StartAddress uint64

	ShowASCII bool

	OffsetColor       coloransi.ColorCode
	HexColor          coloransi.ColorCode
	ZeroColor         coloransi.ColorCode
	NonPrintableColor coloransi.ColorCode

	// Highlights are drawn in HighlightColor over HighlightBackground
	Highlights          []Span
	HighlightColor      coloransi.ColorCode
	HighlightBackground coloransi.ColorCode

	// MemoryMap enables the pointer preview for the first two qwords of each line
	MemoryMap []memory_map.MemoryMapItem
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() Options {
	return Options{
		BytesPerLine:        16,
		ShowASCII:           true,
		OffsetColor:         coloransi.Cyan,
		HexColor:            coloransi.Green,
		ZeroColor:           coloransi.BrightBlack,
		NonPrintableColor:   coloransi.Red,
		HighlightColor:      coloransi.Yellow,
		HighlightBackground: coloransi.Black,
	}
}

// Dump creates a hex dump of the given data with specified options
func Dump(data []byte, options Options) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes one line per BytesPerLine bytes:
//
//	00000001400010a0  48 8b 05 .. | .. 0f  H.......  0x143000010
func DumpToWriter(w io.Writer, data []byte, options Options) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		end := min(offset+options.BytesPerLine, len(data))
		formatLine(w, data, offset, end, options)
	}
}

func formatLine(w io.Writer, data []byte, start, end int, options Options) {
	fmt.Fprint(w, coloransi.Foreground(options.OffsetColor, fmt.Sprintf("%016x", options.StartAddress+uint64(start))), "  ")

	half := start + options.BytesPerLine/2
	for i := start; i < start+options.BytesPerLine; i++ {
		if i == half && options.BytesPerLine >= 8 {
			fmt.Fprint(w, "| ")
		}
		if i >= end {
			fmt.Fprint(w, "   ")
			continue
		}
		fmt.Fprint(w, colorByte(fmt.Sprintf("%02x", data[i]), data[i], i, options), " ")
	}

	if options.ShowASCII {
		fmt.Fprint(w, " ")
		for i := start; i < end; i++ {
			b := data[i]
			ch := "."
			if b >= 0x20 && b < 0x7f {
				ch = string(rune(b))
			}
			fmt.Fprint(w, colorByte(ch, b, i, options))
		}
	}

	if options.MemoryMap != nil {
		var pointers []string
		for q := start; q+8 <= end && q < start+16; q += 8 {
			ptr := binary.LittleEndian.Uint64(data[q:])
			if memory_map.Find(ptr, options.MemoryMap) != nil {
				pointers = append(pointers, coloransi.Foreground(coloransi.Yellow, fmt.Sprintf("0x%x", ptr)))
			}
		}
		if len(pointers) > 0 {
			fmt.Fprint(w, "  ", strings.Join(pointers, " "))
		}
	}

	fmt.Fprintln(w)
}

func colorByte(text string, b byte, i int, options Options) string {
	for _, s := range options.Highlights {
		if s.contains(i) {
			return coloransi.Color(options.HighlightColor, options.HighlightBackground, text)
		}
	}
	switch {
	case b == 0:
		return coloransi.Foreground(options.ZeroColor, text)
	case text == "." && (b < 0x20 || b >= 0x7f):
		return coloransi.Foreground(options.NonPrintableColor, text)
	default:
		return coloransi.Foreground(options.HexColor, text)
	}
}

// DumpWithHighlights dumps data located at address with spans highlighted
func DumpWithHighlights(data []byte, address uint64, spans ...Span) string {
	options := DefaultOptions()
	options.StartAddress = address
	options.Highlights = spans
	return Dump(data, options)
}
