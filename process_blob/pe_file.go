package process_blob

import (
	"fmt"
	"path/filepath"

	"fxrpatch/process"

	"github.com/Binject/debug/pe"
)

// LoadPE maps an executable from disk the way the loader would at its
// preferred base, one region per section, and registers it as a module
// named after the file
func LoadPE(path string) (*Image, string, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	oh, ok := f.OptionalHeader.(*pe.OptionalHeader64)
	if !ok {
		return nil, "", fmt.Errorf("%s is not a 64 bit image", path)
	}
	base := process.ProcessMemoryAddress(oh.ImageBase)

	sections := make(map[string]process.SectionRange)
	contents := make(map[string][]byte)
	for _, s := range f.Sections {
		size := s.VirtualSize
		if size < s.Size {
			size = s.Size
		}
		if size == 0 {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read section %s: %w", s.Name, err)
		}
		start := base + process.ProcessMemoryAddress(s.VirtualAddress)
		sections[s.Name] = process.SectionRange{Start: start, End: start + process.ProcessMemoryAddress(size)}
		contents[s.Name] = data
	}

	module := filepath.Base(path)
	img := NewImage()
	if err := img.AddModule(module, base, sections); err != nil {
		return nil, "", err
	}
	for name, data := range contents {
		r := sections[name]
		if len(data) > int(r.Size()) {
			data = data[:r.Size()]
		}
		if err := img.WriteMemory(r.Start, data); err != nil {
			return nil, "", fmt.Errorf("failed to map section %s: %w", name, err)
		}
	}
	return img, module, nil
}
