package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"fxrpatch/process"
	"fxrpatch/process/memory_map"
)

type dumpSection struct {
	Name  string                       `json:"name"`
	Start process.ProcessMemoryAddress `json:"start"`
	End   process.ProcessMemoryAddress `json:"end"`
}

type dumpModule struct {
	Name     string                       `json:"name"`
	Base     process.ProcessMemoryAddress `json:"base"`
	Sections []dumpSection                `json:"sections"`
}

type dumpMetadata struct {
	ProductName string       `json:"productName"`
	Modules     []dumpModule `json:"modules"`
}

func blobFilename(dirname string, region memory_map.MemoryMapItem) string {
	return filepath.Join(dirname, fmt.Sprintf("blob_0x%x_%d.bin", region.Address, region.Size))
}

// Save writes the image to a directory. Registered functions are not saved.
func (p *Image) Save(dirname string) error {
	if err := os.MkdirAll(dirname, 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	metadata := dumpMetadata{ProductName: p.productName}
	for name, m := range p.modules {
		dm := dumpModule{Name: name, Base: m.base}
		for sectionName, r := range m.sections {
			dm.Sections = append(dm.Sections, dumpSection{Name: sectionName, Start: r.Start, End: r.End})
		}
		metadata.Modules = append(metadata.Modules, dm)
	}

	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, "metadata.json"), metadataBytes, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	mmBytes, err := json.MarshalIndent(p.memoryMap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memory map: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, "process_memory_map.json"), mmBytes, 0644); err != nil {
		return fmt.Errorf("failed to write memory map: %w", err)
	}

	for _, region := range p.memoryMap {
		if err := os.WriteFile(blobFilename(dirname, region), p.blobs[region.Address], 0644); err != nil {
			return fmt.Errorf("failed to write blob for region 0x%x: %w", region.Address, err)
		}
	}

	return nil
}

// Load reads an image saved by Save, or captured from a live process in the same layout
func Load(dirname string) (*Image, error) {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var metadata dumpMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	mmBytes, err := os.ReadFile(filepath.Join(dirname, "process_memory_map.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read memory map: %w", err)
	}
	var memoryMap []memory_map.MemoryMapItem
	if err := json.Unmarshal(mmBytes, &memoryMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal memory map: %w", err)
	}

	img := NewImage()
	img.productName = metadata.ProductName

	for _, region := range memoryMap {
		filename := blobFilename(dirname, region)
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			continue // blob not captured, region stays unmapped
		}
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read blob %s: %w", filename, err)
		}
		if uint(len(data)) != region.Size {
			return nil, fmt.Errorf("blob %s is %d bytes, memory map says %d", filename, len(data), region.Size)
		}
		dst, err := img.mapLocked(region.Address, region.Size, region.Name, region.Perms)
		if err != nil {
			return nil, err
		}
		copy(dst, data)
	}

	for _, dm := range metadata.Modules {
		m := &module{base: dm.Base, sections: make(map[string]process.SectionRange)}
		for _, s := range dm.Sections {
			m.sections[s.Name] = process.SectionRange{Start: s.Start, End: s.End}
		}
		img.modules[dm.Name] = m
	}

	return img, nil
}
