package process_blob

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"fxrpatch/process"
	"fxrpatch/process/memory_map"
)

// Function is a stand-in for code living at an address inside the image
type Function func(args ...uintptr) uintptr

type module struct {
	base     process.ProcessMemoryAddress
	sections map[string]process.SectionRange
}

// Image is a fabricated process: a set of mapped regions, named modules
// with sections, and Go functions registered at code addresses so that
// foreign calls can be served without a real target.
type Image struct {
	mu          sync.Mutex
	memoryMap   []memory_map.MemoryMapItem
	blobs       map[uint64][]byte
	modules     map[string]*module
	functions   map[process.ProcessMemoryAddress]Function
	productName string
	heapNext    uint64
	writes      int
}

var _ process.Process = (*Image)(nil)

const defaultHeapBase = 0x7ff000000000

func NewImage() *Image {
	return &Image{
		blobs:     make(map[uint64][]byte),
		modules:   make(map[string]*module),
		functions: make(map[process.ProcessMemoryAddress]Function),
		heapNext:  defaultHeapBase,
	}
}

// Map adds a zero filled region and returns its backing slice
func (p *Image) Map(addr process.ProcessMemoryAddress, size process.ProcessMemorySize, name, perms string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mapLocked(uint64(addr), uint(size), name, perms)
}

func (p *Image) mapLocked(addr uint64, size uint, name, perms string) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("cannot map empty region at 0x%x", addr)
	}
	if memory_map.Overlaps(addr, size, p.memoryMap) {
		return nil, fmt.Errorf("region 0x%x+0x%x overlaps an existing mapping", addr, size)
	}
	data := make([]byte, size)
	p.memoryMap = append(p.memoryMap, memory_map.MemoryMapItem{Address: addr, Size: size, Name: name, Perms: perms})
	memory_map.Sort(p.memoryMap)
	p.blobs[addr] = data
	return data, nil
}

// AddModule registers a module and maps each of its sections
func (p *Image) AddModule(name string, base process.ProcessMemoryAddress, sections map[string]process.SectionRange) error {
	m := &module{base: base, sections: make(map[string]process.SectionRange)}
	for sectionName, r := range sections {
		perms := "rw-"
		if sectionName == ".text" {
			perms = "r-x"
		}
		if _, err := p.Map(r.Start, r.Size(), name+":"+sectionName, perms); err != nil {
			return err
		}
		m.sections[sectionName] = r
	}

	p.mu.Lock()
	p.modules[name] = m
	p.mu.Unlock()
	return nil
}

// RegisterFunction makes fn callable at addr
func (p *Image) RegisterFunction(addr process.ProcessMemoryAddress, fn Function) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.functions[addr] = fn
}

func (p *Image) SetProductName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.productName = name
}

// Alloc maps a fresh heap block aligned to align, the way a target side
// allocator would hand one out
func (p *Image) Alloc(size process.ProcessMemorySize, align uint64) (process.ProcessMemoryAddress, error) {
	if align == 0 {
		align = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	addr := (p.heapNext + align - 1) &^ (align - 1)
	if _, err := p.mapLocked(addr, uint(size), "heap", "rw-"); err != nil {
		return 0, err
	}
	// leave a guard gap so neighbouring blocks never merge
	p.heapNext = addr + uint64(size) + 0x1000
	return process.ProcessMemoryAddress(addr), nil
}

// Writes counts successful WriteMemory calls
func (p *Image) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

func (p *Image) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return memory_map.Find(uint64(addr), p.memoryMap) != nil
}

// GetMemoryMap returns a copy of the region table
func (p *Image) GetMemoryMap() []memory_map.MemoryMapItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]memory_map.MemoryMapItem, len(p.memoryMap))
	copy(result, p.memoryMap)
	return result
}

// window returns the backing bytes for [addr, addr+size) without copying
func (p *Image) window(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	region := memory_map.Find(uint64(addr), p.memoryMap)
	if region == nil {
		return nil, process.ErrAddressNotMapped
	}
	offset := uint64(addr) - region.Address
	if offset+uint64(size) > uint64(region.Size) {
		return nil, fmt.Errorf("access of %d bytes at 0x%x crosses the end of region 0x%x: %w", size, uint64(addr), region.Address, process.ErrAddressNotMapped)
	}
	return p.blobs[region.Address][offset : offset+uint64(size)], nil
}

func (p *Image) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.window(addr, size)
	if err != nil {
		return nil, err
	}
	result := make([]byte, size)
	copy(result, data)
	return result, nil
}

func (p *Image) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	dst, err := p.window(addr, process.ProcessMemorySize(len(data)))
	if err != nil {
		return err
	}
	copy(dst, data)
	p.writes++
	return nil
}

// ReadUINT32 reads an unsigned 32-bit integer from the specified address
func (p *Image) ReadUINT32(addr process.ProcessMemoryAddress) (uint32, error) {
	data, err := p.ReadMemory(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// ReadUINT64 reads an unsigned 64-bit integer from the specified address
func (p *Image) ReadUINT64(addr process.ProcessMemoryAddress) (uint64, error) {
	data, err := p.ReadMemory(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// ReadINT32 reads a signed 32-bit integer from the specified address
func (p *Image) ReadINT32(addr process.ProcessMemoryAddress) (int32, error) {
	data, err := p.ReadMemory(addr, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}

// ReadNTS reads a null-terminated string, stopping early at the end of the region
func (p *Image) ReadNTS(addr process.ProcessMemoryAddress, maxLength process.ProcessMemorySize) (string, error) {
	if maxLength == 0 {
		return "", nil
	}
	p.mu.Lock()
	region := memory_map.Find(uint64(addr), p.memoryMap)
	p.mu.Unlock()
	if region == nil {
		return "", process.ErrAddressNotMapped
	}
	if avail := process.ProcessMemorySize(region.End() - uint64(addr)); avail < maxLength {
		maxLength = avail
	}

	data, err := p.ReadMemory(addr, maxLength)
	if err != nil {
		return "", err
	}
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}
	return string(data), nil
}

// ReadPOINTER reads a pointer value from the specified address
func (p *Image) ReadPOINTER(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	if addr == 0 {
		return 0, process.ErrInvalidPointer
	}
	v, err := p.ReadUINT64(addr)
	if err != nil {
		return 0, err
	}
	return process.ProcessMemoryAddress(v), nil
}

func (p *Image) WriteUINT32(addr process.ProcessMemoryAddress, value uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	return p.WriteMemory(addr, buf)
}

func (p *Image) WritePOINTER(addr process.ProcessMemoryAddress, value process.ProcessMemoryAddress) error {
	if addr == 0 {
		return process.ErrInvalidPointer
	}
	buf := make([]byte, process.PointerSize)
	binary.LittleEndian.PutUint64(buf, uint64(value))
	return p.WriteMemory(addr, buf)
}

// Call dispatches to the Go function registered at fn
func (p *Image) Call(conv process.CallingConvention, fn process.ProcessMemoryAddress, args ...uintptr) (uintptr, error) {
	if conv != process.Win64 {
		return 0, process.ErrUnsupportedCallingConvention
	}
	p.mu.Lock()
	f, ok := p.functions[fn]
	p.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("no function at 0x%x: %w", uint64(fn), process.ErrAddressNotMapped)
	}
	return f(args...), nil
}

func (p *Image) ModuleBase(name string) (process.ProcessMemoryAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.modules[name]
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, process.ErrModuleNotFound)
	}
	return m.base, nil
}

func (p *Image) ModuleSection(name, section string) (process.SectionRange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.modules[name]
	if !ok {
		return process.SectionRange{}, fmt.Errorf("%s: %w", name, process.ErrModuleNotFound)
	}
	r, ok := m.sections[section]
	if !ok {
		return process.SectionRange{}, fmt.Errorf("%s %s: %w", name, section, process.ErrSectionNotFound)
	}
	return r, nil
}

func (p *Image) ProductName() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.productName == "" {
		return "", errors.New("image has no product name")
	}
	return p.productName, nil
}
