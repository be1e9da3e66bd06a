//go:build windows

package process_windows

import (
	"bytes"
	"errors"
	"fmt"
	"unsafe"

	"fxrpatch/process"

	"github.com/Binject/debug/pe"
	"golang.org/x/sys/windows"
)

type moduleImage struct {
	base     process.ProcessMemoryAddress
	sections map[string]process.SectionRange
}

// ModuleBase returns the load address of a module without taking a reference
func (p *Self) ModuleBase(name string) (process.ProcessMemoryAddress, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	var handle windows.Handle
	if err := windows.GetModuleHandleEx(windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT, namePtr, &handle); err != nil {
		return 0, fmt.Errorf("%s: %v: %w", name, err, process.ErrModuleNotFound)
	}
	return process.ProcessMemoryAddress(handle), nil
}

// ModuleSection resolves a section from the module's mapped PE headers
func (p *Self) ModuleSection(name, section string) (process.SectionRange, error) {
	m, err := p.module(name)
	if err != nil {
		return process.SectionRange{}, err
	}
	r, ok := m.sections[section]
	if !ok {
		return process.SectionRange{}, fmt.Errorf("%s %s: %w", name, section, process.ErrSectionNotFound)
	}
	return r, nil
}

func (p *Self) module(name string) (*moduleImage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if m, ok := p.modules[name]; ok {
		return m, nil
	}

	base, err := p.ModuleBase(name)
	if err != nil {
		return nil, err
	}
	m, err := parseMappedImage(base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s headers: %w", name, err)
	}
	p.modules[name] = m
	p.log.Infoln("Loaded", len(m.sections), "sections of", name, "at", base.ToString())
	return m, nil
}

// parseMappedImage reads the PE headers of a loaded module. SizeOfImage is
// taken from the optional header first so the reader covers the whole mapping.
func parseMappedImage(base process.ProcessMemoryAddress) (*moduleImage, error) {
	if err := checkRange(base, 0x40, readableProtect); err != nil {
		return nil, err
	}
	dos := view(base, 0x40)
	if dos[0] != 'M' || dos[1] != 'Z' {
		return nil, errors.New("invalid DOS signature")
	}
	lfanew := *(*uint32)(unsafe.Pointer(uintptr(base) + 0x3C))
	// signature, file header, then SizeOfImage at 56 into the optional header
	sizeOfImageAt := base + process.ProcessMemoryAddress(lfanew) + 4 + 20 + 56
	if err := checkRange(sizeOfImageAt, 4, readableProtect); err != nil {
		return nil, err
	}
	sizeOfImage := *(*uint32)(unsafe.Pointer(uintptr(sizeOfImageAt)))

	file, err := pe.NewFileFromMemory(bytes.NewReader(view(base, process.ProcessMemorySize(sizeOfImage))))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m := &moduleImage{base: base, sections: make(map[string]process.SectionRange)}
	for _, s := range file.Sections {
		start := base + process.ProcessMemoryAddress(s.VirtualAddress)
		m.sections[s.Name] = process.SectionRange{Start: start, End: start + process.ProcessMemoryAddress(s.VirtualSize)}
	}
	return m, nil
}

// ProductName reads ProductName from the main executable's version
// resource in its first listed translation
func (p *Self) ProductName() (string, error) {
	buf := make([]uint16, windows.MAX_LONG_PATH)
	n, err := windows.GetModuleFileName(0, &buf[0], uint32(len(buf)))
	if err != nil {
		return "", fmt.Errorf("failed to get main module path: %w", err)
	}
	path := windows.UTF16ToString(buf[:n])

	size, err := windows.GetFileVersionInfoSize(path, nil)
	if err != nil {
		return "", fmt.Errorf("%s has no version resource: %w", path, err)
	}
	info := make([]byte, size)
	if err := windows.GetFileVersionInfo(path, 0, size, unsafe.Pointer(&info[0])); err != nil {
		return "", fmt.Errorf("failed to read %s version resource: %w", path, err)
	}

	var (
		translation *[2]uint16
		length      uint32
	)
	err = windows.VerQueryValue(unsafe.Pointer(&info[0]), `\VarFileInfo\Translation`, unsafe.Pointer(&translation), &length)
	if err != nil || length < 4 {
		return "", fmt.Errorf("%s version resource lists no language: %v", path, err)
	}

	var name *uint16
	block := fmt.Sprintf(`\StringFileInfo\%04x%04x\ProductName`, translation[0], translation[1])
	if err := windows.VerQueryValue(unsafe.Pointer(&info[0]), block, unsafe.Pointer(&name), &length); err != nil || length == 0 {
		return "", fmt.Errorf("%s version resource has no ProductName: %v", path, err)
	}
	return windows.UTF16ToString(unsafe.Slice(name, length)), nil
}
