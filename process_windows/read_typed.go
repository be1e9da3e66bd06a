//go:build windows

package process_windows

import (
	"encoding/binary"

	"fxrpatch/process"
)

// ReadUINT32 reads an unsigned 32-bit integer from the specified address
func (p *Self) ReadUINT32(addr process.ProcessMemoryAddress) (uint32, error) {
	data, err := p.ReadMemory(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// ReadUINT64 reads an unsigned 64-bit integer from the specified address
func (p *Self) ReadUINT64(addr process.ProcessMemoryAddress) (uint64, error) {
	data, err := p.ReadMemory(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// ReadINT32 reads a signed 32-bit integer from the specified address
func (p *Self) ReadINT32(addr process.ProcessMemoryAddress) (int32, error) {
	v, err := p.ReadUINT32(addr)
	return int32(v), err
}

// ReadNTS reads a null-terminated string, never past the end of the
// readable region holding addr
func (p *Self) ReadNTS(addr process.ProcessMemoryAddress, maxLength process.ProcessMemorySize) (string, error) {
	if maxLength == 0 {
		return "", nil
	}
	end, err := region(addr, readableProtect)
	if err != nil {
		return "", err
	}
	if avail := process.ProcessMemorySize(end - addr); avail < maxLength {
		maxLength = avail
	}
	data := view(addr, maxLength)
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}
	return string(data), nil
}

// ReadPOINTER reads a pointer value from the specified address
func (p *Self) ReadPOINTER(addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	if addr == 0 {
		return 0, process.ErrInvalidPointer
	}
	v, err := p.ReadUINT64(addr)
	return process.ProcessMemoryAddress(v), err
}

func (p *Self) WriteUINT32(addr process.ProcessMemoryAddress, value uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	return p.WriteMemory(addr, buf)
}

func (p *Self) WritePOINTER(addr process.ProcessMemoryAddress, value process.ProcessMemoryAddress) error {
	if addr == 0 {
		return process.ErrInvalidPointer
	}
	buf := make([]byte, process.PointerSize)
	binary.LittleEndian.PutUint64(buf, uint64(value))
	return p.WriteMemory(addr, buf)
}
