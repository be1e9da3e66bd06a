//go:build windows

// Package process_windows is the process backend for code running inside the
// target: memory is accessed directly, checked against VirtualQuery, and
// foreign functions are called on the current thread.
package process_windows

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"fxrpatch/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

// Self implements process.Process for the current process
type Self struct {
	log *logger.Logger

	mu      sync.Mutex
	modules map[string]*moduleImage
}

var _ process.Process = (*Self)(nil)

func New() *Self {
	return &Self{
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "process-self")),
		modules: make(map[string]*moduleImage),
	}
}

const (
	readableProtect = windows.PAGE_READONLY | windows.PAGE_READWRITE | windows.PAGE_WRITECOPY |
		windows.PAGE_EXECUTE_READ | windows.PAGE_EXECUTE_READWRITE | windows.PAGE_EXECUTE_WRITECOPY
	writableProtect = windows.PAGE_READWRITE | windows.PAGE_WRITECOPY |
		windows.PAGE_EXECUTE_READWRITE | windows.PAGE_EXECUTE_WRITECOPY
)

// region returns the end of the committed region holding addr if its
// protection has one of the want bits
func region(addr process.ProcessMemoryAddress, want uint32) (process.ProcessMemoryAddress, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return 0, fmt.Errorf("VirtualQuery 0x%x: %w", uint64(addr), err)
	}
	if mbi.State != windows.MEM_COMMIT || mbi.Protect&windows.PAGE_GUARD != 0 || mbi.Protect&want == 0 {
		return 0, fmt.Errorf("0x%x (protect 0x%x): %w", uint64(addr), mbi.Protect, process.ErrAddressNotMapped)
	}
	return process.ProcessMemoryAddress(mbi.BaseAddress + mbi.RegionSize), nil
}

// checkRange validates [addr, addr+size), which may span several regions
func checkRange(addr process.ProcessMemoryAddress, size process.ProcessMemorySize, want uint32) error {
	end := addr + process.ProcessMemoryAddress(size)
	for cur := addr; cur < end; {
		next, err := region(cur, want)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}

func view(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)
}

func (p *Self) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	_, err := region(addr, readableProtect)
	return err == nil
}

func (p *Self) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	if err := checkRange(addr, size, readableProtect); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	copy(buf, view(addr, size))
	return buf, nil
}

func (p *Self) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := checkRange(addr, process.ProcessMemorySize(len(data)), writableProtect); err != nil {
		return err
	}
	copy(view(addr, process.ProcessMemorySize(len(data))), data)
	return nil
}

// Call runs fn on the calling thread. Win64 is the only convention of the target.
func (p *Self) Call(conv process.CallingConvention, fn process.ProcessMemoryAddress, args ...uintptr) (uintptr, error) {
	if conv != process.Win64 {
		return 0, process.ErrUnsupportedCallingConvention
	}
	if _, err := region(fn, windows.PAGE_EXECUTE|windows.PAGE_EXECUTE_READ|windows.PAGE_EXECUTE_READWRITE|windows.PAGE_EXECUTE_WRITECOPY); err != nil {
		return 0, fmt.Errorf("function at 0x%x is not executable: %w", uint64(fn), err)
	}
	ret, _, _ := syscall.SyscallN(uintptr(fn), args...)
	return ret, nil
}
