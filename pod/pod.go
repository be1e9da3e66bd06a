// Package pod copies plain old data structs in and out of foreign memory
// using their Go in-memory layout. Structs must hold only fixed size
// scalars and arrays, with explicit padding where the target has it.
package pod

import (
	"errors"
	"fmt"
	"unsafe"

	"fxrpatch/process"
)

func SizeOf[T any]() process.ProcessMemorySize {
	var t T
	return process.ProcessMemorySize(unsafe.Sizeof(t))
}

// ReadT reads one T from addr
func ReadT[T any](m process.MemoryAccess, addr process.ProcessMemoryAddress) (T, error) {
	size := SizeOf[T]()
	if size == 0 {
		return *new(T), errors.New("ReadT: size of T is zero")
	}

	blob, err := m.ReadMemory(addr, size)
	if err != nil {
		return *new(T), err
	}
	return FromBytes[T](blob)
}

// FromBytes reinterprets the start of blob as a T
func FromBytes[T any](blob []byte) (T, error) {
	var v T
	size := int(unsafe.Sizeof(v))
	if len(blob) < size {
		return v, fmt.Errorf("FromBytes: have %d bytes, need %d", len(blob), size)
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), size), blob)
	return v, nil
}

// WriteT serializes a POD struct T into a raw byte slice using the in-memory layout.
func WriteT[T any](v T) []byte {
	size := int(unsafe.Sizeof(v))
	if size == 0 {
		return []byte{}
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	out := make([]byte, size)
	copy(out, src)
	return out
}

// ReadSliceT reads count consecutive Ts in a single read
func ReadSliceT[T any](m process.MemoryAccess, addr process.ProcessMemoryAddress, count int) ([]T, error) {
	if count < 0 {
		return nil, errors.New("ReadSliceT: count must be positive")
	}
	size := SizeOf[T]()
	if size == 0 || count == 0 {
		return []T{}, nil
	}

	blob, err := m.ReadMemory(addr, size*process.ProcessMemorySize(count))
	if err != nil {
		return nil, err
	}
	result := make([]T, count)
	for i := range result {
		if result[i], err = FromBytes[T](blob[i*int(size):]); err != nil {
			return nil, err
		}
	}
	return result, nil
}
