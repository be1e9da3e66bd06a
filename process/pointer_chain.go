package process

import "fmt"

// ReadPointerChain dereferences base, then adds each offset and dereferences
// again. The result is the last pointer read. A null link is ErrInvalidPointer.
func ReadPointerChain(r ProcessRead, base ProcessMemoryAddress, offsets ...ProcessMemorySize) (ProcessMemoryAddress, error) {
	current, err := r.ReadPOINTER(base)
	if err != nil {
		return 0, fmt.Errorf("failed to read pointer at level 0 (addr %x): %w", base, err)
	}
	for i, offset := range offsets {
		if current == 0 {
			return 0, fmt.Errorf("null pointer at level %d: %w", i, ErrInvalidPointer)
		}
		addr := current + ProcessMemoryAddress(offset)
		current, err = r.ReadPOINTER(addr)
		if err != nil {
			return 0, fmt.Errorf("failed to read pointer at level %d (addr %x): %w", i+1, addr, err)
		}
	}
	return current, nil
}
