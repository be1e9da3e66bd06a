// Package process provides the interfaces and types used to reach into a target process
package process

import "errors"

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrInvalidPointer is returned when a pointer read hits the null address
	ErrInvalidPointer = errors.New("invalid pointer read")

	// ErrModuleNotFound is returned when no module with the requested name is loaded
	ErrModuleNotFound = errors.New("module not found")

	// ErrSectionNotFound is returned when a module has no section with the requested name
	ErrSectionNotFound = errors.New("section not found")

	ErrUnsupportedCallingConvention = errors.New("unsupported calling convention")
)
