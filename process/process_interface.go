package process

// MemoryAccess is raw byte level access to another address space
type MemoryAccess interface {
	// ReadMemory reads memory from the process at the specified address
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// WriteMemory writes data to the process memory at the specified address
	WriteMemory(addr ProcessMemoryAddress, data []byte) error

	// IsValidAddress checks if the given memory address is valid and readable
	IsValidAddress(addr ProcessMemoryAddress) bool
}

// ProcessRead defines typed read operations for process memory
type ProcessRead interface {
	// ReadUINT32 reads an unsigned 32-bit integer from the specified address
	ReadUINT32(addr ProcessMemoryAddress) (uint32, error)

	// ReadUINT64 reads an unsigned 64-bit integer from the specified address
	ReadUINT64(addr ProcessMemoryAddress) (uint64, error)

	// ReadINT32 reads a signed 32-bit integer from the specified address
	ReadINT32(addr ProcessMemoryAddress) (int32, error)

	// ReadNTS reads a null-terminated string from the specified address with a maximum length
	ReadNTS(addr ProcessMemoryAddress, maxLength ProcessMemorySize) (string, error)

	// ReadPOINTER reads a pointer value from the specified address
	ReadPOINTER(addr ProcessMemoryAddress) (ProcessMemoryAddress, error)
}

// ProcessWrite defines typed write operations for process memory
type ProcessWrite interface {
	// WriteUINT32 writes an unsigned 32-bit integer to the specified address
	WriteUINT32(addr ProcessMemoryAddress, value uint32) error

	// WritePOINTER writes a pointer sized value to the specified address
	WritePOINTER(addr ProcessMemoryAddress, value ProcessMemoryAddress) error
}

// ForeignCaller invokes functions that live inside the target process
type ForeignCaller interface {
	// Call runs the function at fn on the calling thread and returns its integer result
	Call(conv CallingConvention, fn ProcessMemoryAddress, args ...uintptr) (uintptr, error)
}

// ModuleLookup resolves loaded modules and their sections
type ModuleLookup interface {
	// ModuleBase returns the load address of the named module
	ModuleBase(module string) (ProcessMemoryAddress, error)

	// ModuleSection returns the absolute range of a named section of a loaded module
	ModuleSection(module, section string) (SectionRange, error)
}

// ProductNamer reads the product name from the main module's version resource
type ProductNamer interface {
	ProductName() (string, error)
}

// Process is everything the patching core needs from a target
type Process interface {
	MemoryAccess
	ProcessRead
	ProcessWrite
	ForeignCaller
	ModuleLookup
	ProductNamer
}
