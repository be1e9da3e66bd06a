package process

import (
	"errors"
	"fmt"
	"strings"
)

// FirstLoadedModule returns the first of names that is loaded in the target
func FirstLoadedModule(l ModuleLookup, names ...string) (string, ProcessMemoryAddress, error) {
	for _, name := range names {
		base, err := l.ModuleBase(name)
		if err == nil {
			return name, base, nil
		}
		if !errors.Is(err, ErrModuleNotFound) {
			return "", 0, err
		}
	}
	return "", 0, fmt.Errorf("none of %s is loaded: %w", strings.Join(names, ", "), ErrModuleNotFound)
}

// ReadSection copies a whole section out of the target
func ReadSection(m MemoryAccess, r SectionRange) ([]byte, error) {
	if r.Size() == 0 {
		return nil, fmt.Errorf("section %s is empty: %w", r, ErrSectionNotFound)
	}
	return m.ReadMemory(r.Start, r.Size())
}
