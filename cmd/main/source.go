package main

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// readTextFile returns the contents of the training text at path. The file is
// memory-mapped and copied once into the returned string.
func readTextFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not open training text: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("could not stat training text: %w", err)
	}
	if info.Size() == 0 {
		// Zero-length files cannot be mapped.
		return "", nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return "", fmt.Errorf("could not map training text: %w", err)
	}
	defer func(m *mmap.MMap) {
		_ = m.Unmap()
	}(&m)

	return string(m), nil
}
