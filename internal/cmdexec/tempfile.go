package cmdexec

import (
	"fmt"
	"os"
)

// TempInput writes data to a temporary file for tools that only read lists
// from disk. The returned cleanup removes the file.
func TempInput(data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "casm-*.txt")
	if err != nil {
		return "", nil, fmt.Errorf("cmdexec: temp input: %w", err)
	}
	name := f.Name()
	cleanup := func() { os.Remove(name) }
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("cmdexec: temp input: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("cmdexec: temp input: %w", err)
	}
	return name, cleanup, nil
}
