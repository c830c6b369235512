package transport

import (
	"fmt"
	"os"
)

// LoadSceneFile reads a scene document from disk. A convenience for the
// offline compiler and for servers bootstrapping with a default scene.
func LoadSceneFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("transport: reading scene file: %w", err)
	}
	return raw, nil
}
