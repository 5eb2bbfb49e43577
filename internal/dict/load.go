package dict

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Load parses a knowledge-base JSON file from disk.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file JSONFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return FromJSON(file)
}

// EnsureLoaded loads a knowledge base and rejects unusable paths up front.
func EnsureLoaded(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("empty dictionary path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("dictionary path %s is a directory", path)
	}
	return Load(path)
}
