package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Marshal renders rec as indented JSON.
func Marshal(rec *Record) ([]byte, error) {
	return json.MarshalIndent(rec, "", "  ")
}

// Parse decodes a record previously produced by Marshal or stored as a blob.
func Parse(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode scan record: %w", err)
	}
	return &rec, nil
}

// WriteJSON saves rec to path, creating parent directories as needed.
func WriteJSON(path string, rec *Record) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	data, err := Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadJSON loads a record written by WriteJSON.
func ReadJSON(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
