package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile atomically replaces path with the encoded snapshot: the stream
// goes to path+".tmp" first and is renamed over path once closed. The parent
// directory is created if absent.
func WriteFile(path string, snapshot *Snapshot) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}

	if err := Encode(file, snapshot); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode state: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close state file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// ReadFile loads a snapshot from path. A missing file yields os.ErrNotExist
// via errors.Is; a present but unreadable file yields ErrMalformedSnapshot.
func ReadFile(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	snapshot, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return snapshot, nil
}
