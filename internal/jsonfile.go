package internal

import (
	"encoding/json"
	"os"
)

// AtomicWriteJSON writes v as indented JSON through a temp-file-then-rename
// replace, fsyncing before the rename. Readers of the target path never
// observe a partial document.
func AtomicWriteJSON(path string, v interface{}) error {
	tempFile := path + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, path)
}
