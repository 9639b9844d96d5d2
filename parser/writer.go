package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PartSuffix marks a page that is still being written
const PartSuffix = ".part"

// WriteFileAtomic writes data to outputPath through a temporary ".part" file in
// the same directory and renames it into place, so a crash never leaves a
// truncated page behind that a later run would mistake for a finished one.
// Parent directories are created as needed.
func WriteFileAtomic(outputPath string, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty image data")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := outputPath + PartSuffix
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, outputPath)
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
