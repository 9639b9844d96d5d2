package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const (
	maxLogSize  = 10 * 1024 * 1024 // 10MB
	maxLogFiles = 3                // Keep 3 backup files
)

// rotatingFile is an io.Writer that rotates path once it grows past maxSize
type rotatingFile struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	size     int64
	maxSize  int64
	maxFiles int
}

var (
	logMutex   sync.Mutex
	activeFile *rotatingFile
)

// InitLogger sends the standard logger to stderr and, when path is set, to a
// size-rotated log file as well. Safe to call once during startup.
func InitLogger(path string) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if path == "" {
		log.SetOutput(os.Stderr)
		return nil
	}

	rf, err := openRotatingFile(path, maxLogSize, maxLogFiles)
	if err != nil {
		return err
	}

	activeFile = rf
	log.SetOutput(io.MultiWriter(os.Stderr, rf))

	log.Printf("=== Logger Initialized ===")
	log.Printf("Log file: %s (max %d MB, %d backups)", path, maxLogSize/(1024*1024), maxLogFiles)
	return nil
}

// CloseLogger closes the log file and falls back to stderr
func CloseLogger() {
	logMutex.Lock()
	defer logMutex.Unlock()

	if activeFile == nil {
		return
	}

	log.Printf("=== Logger Closing ===")
	log.SetOutput(os.Stderr)
	activeFile.Close()
	activeFile = nil
}

func openRotatingFile(path string, maxSize int64, maxFiles int) (*rotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rf := &rotatingFile{path: path, maxSize: maxSize, maxFiles: maxFiles}

	// Check if we need to rotate before opening
	if info, err := os.Stat(path); err == nil {
		rf.size = info.Size()
		if rf.size >= maxSize {
			if err := rf.rotate(); err != nil {
				return nil, fmt.Errorf("failed to rotate logs: %w", err)
			}
		}
	}

	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *rotatingFile) open() error {
	file, err := os.OpenFile(rf.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	rf.file = file
	rf.size = info.Size()
	return nil
}

// Write appends p, rotating first if p would push the file past maxSize
func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, os.ErrClosed
	}

	if rf.size > 0 && rf.size+int64(len(p)) > rf.maxSize {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
		if err := rf.open(); err != nil {
			return 0, err
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}

// rotate moves path to path.1, path.1 to path.2 and so on, dropping the oldest.
// The current file is closed; callers reopen.
func (rf *rotatingFile) rotate() error {
	if rf.file != nil {
		rf.file.Close()
		rf.file = nil
	}

	// Remove oldest backup
	oldestBackup := fmt.Sprintf("%s.%d", rf.path, rf.maxFiles)
	os.Remove(oldestBackup) // Ignore error if file doesn't exist

	// Rotate existing backups
	for i := rf.maxFiles - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", rf.path, i)
		newPath := fmt.Sprintf("%s.%d", rf.path, i+1)
		os.Rename(oldPath, newPath) // Ignore error if source doesn't exist
	}

	// Move current log to .1
	if err := os.Rename(rf.path, rf.path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}

	rf.size = 0
	return nil
}
