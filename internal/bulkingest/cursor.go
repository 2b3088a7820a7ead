package bulkingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"syscall"
	"time"
)

const CursorVersion = 1

// Cursor is the resume point of a directory ingest. Files are processed in
// lexical order, so everything up to LastFile has been attempted.
type Cursor struct {
	Version        int       `json:"version"`
	Dir            string    `json:"dir"`
	LastFile       string    `json:"last_file"`
	ProcessedCount int       `json:"processed_count"`
	SkippedCount   int       `json:"skipped_count"`
	Failed         []string  `json:"failed,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsEmpty returns true if the cursor has no position set.
func (c Cursor) IsEmpty() bool {
	return c.LastFile == ""
}

// MarkFailed records name once.
func (c *Cursor) MarkFailed(name string) {
	if !slices.Contains(c.Failed, name) {
		c.Failed = append(c.Failed, name)
	}
}

// ClearFailed forgets a previous failure of name.
func (c *Cursor) ClearFailed(name string) {
	c.Failed = slices.DeleteFunc(c.Failed, func(f string) bool { return f == name })
}

// CursorManager handles cursor persistence with atomic writes and file locking.
type CursorManager struct {
	filePath string
	lockFile *os.File
}

func NewCursorManager(filePath string) *CursorManager {
	return &CursorManager{filePath: filePath}
}

// Lock takes an exclusive flock on a sibling lock file.
// It fails immediately when another process holds it.
func (m *CursorManager) Lock() error {
	lockPath := m.filePath + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("cursor is locked by another process")
		}
		return fmt.Errorf("acquire lock: %w", err)
	}

	m.lockFile = f
	return nil
}

func (m *CursorManager) Unlock() error {
	if m.lockFile == nil {
		return nil
	}
	if err := syscall.Flock(int(m.lockFile.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if err := m.lockFile.Close(); err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	m.lockFile = nil
	_ = os.Remove(m.filePath + ".lock")
	return nil
}

// Load returns an empty cursor when the file is missing or empty.
func (m *CursorManager) Load() (Cursor, error) {
	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Cursor{Version: CursorVersion}, nil
		}
		return Cursor{}, fmt.Errorf("read cursor file: %w", err)
	}
	if len(data) == 0 {
		return Cursor{Version: CursorVersion}, nil
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("parse cursor file: %w", err)
	}
	if cursor.Version == 0 {
		cursor.Version = CursorVersion
	}
	return cursor, nil
}

// Save writes to a temp file and renames it over the cursor.
func (m *CursorManager) Save(cursor Cursor) error {
	cursor.Version = CursorVersion
	cursor.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	tmpPath := m.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp cursor file: %w", err)
	}
	if err := os.Rename(tmpPath, m.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename cursor file: %w", err)
	}
	return nil
}

func (m *CursorManager) Reset() error {
	if err := os.Remove(m.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cursor file: %w", err)
	}
	return nil
}

func (m *CursorManager) FilePath() string {
	return m.filePath
}
