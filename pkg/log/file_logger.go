package log

import (
	"os"
	"path/filepath"
	"sync"
)

// FileLogger appends session trace events to a .plog file. Events that do
// not validate are not written; Rejected counts them.
//
// The file is created 0600 because traces carry device identities and
// network names.
type FileLogger struct {
	mu       sync.Mutex
	file     *os.File
	enc      *encoder
	written  int
	rejected int
	closed   bool
}

// NewFileLogger opens path for appending, creating it and its parent
// directories as needed.
func NewFileLogger(path string) (*FileLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &FileLogger{file: f, enc: newEncoder(f)}, nil
}

// Log implements Logger. A failed write never reaches the session.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if err := l.enc.encode(event); err != nil {
		l.rejected++
		return
	}
	l.written++
}

// Written returns the number of events written since the file was opened.
func (l *FileLogger) Written() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Rejected returns the number of events dropped as invalid or unwritable.
func (l *FileLogger) Rejected() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rejected
}

// Close flushes and closes the file. Later calls to Log and Close are
// no-ops.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	syncErr := l.file.Sync()
	if err := l.file.Close(); err != nil {
		return err
	}
	return syncErr
}

var _ Logger = (*FileLogger)(nil)
