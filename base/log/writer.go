package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// rotateThreshold is the file size at which the log file is truncated
// and writing restarts from the beginning.
const rotateThreshold = 25 * 1024 * 1024 // 25 MB

// rotatingWriter is an io.Writer that serializes writes to a single log
// file and truncates it once it grows past rotateThreshold. Every Logger
// returned by New shares the same rotatingWriter, so the whole process
// writes through one mutex and one file handle.
type rotatingWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
	size int64
}

func newRotatingWriter(path string) (*rotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	return &rotatingWriter{path: path, file: f, size: info.Size()}, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > rotateThreshold {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// rotateLocked truncates the log file and restarts writing at offset 0.
// Must be called with mu held.
func (w *rotatingWriter) rotateLocked() error {
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate log file: %w", err)
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}
	w.size = 0
	return nil
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
