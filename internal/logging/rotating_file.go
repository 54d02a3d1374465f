package logging

import (
	"errors"
	"io/fs"
	"os"
	"sync"
)

// rotatingFile caps the log at maxBytes. When a write would cross the cap
// the current file moves to path+".1", replacing the previous generation,
// and a fresh file is started. A single line larger than the cap is still
// written in full.
type rotatingFile struct {
	mu       sync.Mutex
	path     string
	limit    int64
	f        *os.File
	written  int64
	rotation int
}

const defaultLogMaxMB = 10

func newRotatingFile(path string, maxMB int) (*rotatingFile, error) {
	if maxMB <= 0 {
		maxMB = defaultLogMaxMB
	}
	w := &rotatingFile{path: path, limit: int64(maxMB) << 20}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	if w.written > 0 && w.written+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *rotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// Rotations counts how many times the file was rolled over.
func (w *rotatingFile) Rotations() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotation
}

func (w *rotatingFile) rotate() error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	if err := os.Rename(w.path, w.path+".1"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	w.rotation++
	return w.open()
}

func (w *rotatingFile) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.written = info.Size()
	return nil
}
