// This file is a modified redistribution of reopen (github.com/client9/reopen),
// which is governed by the MIT License, Copyright (c) 2015 Nick Galbreath.

package logger

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileWriter is an append-only log destination which can be reopened after
// logrotate moves the file out from under a long running poll loop.
type FileWriter struct {
	mu   sync.Mutex // guards f across Write, Reopen and Close
	f    *os.File
	mode os.FileMode
	name string
}

// NewFileWriter opens name for appending, creating it with mode 0600.
func NewFileWriter(name string) (*FileWriter, error) {
	w := &FileWriter{name: name, mode: 0600}
	if err := w.reopen(); err != nil {
		return nil, err
	}
	return w, nil
}

func (f *FileWriter) reopen() error {
	if f.f != nil {
		f.f.Close()
		f.f = nil
	}
	newf, err := os.OpenFile(f.name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, f.mode)
	if err != nil {
		return errors.Wrapf(err, "opening log file %s", f.name)
	}
	f.f = newf
	return nil
}

// Reopen closes the current handle and opens the path again, picking up a
// new inode if the old file was renamed.
func (f *FileWriter) Reopen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reopen()
}

func (f *FileWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return 0, os.ErrClosed
	}
	return f.f.Write(p)
}

func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

// Name returns the path the writer appends to.
func (f *FileWriter) Name() string { return f.name }
