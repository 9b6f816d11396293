package emu

import (
	"io"
	"os"
	"sync"
)

// FirstFileFD is the first descriptor handed out for host files. Lower
// descriptors are the standard streams.
const FirstFileFD uint32 = 3

// openFile is a guest descriptor backed by a host file.
type openFile struct {
	file *os.File
	path string
}

// FDTable maps guest file descriptors to host files.
type FDTable struct {
	mu     sync.Mutex
	files  map[uint32]*openFile
	nextFD uint32
}

// NewFDTable creates an empty descriptor table.
func NewFDTable() *FDTable {
	return &FDTable{
		files:  make(map[uint32]*openFile),
		nextFD: FirstFileFD,
	}
}

// Open opens a host file and returns its guest descriptor.
func (t *FDTable) Open(path string, flags int, mode os.FileMode) (uint32, error) {
	f, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fd := t.nextFD
	t.nextFD++
	t.files[fd] = &openFile{file: f, path: path}

	return fd, nil
}

// Close closes a guest descriptor.
func (t *FDTable) Close(fd uint32) error {
	t.mu.Lock()
	of, ok := t.files[fd]
	delete(t.files, fd)
	t.mu.Unlock()

	if !ok {
		return os.ErrInvalid
	}

	return of.file.Close()
}

// CloseAll closes every open descriptor.
func (t *FDTable) CloseAll() {
	t.mu.Lock()
	files := t.files
	t.files = make(map[uint32]*openFile)
	t.mu.Unlock()

	for _, of := range files {
		_ = of.file.Close()
	}
}

// Path returns the host path behind fd.
func (t *FDTable) Path(fd uint32) (string, bool) {
	of, ok := t.get(fd)
	if !ok {
		return "", false
	}
	return of.path, true
}

func (t *FDTable) get(fd uint32) (*openFile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	of, ok := t.files[fd]
	return of, ok
}

// Read reads from a guest descriptor.
func (t *FDTable) Read(fd uint32, buf []byte) (int, error) {
	of, ok := t.get(fd)
	if !ok {
		return 0, os.ErrInvalid
	}

	n, err := of.file.Read(buf)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// Write writes to a guest descriptor.
func (t *FDTable) Write(fd uint32, buf []byte) (int, error) {
	of, ok := t.get(fd)
	if !ok {
		return 0, os.ErrInvalid
	}
	return of.file.Write(buf)
}

// Seek sets the file position of a guest descriptor.
func (t *FDTable) Seek(fd uint32, offset int64, whence int) (int64, error) {
	of, ok := t.get(fd)
	if !ok {
		return 0, os.ErrInvalid
	}
	return of.file.Seek(offset, whence)
}
