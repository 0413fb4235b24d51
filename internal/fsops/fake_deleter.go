package fsops

import (
	"io/fs"
	"time"
)

// FakeDeleter implements Deleter for testing.
// Files holds the paths that exist; Failures maps a path to the error its
// Remove returns. Calls records every Remove in order.
type FakeDeleter struct {
	Files    map[string]bool
	Dirs     map[string]bool
	Failures map[string]error
	Calls    []string
}

// NewFakeDeleter returns a fake in which the given paths exist as files.
func NewFakeDeleter(existing ...string) *FakeDeleter {
	f := &FakeDeleter{
		Files:    make(map[string]bool),
		Dirs:     make(map[string]bool),
		Failures: make(map[string]error),
	}
	for _, p := range existing {
		f.Files[p] = true
	}
	return f
}

// FailOn makes Remove(path) return err without deleting.
func (f *FakeDeleter) FailOn(path string, err error) *FakeDeleter {
	f.Failures[path] = err
	return f
}

func (f *FakeDeleter) Remove(path string) error {
	f.Calls = append(f.Calls, "rm:"+path)
	if err, ok := f.Failures[path]; ok {
		return &fs.PathError{Op: "remove", Path: path, Err: err}
	}
	if !f.Files[path] && !f.Dirs[path] {
		return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	delete(f.Files, path)
	delete(f.Dirs, path)
	return nil
}

func (f *FakeDeleter) Lstat(path string) (fs.FileInfo, error) {
	switch {
	case f.Files[path]:
		return fakeInfo{name: path}, nil
	case f.Dirs[path]:
		return fakeInfo{name: path, dir: true}, nil
	}
	return nil, &fs.PathError{Op: "lstat", Path: path, Err: fs.ErrNotExist}
}

type fakeInfo struct {
	name string
	dir  bool
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return 0 }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.dir }
func (i fakeInfo) Sys() any           { return nil }

func (i fakeInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

var (
	_ Deleter = (*FakeDeleter)(nil)
	_ Deleter = OSDeleter{}
)
