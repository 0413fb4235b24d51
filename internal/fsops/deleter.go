package fsops

import "io/fs"

// Deleter abstracts the filesystem calls a sweep makes.
// Tests swap in FakeDeleter to prove dry-run never deletes.
type Deleter interface {
	Remove(path string) error
	Lstat(path string) (fs.FileInfo, error)
}
