// Package permscan audits a directory tree for permission problems before
// a bag operation commits to it, so a long hashing pass never ends in a
// partially written bag because some subdirectory turned out to be
// read-only or unreadable partway through.
package permscan

import (
	"os"
	"path/filepath"
)

// CanBag scans dir for every entry a bag build cannot tolerate: a
// directory it cannot write into (MakeBag must create a data/ directory
// and move entries into it) or a file it cannot write to (a move can
// still require write access to the file's containing metadata on some
// filesystems, and the original implementation checks it unconditionally).
// The top-level directory is checked first; if it cannot even be read,
// CanBag returns just that path, since nothing further about the tree can
// be determined.
func CanBag(dir string) []string {
	var unbaggable []string

	if !canAccess(dir, os.O_RDONLY) {
		return []string{dir}
	}
	if !canWrite(dir) {
		unbaggable = append(unbaggable, dir)
	}

	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || path == dir {
			return nil
		}
		if d.IsDir() {
			if !canWrite(path) {
				unbaggable = append(unbaggable, path)
			}
			return nil
		}
		if !canAccess(path, os.O_WRONLY) {
			unbaggable = append(unbaggable, path)
		}
		return nil
	})

	return unbaggable
}

// CanRead scans dir and reports every subdirectory and file that cannot
// be opened for reading. A validation or manifest pass that later fails
// on one of these paths can point back at a permission problem instead
// of reporting a bare I/O error.
func CanRead(dir string) (unreadableDirs, unreadableFiles []string) {
	if !canAccess(dir, os.O_RDONLY) {
		return []string{dir}, nil
	}

	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				unreadableDirs = append(unreadableDirs, path)
				return filepath.SkipDir
			}
			unreadableFiles = append(unreadableFiles, path)
			return nil
		}
		if path == dir {
			return nil
		}
		if d.IsDir() {
			if !canAccess(path, os.O_RDONLY) {
				unreadableDirs = append(unreadableDirs, path)
				return filepath.SkipDir
			}
			return nil
		}
		if !canAccess(path, os.O_RDONLY) {
			unreadableFiles = append(unreadableFiles, path)
		}
		return nil
	})

	return unreadableDirs, unreadableFiles
}

// canAccess reports whether path can be opened with the given flag.
// Attempting the operation and checking the error, rather than
// pre-checking permission bits, avoids a second source of truth that can
// race with the real operation.
func canAccess(path string, flag int) bool {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return !os.IsPermission(err) && !os.IsNotExist(err)
	}
	f.Close()
	return true
}

// canWrite reports whether new entries can be created inside dir, which
// is what a bag build actually needs rather than write access to the
// directory's own inode content.
func canWrite(dir string) bool {
	probe := filepath.Join(dir, ".bagit-write-probe")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return !os.IsPermission(err)
	}
	f.Close()
	os.Remove(probe)
	return true
}
