// Package walk provides a deterministic, forward-slash directory
// traversal used both when building manifests and when locating tag
// files for a tagmanifest.
package walk

import (
	"os"
	"path/filepath"
	"sort"
)

// Files returns every regular file under root, relative to root, using
// forward slashes regardless of host OS. At every directory, files are
// emitted in sorted name order before any subdirectory is descended
// into, and subdirectories are themselves visited in sorted name order —
// the same top-down-sorted walk os.walk(data_dir) performs once its
// dirnames/filenames lists are sorted in place. This is required for
// tagmanifest fixity to be reproducible, since the tagmanifest is itself
// hashed.
func Files(root string) ([]string, error) {
	var result []string
	if err := walk(root, "", &result); err != nil {
		return nil, err
	}
	return result, nil
}

func walk(dir, prefix string, result *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var subdirs []os.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, e)
			continue
		}
		rel := e.Name()
		if prefix != "" {
			rel = prefix + "/" + rel
		}
		*result = append(*result, rel)
	}
	for _, e := range subdirs {
		rel := e.Name()
		if prefix != "" {
			rel = prefix + "/" + rel
		}
		if err := walk(filepath.Join(dir, e.Name()), rel, result); err != nil {
			return err
		}
	}
	return nil
}
