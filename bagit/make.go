package bagit

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ndlib/bagit/permscan"
	"github.com/ndlib/bagit/tagfile"
	"github.com/pkg/errors"
)

const bagitVersion = "0.97"

// MakeBagOptions configures MakeBag. Checksums defaults to
// SupportedAlgorithms ({sha256, sha512}) when empty. Checksum (singular)
// is a deprecated alias kept for callers migrating from an older
// single-algorithm API; when set it is used in place of Checksums and a
// deprecation warning is logged. Encoding defaults to "UTF-8", the only
// encoding this package writes tag files with; it is still declared in
// bagit.txt explicitly rather than assumed, since a reader must consult
// that declaration before trusting one.
type MakeBagOptions struct {
	Info      tagfile.Tags
	Processes int
	Checksums []string
	Checksum  string
	Encoding  string
	Logger    *log.Logger
}

// MakeBag transforms dir in place into a bag: every existing top-level
// entry is moved under dir/data, manifests and tag files are written
// alongside it, and a fresh Bag is returned by reopening the result.
//
// The move into data/ only begins after every precondition passes, so a
// failed precondition never touches the filesystem.
func MakeBag(dir string, opts MakeBagOptions) (*Bag, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", dir)
	}
	if !info.IsDir() {
		return nil, newBagError("%s is not a directory", dir)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", dir)
	}
	if cwd, err := os.Getwd(); err == nil {
		if isAncestor(absDir, cwd) {
			return nil, newBagError("cannot bag %s: it is an ancestor of the current working directory", dir)
		}
	}

	if unbaggable := permscan.CanBag(dir); len(unbaggable) > 0 {
		return nil, newBagError("cannot bag %s: insufficient write permissions on %v", dir, unbaggable)
	}
	if unreadableDirs, unreadableFiles := permscan.CanRead(dir); len(unreadableDirs) > 0 || len(unreadableFiles) > 0 {
		return nil, newBagError("cannot bag %s: insufficient read permissions on %v",
			dir, append(unreadableDirs, unreadableFiles...))
	}

	checksums := opts.Checksums
	if opts.Checksum != "" {
		logger.Printf("warning: the Checksum option is deprecated, use Checksums instead")
		checksums = []string{opts.Checksum}
	}
	if len(checksums) == 0 {
		checksums = append([]string(nil), SupportedAlgorithms...)
	}

	encoding := opts.Encoding
	if encoding == "" {
		encoding = "UTF-8"
	}
	if !strings.EqualFold(encoding, "UTF-8") {
		return nil, newBagError("cannot bag %s: only UTF-8 tag-file encoding is supported for writing, got %q", dir, encoding)
	}

	processes := opts.Processes
	if processes < 1 {
		processes = 1
	}

	if err := pivotPayloadIntoData(dir, info.Mode()); err != nil {
		return nil, err
	}

	manifestResult, err := buildManifests(dir, checksums, processes, logger)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(dir, "bagit.txt"),
		[]byte("BagIt-Version: "+bagitVersion+"\nTag-File-Character-Encoding: "+encoding+"\n"), 0644); err != nil {
		return nil, errors.Wrap(err, "writing bagit.txt")
	}

	bagInfo := make(tagfile.Tags, len(opts.Info)+3)
	for k, v := range opts.Info {
		bagInfo[k] = append([]string(nil), v...)
	}
	if bagInfo.Get("Bagging-Date") == "" {
		bagInfo["Bagging-Date"] = []string{time.Now().UTC().Format("2006-01-02")}
	}
	if bagInfo.Get("Bag-Software-Agent") == "" {
		bagInfo["Bag-Software-Agent"] = []string{"bagit-go"}
	}
	bagInfo["Payload-Oxum"] = []string{oxumString(manifestResult)}

	if err := tagfile.Write(filepath.Join(dir, "bag-info.txt"), bagInfo); err != nil {
		return nil, err
	}

	for _, alg := range checksums {
		if err := buildTagManifest(dir, alg, logger); err != nil {
			return nil, err
		}
	}

	return Open(dir, logger)
}

// isAncestor reports whether dir is cwd itself or a directory somewhere
// above it, matching the source implementation's
// abspath(getcwd()).startswith(bag_dir) check (done here against full
// path segments rather than a raw string prefix, so "/data" does not
// falsely match "/database").
func isAncestor(dir, cwd string) bool {
	dir = filepath.Clean(dir)
	cwd = filepath.Clean(cwd)
	if dir == cwd {
		return true
	}
	return strings.HasPrefix(cwd, dir+string(filepath.Separator))
}

func pivotPayloadIntoData(dir string, mode os.FileMode) error {
	tmp, err := os.MkdirTemp(dir, ".bagit-tmp-")
	if err != nil {
		return errors.Wrap(err, "creating payload staging directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrap(err, "listing bag directory")
	}
	tmpBase := filepath.Base(tmp)
	for _, e := range entries {
		if e.Name() == tmpBase {
			continue
		}
		src := filepath.Join(dir, e.Name())
		dst := filepath.Join(tmp, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return errors.Wrapf(err, "moving %s into payload", e.Name())
		}
	}

	dataDir := filepath.Join(dir, "data")
	if err := os.Rename(tmp, dataDir); err != nil {
		return errors.Wrap(err, "renaming payload staging directory to data")
	}
	return os.Chmod(dataDir, mode)
}

func oxumString(r ManifestResult) string {
	return strconv.FormatInt(r.TotalBytes, 10) + "." + strconv.FormatInt(r.TotalFiles, 10)
}
