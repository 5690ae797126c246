package bagit

import (
	"bufio"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ndlib/bagit/pathutil"
	"github.com/ndlib/bagit/tagfile"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// Bag is an in-memory view of a bag directory: its declared version and
// encoding, its tag-file metadata, and the fixity entries recorded across
// its manifests.
type Bag struct {
	// Path is the absolute path to the bag's root directory, the one
	// that directly contains bagit.txt and data/.
	Path string

	VersionMajor int
	VersionMinor int

	// Encoding is the tag-file character encoding declared in bagit.txt
	// (Tag-File-Character-Encoding). Only "UTF-8" is supported for
	// writing; Open accepts any label here, and tag files are read as
	// UTF-8 bytes whatever it says.
	Encoding string

	// TagFileName is "package-info.txt" for versions 0.93-0.95 and
	// "bag-info.txt" for every later version.
	TagFileName string

	// Info holds the parsed tag-file metadata (Source-Organization,
	// Payload-Oxum, and so on). A header that appeared once has a
	// one-element slice; a repeated header keeps every occurrence.
	Info tagfile.Tags

	// Tags holds the raw bagit.txt contents (BagIt-Version,
	// Tag-File-Character-Encoding).
	Tags tagfile.Tags

	// Entries maps a manifest-relative path (forward-slash, beginning
	// with "data/" for payload files) to the digest recorded for it
	// under each algorithm name.
	Entries map[string]map[string]string

	// Algorithms is the set of algorithm names discovered across every
	// manifest and tagmanifest file.
	Algorithms []string

	// NormalizedFilesystemNames and NormalizedManifestNames are the
	// bidirectional NFC lookup tables described in the data model:
	// NFC-normalized path -> the spelling actually seen, on the
	// filesystem and in the manifests respectively.
	NormalizedFilesystemNames map[string]string
	NormalizedManifestNames   map[string]string

	logger *log.Logger
}

func (b *Bag) log() *log.Logger {
	if b.logger == nil {
		return log.Default()
	}
	return b.logger
}

// newBag returns an empty Bag, used internally while building up the result
// of Open or MakeBag.
func newBag(path string) *Bag {
	return &Bag{
		Path:                      path,
		Info:                      make(tagfile.Tags),
		Tags:                      make(tagfile.Tags),
		Entries:                   make(map[string]map[string]string),
		NormalizedFilesystemNames: make(map[string]string),
		NormalizedManifestNames:   make(map[string]string),
	}
}

// HasOxum reports whether Payload-Oxum was recorded in bag-info.txt.
func (b *Bag) HasOxum() bool {
	return b.Info.Get("Payload-Oxum") != ""
}

// ParsedOxum parses the recorded Payload-Oxum into its byte count and
// file count. It is an error to call this when HasOxum is false.
func (b *Bag) ParsedOxum() (bytes, files int64, err error) {
	raw := b.Info.Get("Payload-Oxum")
	idx := strings.LastIndex(raw, ".")
	if idx < 0 {
		return 0, 0, newBagError("malformed Payload-Oxum: %q", raw)
	}
	bytes, err1 := strconv.ParseInt(raw[:idx], 10, 64)
	files, err2 := strconv.ParseInt(raw[idx+1:], 10, 64)
	if err1 != nil || err2 != nil || bytes < 0 || files < 0 {
		return 0, 0, newBagError("malformed Payload-Oxum: %q", raw)
	}
	return bytes, files, nil
}

// tagFileEntries returns the subset of Entries that are not under data/,
// i.e. the tag files a tagmanifest would cover.
func (b *Bag) tagFileEntries() map[string]map[string]string {
	out := make(map[string]map[string]string)
	for path, digests := range b.Entries {
		if !strings.HasPrefix(path, "data/") {
			out[path] = digests
		}
	}
	return out
}

// missingOptionalTagfiles reports tagmanifest entries whose file is
// absent from the filesystem. There is no mandatory directory structure
// for additional tag files, so only missing-entry detection is possible,
// not missing-file detection in the other direction.
func (b *Bag) missingOptionalTagfiles() []string {
	var missing []string
	for path := range b.tagFileEntries() {
		if _, err := os.Stat(filepath.Join(b.Path, filepath.FromSlash(path))); os.IsNotExist(err) {
			missing = append(missing, path)
		}
	}
	return missing
}

// FetchEntry is one line of fetch.txt: a URL and byte size to retrieve,
// and the bag-relative path it should be written to.
type FetchEntry struct {
	URL      string
	Size     string
	Filename string
}

// FetchEntries parses fetch.txt if present. It validates each entry's
// filename for path safety and each URL for having a scheme and
// authority, but performs no network I/O: retrieval is explicitly out of
// scope (see the Non-goals in the specification this package implements).
func (b *Bag) FetchEntries() ([]FetchEntry, error) {
	path := filepath.Join(b.Path, "fetch.txt")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading fetch.txt")
	}
	defer f.Close()

	var entries []FetchEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		url, size, filename, ok := splitFetchLine(line)
		if !ok {
			return nil, newBagError("malformed fetch.txt line: %q", line)
		}

		if pathutil.IsDangerous(b.Path, filename) {
			return nil, newBagError("path %q in fetch.txt is unsafe", filename)
		}
		if err := validateFetchURL(url); err != nil {
			return nil, err
		}

		entries = append(entries, FetchEntry{URL: url, Size: size, Filename: filename})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading fetch.txt")
	}
	return entries, nil
}

// splitFetchLine splits a fetch.txt line into its three fields the way
// the source implementation's "line.strip().split(None, 2)" does: the
// url and size fields are delimited by runs of whitespace of any length,
// but the filename field is whatever remains after that, including any
// further single spaces it may itself contain.
func splitFetchLine(line string) (url, size, filename string, ok bool) {
	rest := strings.TrimLeft(line, " \t")
	idx := strings.IndexAny(rest, " \t")
	if idx < 0 {
		return "", "", "", false
	}
	url = rest[:idx]
	rest = strings.TrimLeft(rest[idx:], " \t")

	idx = strings.IndexAny(rest, " \t")
	if idx < 0 {
		return "", "", "", false
	}
	size = rest[:idx]
	rest = strings.TrimLeft(rest[idx:], " \t")
	if rest == "" {
		return "", "", "", false
	}
	return url, size, rest, true
}

func validateFetchURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return newBagError("url %q in fetch.txt is missing a scheme or authority", raw)
	}
	return nil
}

// FilesToBeFetched returns the bag-relative filename of every fetch.txt
// entry, a convenience wrapper around FetchEntries for callers that only
// want the list of local paths.
func (b *Bag) FilesToBeFetched() ([]string, error) {
	entries, err := b.FetchEntries()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Filename
	}
	return names, nil
}

// CompareFetchWithFS reports which fetch.txt entries are not yet present
// on disk: the set a caller would actually need to retrieve before the
// bag is complete.
func (b *Bag) CompareFetchWithFS() ([]string, error) {
	entries, err := b.FetchEntries()
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, e := range entries {
		full := filepath.Join(b.Path, filepath.FromSlash(e.Filename))
		if _, err := os.Stat(full); err == nil {
			continue
		}
		missing = append(missing, e.Filename)
	}
	return missing, nil
}

// IsValid is a boolean convenience wrapper around Validate for callers
// that only want a yes/no answer and don't need the error details.
func (b *Bag) IsValid(opts ValidateOptions) bool {
	return b.Validate(opts) == nil
}

// nfc normalizes a path the way the bidirectional lookup tables require.
func nfc(s string) string {
	return norm.NFC.String(s)
}
