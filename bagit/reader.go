package bagit

import (
	"bufio"
	"bytes"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ndlib/bagit/pathutil"
	"github.com/ndlib/bagit/tagfile"
	"github.com/ndlib/bagit/walk"
	"github.com/pkg/errors"
)

var bagitTxtBOM = []byte{0xEF, 0xBB, 0xBF}

// Open loads an existing bag directory: its bagit.txt declaration, its
// info tag file, and every manifest and (for version >= 0.97)
// tagmanifest it finds. No fixity is recomputed here; Open only reads
// what is already recorded. Use Validate to check the recorded digests
// against the files on disk.
func Open(dir string, logger *log.Logger) (*Bag, error) {
	if logger == nil {
		logger = log.Default()
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", dir)
	}

	bagitTxtPath := filepath.Join(absDir, "bagit.txt")
	raw, err := os.ReadFile(bagitTxtPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading bagit.txt")
	}
	if bytes.HasPrefix(raw, bagitTxtBOM) {
		return nil, newValidationError("bagit.txt must not contain a byte-order mark", nil)
	}

	rawTags, err := tagfile.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "parsing bagit.txt")
	}

	versionStr := rawTags.Get("BagIt-Version")
	encoding := rawTags.Get("Tag-File-Character-Encoding")
	if versionStr == "" || encoding == "" {
		return nil, newBagError("bagit.txt is missing BagIt-Version or Tag-File-Character-Encoding")
	}

	major, minor, err := parseVersion(versionStr)
	if err != nil {
		return nil, err
	}
	if !supportedVersion(major, minor) {
		return nil, newBagError("unsupported BagIt-Version: %s", versionStr)
	}

	b := newBag(absDir)
	b.logger = logger
	b.VersionMajor = major
	b.VersionMinor = minor
	b.Encoding = encoding
	b.Tags = rawTags
	if major == 0 && minor <= 95 {
		b.TagFileName = "package-info.txt"
	} else {
		b.TagFileName = "bag-info.txt"
	}

	infoPath := filepath.Join(absDir, b.TagFileName)
	if _, err := os.Stat(infoPath); err == nil {
		info, err := tagfile.Load(infoPath, logger)
		if err != nil {
			return nil, err
		}
		b.Info = info
	}

	if err := b.loadManifests(logger); err != nil {
		return nil, err
	}

	if err := b.buildNormalizedFilesystemNames(); err != nil {
		return nil, err
	}

	return b, nil
}

func parseVersion(s string) (major, minor int, err error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return 0, 0, newBagError("malformed BagIt-Version: %q", s)
	}
	major, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	minor, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, newBagError("malformed BagIt-Version: %q", s)
	}
	return major, minor, nil
}

// supportedVersion reports whether major.minor falls in [0.93, 1.0].
func supportedVersion(major, minor int) bool {
	if major == 0 {
		return minor >= 93 && minor <= 99
	}
	if major == 1 {
		return minor == 0
	}
	return false
}

// isAtLeast1 reports whether the bag's declared version is >= 1.0, the
// threshold at which exact-duplicate manifest entries become fatal
// instead of a warning.
func (b *Bag) isAtLeast1() bool {
	return b.VersionMajor >= 1
}

// isAtLeast097 reports whether the bag's declared version is >= 0.97,
// the threshold at which optional tagmanifests must also be validated.
func (b *Bag) isAtLeast097() bool {
	return b.VersionMajor > 0 || b.VersionMinor >= 97
}

func (b *Bag) loadManifests(logger *log.Logger) error {
	entries, err := os.ReadDir(b.Path)
	if err != nil {
		return errors.Wrap(err, "listing bag directory")
	}

	var manifestFiles, tagManifestFiles []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if alg, ok := algorithmOf(name, "manifest-"); ok {
			manifestFiles = append(manifestFiles, name)
			b.addAlgorithm(alg)
			continue
		}
		if alg, ok := algorithmOf(name, "tagmanifest-"); ok {
			tagManifestFiles = append(tagManifestFiles, name)
			b.addAlgorithm(alg)
		}
	}
	sort.Strings(manifestFiles)
	sort.Strings(tagManifestFiles)

	for _, name := range manifestFiles {
		if err := b.loadOneManifest(name, logger); err != nil {
			return err
		}
	}
	if b.isAtLeast097() {
		for _, name := range tagManifestFiles {
			if err := b.loadOneManifest(name, logger); err != nil {
				return err
			}
		}
	}
	return nil
}

// splitManifestLine splits a manifest line "<digest>  <path>" on the
// first run of whitespace, leaving any further single spaces in path
// intact rather than collapsing them, since a payload filename may
// itself contain a space.
func splitManifestLine(line string) (digest, path string, ok bool) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return "", "", false
	}
	digest = line[:idx]
	rest := strings.TrimLeft(line[idx:], " \t")
	if rest == "" {
		return "", "", false
	}
	return digest, rest, true
}

func algorithmOf(filename, prefix string) (string, bool) {
	if !strings.HasPrefix(filename, prefix) || !strings.HasSuffix(filename, ".txt") {
		return "", false
	}
	alg := strings.TrimSuffix(strings.TrimPrefix(filename, prefix), ".txt")
	if alg == "" {
		return "", false
	}
	return alg, true
}

func (b *Bag) addAlgorithm(alg string) {
	for _, a := range b.Algorithms {
		if a == alg {
			return
		}
	}
	b.Algorithms = append(b.Algorithms, alg)
}

func (b *Bag) loadOneManifest(name string, logger *log.Logger) error {
	alg, _ := algorithmOf(name, "manifest-")
	if alg == "" {
		alg, _ = algorithmOf(name, "tagmanifest-")
	}

	path := filepath.Join(b.Path, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", name)
	}
	if bytes.HasPrefix(raw, bagitTxtBOM) {
		if strings.EqualFold(b.Encoding, "UTF-8") {
			logger.Printf("warning: %s is encoded using UTF-8 but contains an unnecessary"+
				" byte-order mark, which is not in compliance with the BagIt RFC", name)
		}
		raw = raw[len(bagitTxtBOM):]
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		digest, fname, ok := splitManifestLine(line)
		if !ok {
			return newBagError("malformed manifest line in %s: %q", name, line)
		}
		fname = strings.TrimPrefix(fname, "*")
		fname = path.Clean(fname)

		decoded := pathutil.Decode(fname)
		if pathutil.IsDangerous(b.Path, decoded) {
			return newBagError("unsafe path %q in %s", decoded, name)
		}

		if err := b.recordEntry(decoded, alg, digest, name); err != nil {
			return err
		}
		b.NormalizedManifestNames[nfc(decoded)] = decoded
	}
	return scanner.Err()
}

func (b *Bag) recordEntry(path, alg, digest, manifestName string) error {
	entry, ok := b.Entries[path]
	if !ok {
		entry = make(map[string]string)
		b.Entries[path] = entry
	}
	existing, had := entry[alg]
	switch {
	case !had:
		entry[alg] = digest
	case strings.EqualFold(existing, digest):
		if b.isAtLeast1() {
			return newBagError("duplicate manifest entry for %s in %s", path, manifestName)
		}
		b.logger.Printf("warning: duplicate manifest entry for %s in %s", path, manifestName)
	default:
		return newBagError("conflicting manifest entries for %s in %s", path, manifestName)
	}
	return nil
}

func (b *Bag) buildNormalizedFilesystemNames() error {
	dataDir := filepath.Join(b.Path, "data")
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		return nil
	}
	relPaths, err := walk.Files(dataDir)
	if err != nil {
		return errors.Wrap(err, "enumerating payload")
	}
	for _, rel := range relPaths {
		full := "data/" + rel
		key := nfc(full)
		if existing, ok := b.NormalizedFilesystemNames[key]; ok && existing != full {
			return &FileNormalizationConflict{FileA: existing, FileB: full}
		}
		b.NormalizedFilesystemNames[key] = full
	}
	return nil
}
