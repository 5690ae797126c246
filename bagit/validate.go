package bagit

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ndlib/bagit/fixity"
	"github.com/ndlib/bagit/walk"
)

// ValidateOptions selects the depth of a validation pass. Fast checks
// only Payload-Oxum; CompletenessOnly stops after confirming every
// payload file is present and accounted for, without recomputing any
// digest; with neither set, every entry's fixity is recomputed and
// compared.
type ValidateOptions struct {
	Processes        int
	Fast             bool
	CompletenessOnly bool
	Logger           *log.Logger
}

// Validate checks bag structure, metadata, and (unless a faster mode was
// requested) fixity. Completeness and fixity problems are collected
// across the whole bag before returning, so a caller sees every problem
// at once; structural and precondition problems return immediately.
func (b *Bag) Validate(opts ValidateOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = b.log()
	}

	if err := b.validateStructure(); err != nil {
		return err
	}
	if err := b.validateBagitTxtBOM(); err != nil {
		return err
	}
	if _, err := b.FetchEntries(); err != nil {
		return err
	}

	if err := b.validateOxum(); err != nil {
		return err
	}

	if opts.Fast {
		if !b.HasOxum() {
			return newBagError("fast validation requires Payload-Oxum, which this bag does not have")
		}
		return nil
	}

	if err := b.validateCompleteness(); err != nil {
		return err
	}
	if opts.CompletenessOnly {
		return nil
	}

	return b.validateFixity(opts.Processes, logger)
}

func (b *Bag) validateStructure() error {
	if info, err := os.Stat(filepath.Join(b.Path, "data")); err != nil || !info.IsDir() {
		return newBagError("bag is missing its data directory")
	}
	if _, err := os.Stat(filepath.Join(b.Path, "bagit.txt")); err != nil {
		return newBagError("bag is missing bagit.txt")
	}
	hasManifest := false
	for _, alg := range b.Algorithms {
		if _, err := os.Stat(filepath.Join(b.Path, "manifest-"+alg+".txt")); err == nil {
			hasManifest = true
			break
		}
	}
	if !hasManifest {
		return newBagError("bag has no manifest-*.txt file")
	}
	return nil
}

func (b *Bag) validateBagitTxtBOM() error {
	raw, err := os.ReadFile(filepath.Join(b.Path, "bagit.txt"))
	if err != nil {
		return newBagError("bag is missing bagit.txt")
	}
	if bytes.HasPrefix(raw, bagitTxtBOM) {
		return newValidationError("bagit.txt must not contain a byte-order mark", nil)
	}
	return nil
}

// validateOxum reports whether Payload-Oxum (if present) matches the
// actual payload on disk. If Payload-Oxum was recorded more than once —
// a malformed but observed-in-the-wild bag — the first value is used and
// a warning logged.
func (b *Bag) validateOxum() error {
	if !b.HasOxum() {
		return nil
	}
	if len(b.Info["Payload-Oxum"]) > 1 {
		b.log().Printf("warning: %s has more than one Payload-Oxum, using the first", b.TagFileName)
	}

	wantBytes, wantFiles, err := b.ParsedOxum()
	if err != nil {
		return err
	}

	relPaths, err := walk.Files(filepath.Join(b.Path, "data"))
	if err != nil {
		return newBagError("could not enumerate payload: %v", err)
	}
	var gotBytes, gotFiles int64
	for _, rel := range relPaths {
		info, err := os.Stat(filepath.Join(b.Path, "data", filepath.FromSlash(rel)))
		if err != nil {
			return newBagError("could not stat %s: %v", rel, err)
		}
		gotBytes += info.Size()
		gotFiles++
	}

	if gotBytes != wantBytes || gotFiles != wantFiles {
		return newBagError("Payload-Oxum mismatch: expected %d.%d, found %d.%d",
			wantBytes, wantFiles, gotBytes, gotFiles)
	}
	return nil
}

func (b *Bag) validateCompleteness() error {
	filesInManifest := make(map[string]bool)
	for key, raw := range b.NormalizedManifestNames {
		if strings.HasPrefix(raw, "data/") {
			filesInManifest[key] = true
		}
	}
	if b.isAtLeast097() {
		for _, tagPath := range b.missingOptionalTagfiles() {
			filesInManifest[nfc(tagPath)] = true
			b.NormalizedManifestNames[nfc(tagPath)] = tagPath
		}
	}

	filesOnFS := make(map[string]bool, len(b.NormalizedFilesystemNames))
	for key := range b.NormalizedFilesystemNames {
		filesOnFS[key] = true
	}

	var details []error
	var missingKeys, extraKeys []string
	for key := range filesInManifest {
		if !filesOnFS[key] {
			missingKeys = append(missingKeys, key)
		}
	}
	for key := range filesOnFS {
		if !filesInManifest[key] {
			extraKeys = append(extraKeys, key)
		}
	}
	sort.Strings(missingKeys)
	sort.Strings(extraKeys)

	for _, key := range missingKeys {
		details = append(details, &FileMissing{Path: b.NormalizedManifestNames[key]})
	}
	for _, key := range extraKeys {
		details = append(details, &UnexpectedFile{Path: b.NormalizedFilesystemNames[key]})
	}

	if len(details) > 0 {
		return newValidationError("bag is incomplete", details)
	}
	return nil
}

func (b *Bag) validateFixity(processes int, logger *log.Logger) error {
	paths := make([]string, 0, len(b.Entries))
	for path := range b.Entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	tasks := make([]fixity.Task, len(paths))
	for i, path := range paths {
		algs := make([]string, 0, len(b.Entries[path]))
		for alg := range b.Entries[path] {
			algs = append(algs, alg)
		}
		sort.Strings(algs)
		tasks[i] = fixity.Task{BasePath: b.Path, RelPath: filepath.FromSlash(path), Algorithms: algs}
	}

	results, _ := fixity.Run(tasks, processes, logger)

	var details []error
	for i, path := range paths {
		r := results[i]
		if r.Err != nil {
			details = append(details, &FileMissing{Path: path})
			continue
		}
		for alg, expected := range b.Entries[path] {
			found, ok := r.Digests[alg]
			if !ok {
				continue
			}
			if !strings.EqualFold(found, expected) {
				details = append(details, &ChecksumMismatch{
					Path: path, Algorithm: alg,
					Expected: strings.ToLower(expected), Found: strings.ToLower(found),
				})
			}
		}
	}

	if len(details) > 0 {
		return newValidationError("bag is invalid", details)
	}
	return nil
}
