package bagit

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ndlib/bagit/fixity"
	"github.com/ndlib/bagit/pathutil"
	"github.com/ndlib/bagit/walk"
	"github.com/pkg/errors"
)

// ManifestResult is what building a bag's payload manifests produces: the
// totals that go into Payload-Oxum.
type ManifestResult struct {
	TotalBytes int64
	TotalFiles int64
}

// buildManifests hashes every file under bagPath/data with every
// algorithm in algorithms (optionally spread across a pool of processes
// goroutines), writes one manifest-<alg>.txt per algorithm, and returns
// the oxum totals. Nothing is written to disk until every file has been
// hashed successfully, so a failed run never leaves a partial manifest.
func buildManifests(bagPath string, algorithms []string, processes int, logger *log.Logger) (ManifestResult, error) {
	dataDir := filepath.Join(bagPath, "data")

	relPaths, err := walk.Files(dataDir)
	if err != nil {
		return ManifestResult{}, errors.Wrap(err, "enumerating payload")
	}

	tasks := make([]fixity.Task, len(relPaths))
	for i, rel := range relPaths {
		tasks[i] = fixity.Task{
			BasePath:   dataDir,
			RelPath:    filepath.FromSlash(rel),
			Algorithms: algorithms,
		}
	}

	results, err := fixity.Run(tasks, processes, logger)
	if err != nil {
		return ManifestResult{}, err
	}

	if err := checkCrossAlgorithmConsistency(algorithms, results); err != nil {
		return ManifestResult{}, err
	}

	var totalBytes, totalFiles int64
	perAlgLines := make(map[string][]string, len(algorithms))
	for _, r := range results {
		manifestPath := "data/" + filepath.ToSlash(r.Path)
		totalBytes += r.Size
		totalFiles++
		for _, alg := range algorithms {
			digest, ok := r.Digests[alg]
			if !ok {
				continue
			}
			line := fmt.Sprintf("%s  %s\n", digest, pathutil.Encode(manifestPath))
			perAlgLines[alg] = append(perAlgLines[alg], line)
		}
	}

	for _, alg := range algorithms {
		name := filepath.Join(bagPath, "manifest-"+alg+".txt")
		if err := writeLines(name, perAlgLines[alg]); err != nil {
			return ManifestResult{}, err
		}
	}

	return ManifestResult{TotalBytes: totalBytes, TotalFiles: totalFiles}, nil
}

// checkCrossAlgorithmConsistency enforces that every algorithm's tally
// agrees on how many files were hashed and how many bytes they sum to.
// With this package's single-read-many-hashers design the condition is
// structurally guaranteed, but it is still checked explicitly since it is
// an externally observable invariant a caller may depend on.
func checkCrossAlgorithmConsistency(algorithms []string, results []fixity.Result) error {
	fileCounts := make(map[int]bool)
	byteSums := make(map[int64]bool)
	for _, alg := range algorithms {
		var count int
		var sum int64
		for _, r := range results {
			if _, ok := r.Digests[alg]; ok {
				count++
				sum += r.Size
			}
		}
		fileCounts[count] = true
		byteSums[sum] = true
	}
	if len(fileCounts) > 1 || len(byteSums) > 1 {
		return newBagError("manifest algorithms disagree on file count or total size")
	}
	return nil
}

// buildTagManifest hashes every tag file in the bag (every regular file
// outside data/ that is not itself a tagmanifest) and writes
// tagmanifest-<alg>.txt.
func buildTagManifest(bagPath, algorithm string, logger *log.Logger) error {
	relPaths, err := tagFilePaths(bagPath)
	if err != nil {
		return errors.Wrap(err, "enumerating tag files")
	}

	var lines []string
	for _, rel := range relPaths {
		full := filepath.Join(bagPath, filepath.FromSlash(rel))
		hashers, err := fixity.GetHashers([]string{algorithm}, logger)
		if err != nil {
			return err
		}
		digests, _, err := fixity.HashFile(full, hashers)
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%s %s\n", digests[algorithm], rel))
	}

	name := filepath.Join(bagPath, "tagmanifest-"+algorithm+".txt")
	return writeLines(name, lines)
}

// tagFilePaths lists every tag file: top-level files of bagPath (other
// than tagmanifest-* files) plus the full recursive contents of every
// top-level directory except data/.
func tagFilePaths(bagPath string) ([]string, error) {
	entries, err := os.ReadDir(bagPath)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var result []string
	for _, e := range entries {
		name := e.Name()
		if name == "data" {
			continue
		}
		if !e.IsDir() {
			if strings.HasPrefix(name, "tagmanifest-") {
				continue
			}
			result = append(result, name)
			continue
		}
		nested, err := walk.Files(filepath.Join(bagPath, name))
		if err != nil {
			return nil, err
		}
		for _, n := range nested {
			result = append(result, name+"/"+n)
		}
	}
	return result, nil
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, l := range lines {
		if _, err := w.WriteString(l); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
	}
	return errors.Wrapf(w.Flush(), "writing %s", path)
}
