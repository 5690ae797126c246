package bagit

import (
	"os"
	"path/filepath"
	"testing"
)

// fixtureFiles is a convenience map from path (relative to the bag
// directory, forward-slash) to file contents, used to stand up a bag
// fixture directly on disk without going through MakeBag.
type fixtureFiles map[string]string

func writeFixture(t *testing.T, files fixtureFiles) string {
	t.Helper()
	dir := t.TempDir()
	for rel, contents := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(contents), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func minimalBagFixture(t *testing.T, extra fixtureFiles) string {
	t.Helper()
	files := fixtureFiles{
		"bagit.txt":           "BagIt-Version: 0.97\nTag-File-Character-Encoding: UTF-8\n",
		"bag-info.txt":        "Payload-Oxum: 6.1\nBagging-Date: 2020-01-01\n",
		"data/hello.txt":      "hello\n",
		"manifest-sha256.txt": "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03  data/hello.txt\n",
	}
	for k, v := range extra {
		files[k] = v
	}
	return writeFixture(t, files)
}

func TestOpenReadsVersionAndEncoding(t *testing.T) {
	dir := minimalBagFixture(t, nil)
	b, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if b.VersionMajor != 0 || b.VersionMinor != 97 {
		t.Errorf("version = %d.%d, want 0.97", b.VersionMajor, b.VersionMinor)
	}
	if b.Encoding != "UTF-8" {
		t.Errorf("encoding = %q", b.Encoding)
	}
	if b.TagFileName != "bag-info.txt" {
		t.Errorf("tag file name = %q, want bag-info.txt", b.TagFileName)
	}
}

func TestOpenPackageInfoForOldVersions(t *testing.T) {
	dir := minimalBagFixture(t, fixtureFiles{
		"bagit.txt": "BagIt-Version: 0.94\nTag-File-Character-Encoding: UTF-8\n",
	})
	b, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if b.TagFileName != "package-info.txt" {
		t.Errorf("tag file name = %q, want package-info.txt", b.TagFileName)
	}
}

func TestOpenRejectsUnsupportedVersion(t *testing.T) {
	dir := minimalBagFixture(t, fixtureFiles{
		"bagit.txt": "BagIt-Version: 2.0\nTag-File-Character-Encoding: UTF-8\n",
	})
	if _, err := Open(dir, nil); err == nil {
		t.Error("expected an error opening an unsupported version")
	}
}

func TestOpenRejectsBagitTxtBOM(t *testing.T) {
	dir := minimalBagFixture(t, nil)
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("BagIt-Version: 0.97\nTag-File-Character-Encoding: UTF-8\n")...)
	if err := os.WriteFile(filepath.Join(dir, "bagit.txt"), content, 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(dir, nil)
	if err == nil {
		t.Fatal("expected an error for a BOM-prefixed bagit.txt")
	}
	ve, ok := err.(*BagValidationError)
	if !ok {
		t.Fatalf("got %T, want *BagValidationError", err)
	}
	if ve.Message != "bagit.txt must not contain a byte-order mark" {
		t.Errorf("message = %q", ve.Message)
	}
}

func TestOpenRejectsUnsafeManifestPath(t *testing.T) {
	dir := minimalBagFixture(t, fixtureFiles{
		"manifest-sha256.txt": "deadbeef  data/../../../etc/passwd\n",
	})
	if _, err := Open(dir, nil); err == nil {
		t.Error("expected an error for an unsafe manifest path")
	}
}

func TestOpenNormalizesDotSegmentsInManifestPath(t *testing.T) {
	dir := minimalBagFixture(t, fixtureFiles{
		"manifest-sha256.txt": "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03  data/./hello.txt\n",
	})
	b, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Entries["data/hello.txt"]; !ok {
		t.Fatalf("Entries = %v, want a data/hello.txt key", b.Entries)
	}
	if err := b.Validate(ValidateOptions{CompletenessOnly: true}); err != nil {
		t.Errorf("completeness validation failed after normalizing a dotted manifest path: %v", err)
	}
}

func TestOpenDuplicateEntrySameDigestWarnsBelow1(t *testing.T) {
	dir := minimalBagFixture(t, fixtureFiles{
		"manifest-sha256.txt": "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03  data/hello.txt\n" +
			"5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03  data/hello.txt\n",
	})
	if _, err := Open(dir, nil); err != nil {
		t.Fatalf("expected a warning, not a failure, for version < 1.0: %v", err)
	}
}

func TestOpenDuplicateEntrySameDigestFailsAtOrAbove1(t *testing.T) {
	dir := minimalBagFixture(t, fixtureFiles{
		"bagit.txt": "BagIt-Version: 1.0\nTag-File-Character-Encoding: UTF-8\n",
		"manifest-sha256.txt": "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03  data/hello.txt\n" +
			"5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03  data/hello.txt\n",
	})
	if _, err := Open(dir, nil); err == nil {
		t.Error("expected a failure for a duplicate entry at version 1.0")
	}
}

func TestOpenDuplicateEntryDifferentDigestAlwaysFails(t *testing.T) {
	dir := minimalBagFixture(t, fixtureFiles{
		"manifest-sha256.txt": "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03  data/hello.txt\n" +
			"0000000000000000000000000000000000000000000000000000000000000000  data/hello.txt\n",
	})
	if _, err := Open(dir, nil); err == nil {
		t.Error("expected a failure for conflicting manifest entries")
	}
}
