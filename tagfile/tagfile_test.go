package tagfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseBasic(t *testing.T) {
	in := "Source-Organization: University of Virginia Alderman Library\n" +
		"Contact-Name: Eric Rochester\n" +
		"Bag-Size: 260 KB\n"

	tags, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if tags.Get("Source-Organization") != "University of Virginia Alderman Library" {
		t.Errorf("Source-Organization = %q", tags.Get("Source-Organization"))
	}
	if tags.Get("Contact-Name") != "Eric Rochester" {
		t.Errorf("Contact-Name = %q", tags.Get("Contact-Name"))
	}
}

func TestParseFoldedLine(t *testing.T) {
	in := "Bag-Description: a very long description that\n" +
		"  spans multiple physical lines\n" +
		"  in the tag file\n"

	tags, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := "a very long description that spans multiple physical lines in the tag file"
	if tags.Get("Bag-Description") != want {
		t.Errorf("Bag-Description = %q, want %q", tags.Get("Bag-Description"), want)
	}
}

func TestParseRepeatedHeader(t *testing.T) {
	in := "Internal-Sender-Identifier: one\nInternal-Sender-Identifier: two\n"
	tags, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(tags["Internal-Sender-Identifier"]) != 2 {
		t.Fatalf("got %v", tags["Internal-Sender-Identifier"])
	}
}

func TestParseMissingColon(t *testing.T) {
	_, err := Parse(strings.NewReader("not a valid tag line\n"))
	if err == nil {
		t.Error("expected an error for a line with no colon")
	}
}

func TestLoadStripsUTF8BOM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bag-info.txt")
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Bagging-Date: 2020-01-01\n")...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	tags, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tags.Get("Bagging-Date") != "2020-01-01" {
		t.Errorf("Bagging-Date = %q", tags.Get("Bagging-Date"))
	}
}

func TestWriteSortsHeadersAndSplitsMultiValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bag-info.txt")

	tags := Tags{
		"Source-Organization": {"Example Org"},
		"Internal-Sender-Identifier": {"one", "two"},
	}
	if err := Write(path, tags); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "Internal-Sender-Identifier: one\n" +
		"Internal-Sender-Identifier: two\n" +
		"Source-Organization: Example Org\n"
	if string(got) != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteThenParseRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bag-info.txt")

	original := Tags{
		"Source-Organization":        {"Example Org"},
		"Internal-Sender-Identifier": {"one", "two"},
		"Contact-Name":               {"Jane Doe"},
	}
	if err := Write(path, original); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(original, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteStripsEmbeddedNewlines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bag-info.txt")

	if err := Write(path, Tags{"Contact-Name": {"a\r\nb"}}); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "Contact-Name: ab\n" {
		t.Errorf("got %q", got)
	}
}
