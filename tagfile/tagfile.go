// Package tagfile reads and writes the RFC 2822-style "tag files" used
// throughout a bag, such as bagit.txt and bag-info.txt. Tag files fold
// long values onto continuation lines the way mail headers do, and may be
// found saved with a UTF-8 byte-order mark, which the BagIt RFC does not
// allow.
package tagfile

import (
	"bufio"
	"bytes"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// utf8BOM is the three-byte UTF-8 byte-order mark. Tag files are
// permitted to carry one, but a bag recorded as encoded in UTF-8 that
// does so is out of compliance with the RFC and load warns about it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Tags is the parsed form of a tag file: each header name maps to every
// value given for it, in the order they appeared. A header that appears
// once still has a one-element slice, matching the RFC 2822 allowance for
// repeated field names.
type Tags map[string][]string

// Get returns the first value for name, or "" if name was never present.
func (t Tags) Get(name string) string {
	if vs := t[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Load reads and parses the tag file at path as UTF-8. If the file begins
// with a UTF-8 byte-order mark, the mark is skipped and a warning is
// logged, since the RFC considers a BOM in a UTF-8 tag file
// non-compliant. Byte-order marks of other encodings (UTF-16, UTF-32) are
// not recognized or removed, and such files are not decoded.
func Load(path string, logger *log.Logger) (Tags, error) {
	if logger == nil {
		logger = log.Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading tag file %s", path)
	}

	if bytes.HasPrefix(raw, utf8BOM) {
		logger.Printf("warning: %s is encoded using UTF-8 but contains an unnecessary"+
			" byte-order mark, which is not in compliance with the BagIt RFC", path)
		raw = raw[len(utf8BOM):]
	}

	tags, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing tag file %s", path)
	}
	return tags, nil
}

// Parse reads RFC 2822-style tag lines from r: "Name: value" pairs where
// a line beginning with whitespace is a continuation (fold) of the
// previous value rather than a new tag.
func Parse(r io.Reader) (Tags, error) {
	tags := make(Tags)

	var name string
	var value strings.Builder
	have := false

	flush := func() {
		if have {
			tags[name] = append(tags[name], strings.TrimSpace(value.String()))
		}
		value.Reset()
		have = false
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isFold(line) && have {
			value.WriteByte(' ')
			value.WriteString(strings.TrimSpace(line))
			continue
		}

		flush()

		idx := strings.Index(line, ":")
		if idx < 0 {
			return nil, errors.Errorf("invalid tag line: %q", line)
		}
		name = strings.TrimSpace(line[:idx])
		value.WriteString(line[idx+1:])
		have = true
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return tags, nil
}

// isFold reports whether line begins with whitespace, marking it as a
// continuation of the previous tag's value rather than a new tag. A rune
// is decoded rather than indexing byte 0 directly so a multi-byte
// leading rune is not mistaken for whitespace.
func isFold(line string) bool {
	if line == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(line)
	return r == ' ' || r == '\t'
}

// Write renders tags as a tag file at path. Headers are written in
// lexicographic order and a header with more than one value produces one
// line per value — both choices make repeated writes of the same Tags
// byte-for-byte identical, which tagmanifest fixity depends on. A CR or
// LF embedded in a value is dropped rather than folded, since a folded
// value round-trips as a single space-joined line anyway.
func Write(path string, tags Tags) error {
	var buf bytes.Buffer

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, v := range tags[name] {
			v = strings.NewReplacer("\r", "", "\n", "").Replace(v)
			buf.WriteString(name)
			buf.WriteString(": ")
			buf.WriteString(v)
			buf.WriteByte('\n')
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "writing tag file %s", path)
	}
	return nil
}
