// Package pathutil implements the path-safety and filename-escaping rules
// that keep a bag's manifest entries from ever naming a file outside the
// bag directory.
package pathutil

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// IsDangerous returns true if path, when taken relative to root, could
// refer to a file system location outside of root. This catches absolute
// paths, home-directory and environment-variable expansions that change
// the string, and manifest entries such as "../../../etc/passwd" that
// escape root once symlinks are resolved.
func IsDangerous(root, path string) bool {
	if filepath.IsAbs(path) {
		return true
	}
	if expandUser(path) != path {
		return true
	}
	if os.ExpandEnv(path) != path {
		return true
	}

	bagReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		bagReal = root
	}
	bagReal = filepath.Clean(bagReal)

	full := filepath.Join(root, path)
	fullReal, err := filepath.EvalSymlinks(full)
	if err != nil {
		// the target need not exist yet (e.g. a manifest entry for a
		// file about to be written); fall back to lexical cleaning of
		// whatever part of the path does exist.
		fullReal = filepath.Clean(full)
	}

	rel, err := filepath.Rel(bagReal, fullReal)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// expandUser mimics os.path.expanduser: it expands a leading "~" or
// "~user" into the relevant home directory, leaving path unchanged if
// there is nothing to expand or the lookup fails.
func expandUser(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	var home string
	if path == "~" || strings.HasPrefix(path, "~/") {
		u, err := user.Current()
		if err != nil {
			return path
		}
		home = u.HomeDir
		return home + path[1:]
	}
	// ~otheruser/rest
	rest := path[1:]
	slash := strings.IndexByte(rest, '/')
	name := rest
	tail := ""
	if slash >= 0 {
		name = rest[:slash]
		tail = rest[slash:]
	}
	u, err := user.Lookup(name)
	if err != nil {
		return path
	}
	return u.HomeDir + tail
}

// Encode replaces the characters that would break a manifest's one-line-
// per-entry format: CR becomes %0D, LF becomes %0A. Order matters only in
// that both must be replaced independently of one another.
func Encode(name string) string {
	name = strings.ReplaceAll(name, "\r", "%0D")
	name = strings.ReplaceAll(name, "\n", "%0A")
	return name
}

// Decode reverses Encode. Matching is case-insensitive on the hex digits
// because bags found in the wild mix "%0a" and "%0A".
func Decode(name string) string {
	name = replaceFold(name, "%0D", "\r")
	name = replaceFold(name, "%0A", "\n")
	return name
}

// replaceFold replaces every case-insensitive occurrence of old in s with
// new. strings.ReplaceAll can't do case folding on its own since old here
// is a fixed-width escape sequence, not a single rune.
func replaceFold(s, old, new string) string {
	var b strings.Builder
	for {
		idx := indexFold(s, old)
		if idx < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:idx])
		b.WriteString(new)
		s = s[idx+len(old):]
	}
	return b.String()
}

func indexFold(s, substr string) int {
	ls, lsub := len(s), len(substr)
	if lsub == 0 || lsub > ls {
		return -1
	}
	for i := 0; i+lsub <= ls; i++ {
		if strings.EqualFold(s[i:i+lsub], substr) {
			return i
		}
	}
	return -1
}
