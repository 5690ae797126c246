package bagit

import (
	"fmt"
	"strings"
)

// BagError is the generic fatal condition: an unsupported bag version, an
// unsafe path, a missing permission, a malformed Payload-Oxum. It carries
// no further structure because, unlike BagValidationError, there is
// nothing useful to aggregate — the caller's run stops at the first one.
type BagError struct {
	Message string
}

func (e *BagError) Error() string { return e.Message }

func newBagError(format string, args ...interface{}) *BagError {
	return &BagError{Message: fmt.Sprintf(format, args...)}
}

// ChecksumMismatch is a validation detail: a payload or tag file's
// recomputed digest does not match the one recorded in its manifest.
type ChecksumMismatch struct {
	Path      string
	Algorithm string
	Expected  string
	Found     string
}

func (e *ChecksumMismatch) Error() string {
	return fmt.Sprintf("%s: expected %s(%s)=%s, found %s", e.Path, e.Algorithm, e.Path, e.Expected, e.Found)
}

// FileMissing is a validation detail: a manifest entry has no
// corresponding file on disk.
type FileMissing struct {
	Path string
}

func (e *FileMissing) Error() string {
	return fmt.Sprintf("%s exists in manifest but not in file system", e.Path)
}

// UnexpectedFile is a validation detail: a file on disk has no
// corresponding manifest entry.
type UnexpectedFile struct {
	Path string
}

func (e *UnexpectedFile) Error() string {
	return fmt.Sprintf("%s exists on file system but is not in manifest", e.Path)
}

// FileNormalizationConflict is raised when two distinct on-disk names
// normalize to the same NFC key, so neither can be unambiguously matched
// against a manifest entry.
type FileNormalizationConflict struct {
	FileA string
	FileB string
}

func (e *FileNormalizationConflict) Error() string {
	return fmt.Sprintf("%q and %q both normalize to the same name", e.FileA, e.FileB)
}

// BagValidationError aggregates every detail found during one validation
// pass — completeness and fixity errors are collected across the whole
// bag before this is raised, so a caller sees every problem at once.
type BagValidationError struct {
	Message string
	Details []error
}

func (e *BagValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	lines := make([]string, len(e.Details))
	for i, d := range e.Details {
		lines[i] = d.Error()
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(lines, "; "))
}

func newValidationError(message string, details []error) *BagValidationError {
	return &BagValidationError{Message: message, Details: details}
}
