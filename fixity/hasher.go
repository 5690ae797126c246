// Package fixity computes the per-file digests a bag's manifests record,
// optionally spreading the work across a bounded pool of goroutines.
package fixity

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"log"
	"os"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
)

// BlockSize is the number of bytes read from a file at a time while
// hashing. All requested algorithms are fed the same block before the
// next block is read, so a file is only ever read once regardless of how
// many algorithms are requested.
const BlockSize = 512 * 1024

// newHasher is the set of algorithm names this package knows how to
// instantiate, and the constructor to use for each.
var newHasher = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// FixityReadError is returned by HashFile when the underlying file could
// not be fully read. Path names the file that failed.
type FixityReadError struct {
	Path string
	Err  error
}

func (e *FixityReadError) Error() string {
	return "could not read " + e.Path + ": " + e.Err.Error()
}

func (e *FixityReadError) Unwrap() error { return e.Err }

// GetHashers returns a freshly constructed hash.Hash for every algorithm
// named in algorithms. Any algorithm this package does not recognize is
// silently dropped and logged as a warning, matching the platform-support
// check Python's hashlib.new performs. If no algorithm is recognized, an
// error is returned.
func GetHashers(algorithms []string, logger *log.Logger) (map[string]hash.Hash, error) {
	logger = orDefault(logger)
	hashers := make(map[string]hash.Hash, len(algorithms))
	for _, alg := range algorithms {
		ctor, ok := newHasher[alg]
		if !ok {
			logger.Printf("warning: disabling requested hash algorithm %s: not supported", alg)
			continue
		}
		hashers[alg] = ctor()
	}
	if len(hashers) == 0 {
		return nil, errors.New("unable to continue: none of the requested hash algorithms are supported")
	}
	return hashers, nil
}

// HashFile reads path in BlockSize blocks, feeding every block to every
// hasher in hashers, and returns the hex digest each hasher produced along
// with the total number of bytes read. hashers is consumed: callers
// should pass freshly constructed hash.Hash values (e.g. from GetHashers).
func HashFile(path string, hashers map[string]hash.Hash) (digests map[string]string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &FixityReadError{Path: path, Err: err}
	}
	defer f.Close()

	writers := make([]io.Writer, 0, len(hashers))
	for _, h := range hashers {
		writers = append(writers, h)
	}
	mw := io.MultiWriter(writers...)

	buf := make([]byte, BlockSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			size += int64(n)
			if _, werr := mw.Write(buf[:n]); werr != nil {
				wrapped := errors.Wrapf(werr, "hashing %s", path)
				raven.CaptureError(wrapped, map[string]string{"path": path})
				return nil, 0, &FixityReadError{Path: path, Err: wrapped}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			wrapped := errors.Wrapf(readErr, "reading %s", path)
			raven.CaptureError(wrapped, map[string]string{"path": path})
			return nil, 0, &FixityReadError{Path: path, Err: wrapped}
		}
	}

	digests = make(map[string]string, len(hashers))
	for alg, h := range hashers {
		digests[alg] = hex.EncodeToString(h.Sum(nil))
	}
	return digests, size, nil
}

func orDefault(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}
