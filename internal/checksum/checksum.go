// Package checksum verifies local file content against remote-supplied
// hashes. The same comparison serves both the pre-download skip check and
// the post-download verification.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/sly67/alist-mirror/internal/alist"
)

// ErrChecksumMismatch means a written file does not match the remote hash.
var ErrChecksumMismatch = errors.New("checksum mismatch")

const chunkSize = 8192

// newHasher returns the streaming digest for a hash algorithm.
func newHasher(algo alist.HashAlgo) (hash.Hash, error) {
	switch algo {
	case alist.HashSHA1:
		return sha1.New(), nil
	case alist.HashMD5:
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algo)
	}
}

// Compute streams the file through the given digest and returns the
// lowercase hex sum.
func Compute(path string, algo alist.HashAlgo) (string, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether the file at path matches the remote hash. A
// missing local file is a plain false, not an error. A nil or empty hash
// never matches.
func Verify(path string, hi *alist.HashInfo) (bool, error) {
	if hi.Algo() == alist.HashNone {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	computed, err := Compute(path, hi.Algo())
	if err != nil {
		return false, err
	}
	return computed == hi.Sum(), nil
}
