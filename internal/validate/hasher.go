package validate

import (
	"crypto/md5"  // #nosec G501 -- used for file integrity verification only
	"crypto/sha1" // #nosec G505 -- used for file integrity verification only
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

func newHasher(algorithm string) (hash.Hash, error) {
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "SHA256":
		return sha256.New(), nil
	case "SHA1":
		return sha1.New(), nil // #nosec G401 -- used for file integrity verification only
	case "SHA512":
		return sha512.New(), nil
	case "SHA384":
		return sha512.New384(), nil
	case "MD5":
		return md5.New(), nil // #nosec G401 -- used for file integrity verification only
	case "XXH64":
		return xxhash.New(), nil
	case "BLAKE3":
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %q", algorithm)
	}
}

// SupportedAlgorithm reports whether name maps to a known hasher.
func SupportedAlgorithm(name string) bool {
	_, err := newHasher(name)
	return err == nil
}

// FileHashHex hashes the full content of path with the named algorithm
// and returns an uppercase hex digest. onProgress, if non-nil, is
// called with byte counts as hashing advances (flushed at 1 MiB
// granularity to keep the callback cheap).
func FileHashHex(path string, algorithm string, onProgress func(n int64)) (string, error) {
	h, err := newHasher(algorithm)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	const bufSize = 1 << 20 // 1 MiB
	buf := make([]byte, bufSize)

	var pending int64
	flush := func() {
		if pending > 0 && onProgress != nil {
			onProgress(pending)
			pending = 0
		}
	}

	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return "", werr
			}
			pending += int64(n)
			if pending >= bufSize {
				flush()
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", rerr
		}
	}
	flush()

	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}
