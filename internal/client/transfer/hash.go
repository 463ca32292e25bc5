package transfer

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Integrity hashes are xxHash64 digests printed as 16 lowercase hex digits.

func formatDigest(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

func HashBytes(b []byte) string {
	return formatDigest(xxhash.Sum64(b))
}

func HashReader(r io.Reader) (string, error) {
	d := xxhash.New()
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	return formatDigest(d.Sum64()), nil
}

func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f)
}
