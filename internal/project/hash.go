package project

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// Digest is a sha256 sum.
type Digest [32]byte

// ContentDigest hashes a generated artifact.
func ContentDigest(content []byte) Digest {
	return sha256.Sum256(content)
}

// FileDigest hashes the content of the file at path.
func FileDigest(path string) (Digest, error) {
	// #nosec G304 -- path names a graph file chosen by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return Digest{}, err
	}
	return ContentDigest(data), nil
}

// Combine hashes the concatenation of the digests; callers fix the order.
func Combine(first Digest, rest ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(first[:])
	for _, d := range rest {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Short returns the first 12 hex characters, enough for display.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:6])
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}
