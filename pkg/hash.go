package cashier

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// ErrUnsupportedAlgorithm is returned for an unknown digest algorithm name
var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

// Digest is a lowercase hex encoded hash value. The empty Digest means absent.
type Digest string

// IsZero reports whether the digest is absent
func (d Digest) IsZero() bool {
	return d == ""
}

// HashAlgorithm represents a hash algorithm configuration
type HashAlgorithm struct {
	Name    string
	NewFunc func() hash.Hash
}

// GetHashAlgorithm returns the hash algorithm configuration for the given name
func GetHashAlgorithm(name string) (*HashAlgorithm, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return &HashAlgorithm{
			Name:    "sha1",
			NewFunc: func() hash.Hash { return sha1.New() },
		}, nil
	case "sha256":
		return &HashAlgorithm{
			Name:    "sha256",
			NewFunc: func() hash.Hash { return sha256.New() },
		}, nil
	case "sha512":
		return &HashAlgorithm{
			Name:    "sha512",
			NewFunc: func() hash.Hash { return sha512.New() },
		}, nil
	case "blake3":
		return &HashAlgorithm{
			Name:    "blake3",
			NewFunc: func() hash.Hash { return blake3.New() },
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, name)
	}
}

// HashBytes returns the digest of data
func (a *HashAlgorithm) HashBytes(data []byte) Digest {
	hasher := a.NewFunc()
	hasher.Write(data)
	return Digest(hex.EncodeToString(hasher.Sum(nil)))
}

// HashString returns the digest of s
func (a *HashAlgorithm) HashString(s string) Digest {
	hasher := a.NewFunc()
	io.WriteString(hasher, s)
	return Digest(hex.EncodeToString(hasher.Sum(nil)))
}

// HashFileInterruptible calculates the hash of a file using a configurable buffer size
// and checks for cancellation between buffer reads.
func HashFileInterruptible(ctx context.Context, filePath string, algorithm *HashAlgorithm, bufferSize int) (Digest, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	if bufferSize <= 0 {
		bufferSize = 32 * 1024
	}
	hasher := algorithm.NewFunc()
	buffer := make([]byte, bufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("hash of %s interrupted: %w", filePath, err)
		}

		n, err := file.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read from file %s: %w", filePath, err)
		}
	}

	return Digest(hex.EncodeToString(hasher.Sum(nil))), nil
}

// NormalizeName is the case folding applied to every name before it enters a
// structure digest or the child ordering.
func NormalizeName(name string) string {
	return strings.ToLower(name)
}

// NamedDigest pairs a normalized child name with the child's structure digest
type NamedDigest struct {
	Name      string
	Structure Digest
}

// TimedDigest pairs a child's content digest with its modification time
type TimedDigest struct {
	Content Digest
	MTime   float64
}

// LeafDigest is the content digest of raw file bytes
func (a *HashAlgorithm) LeafDigest(data []byte) Digest {
	return a.HashBytes(data)
}

// FileStructureDigest is the structure value of a file: its normalized name
// itself, so a parent folds name+name for each file. Existing .cash_file
// records depend on this.
func (a *HashAlgorithm) FileStructureDigest(name string) Digest {
	return Digest(NormalizeName(name))
}

// StructureDigest folds ordered (name, structure digest) pairs. No children
// yields the digest of the empty string.
func (a *HashAlgorithm) StructureDigest(children []NamedDigest) Digest {
	hasher := a.NewFunc()
	for _, child := range children {
		io.WriteString(hasher, child.Name)
		io.WriteString(hasher, string(child.Structure))
	}
	return Digest(hex.EncodeToString(hasher.Sum(nil)))
}

// Combine folds ordered child content digests into a directory content digest
// and returns the latest child modification time (0 with no children).
func (a *HashAlgorithm) Combine(children []TimedDigest) (Digest, float64) {
	hasher := a.NewFunc()
	var maxTime float64
	for _, child := range children {
		io.WriteString(hasher, string(child.Content))
		if child.MTime > maxTime {
			maxTime = child.MTime
		}
	}
	return Digest(hex.EncodeToString(hasher.Sum(nil))), maxTime
}

// Fingerprint is the published digest of a whole tree
func (a *HashAlgorithm) Fingerprint(structure, content Digest) Digest {
	return a.HashString(string(structure) + string(content))
}
