package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash is a SHA-256 content digest. It is the primary key for every artifact
// produced by the pipeline: identical bytes always yield the identical hash.
type Hash [32]byte

// HashBytes computes the content hash of a byte slice.
func HashBytes(data []byte) Hash {
	return sha256.Sum256(data)
}

// String returns the lowercase hex form of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex characters, for logs and filenames.
func (h Hash) Short() string {
	return h.String()[:12]
}

// IsZero reports whether the hash is the zero value.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText implements encoding.TextMarshaler so hashes serialize as hex
// strings in JSON values and as JSON object keys.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	if len(text) != hex.EncodedLen(len(h)) {
		return fmt.Errorf("invalid hash length %d", len(text))
	}
	_, err := hex.Decode(h[:], text)
	return err
}

// ParseHash decodes a lowercase hex hash string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	err := h.UnmarshalText([]byte(s))
	return h, err
}
