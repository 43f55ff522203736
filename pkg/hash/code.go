package hash

import (
	"crypto/sha256"
	"fmt"
)

// CodeHasher provides hashing logic to store one-time codes and link tokens
// without their plaintext.
type CodeHasher interface {
	Hash(code string) (string, error)
}

// SHA256Hasher uses SHA256 to hash codes with provided salt.
type SHA256Hasher struct {
	salt string
}

func NewSHA256Hasher(salt string) *SHA256Hasher {
	return &SHA256Hasher{salt: salt}
}

func (h *SHA256Hasher) Hash(code string) (string, error) {
	hash := sha256.New()

	if _, err := hash.Write([]byte(code)); err != nil {
		return "", err
	}

	//nolint:perfsprint
	return fmt.Sprintf("%x", hash.Sum([]byte(h.salt))), nil
}
