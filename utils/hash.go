package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash identifies file content independently of its name or storage key.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
