package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for table hash distribution.
// Every engine draws its own seed so that key placement differs between processes.
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the clock, only if the system random source is unavailable
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// HashString hashes a table key with FNV-1a, mixing in the given seed
func HashString(s string, seed uint64) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64) ^ seed
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return hash
}

// NewKeyHasher returns a hasher for xsync.NewMapOfWithHasher that combines the per map
// seed handed out by xsync with a per engine seed.
func NewKeyHasher(engineSeed uint64) func(string, uint64) uint64 {
	return func(key string, mapSeed uint64) uint64 {
		return HashString(key, engineSeed^mapSeed)
	}
}
