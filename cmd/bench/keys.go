package bench

import (
	"math/rand"
)

const keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// uniqueKeys returns n distinct random alphanumeric keys of the given length. The
// length is raised until the key space can hold n keys.
func uniqueKeys(rng *rand.Rand, n, length int) []string {
	for capacity(length) < n {
		length++
	}

	seen := make(map[string]struct{}, n)
	keys := make([]string, 0, n)
	buf := make([]byte, length)
	for len(keys) < n {
		for i := range buf {
			buf[i] = keyAlphabet[rng.Intn(len(keyAlphabet))]
		}
		k := string(buf)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// randomBytes returns n random bytes
func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	_, _ = rng.Read(b)
	return b
}

// capacity is the number of distinct keys of the given length, saturating at the
// largest int
func capacity(length int) int {
	c := 1
	for i := 0; i < length; i++ {
		if c > (1<<62)/len(keyAlphabet) {
			return 1 << 62
		}
		c *= len(keyAlphabet)
	}
	return c
}
