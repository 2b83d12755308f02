// Package id generates unique identifiers.
//
// Request log entries use ULIDs: 26-character, Crockford-Base32 encoded
// identifiers that embed a millisecond timestamp, so lexicographic order
// is creation order. That property is what makes beforeId pagination on
// the request log a plain string comparison.
package id

import (
	"crypto/rand"
	"sync"
	"time"
)

// encoding is Crockford's Base32 (I, L, O, U excluded).
const encoding = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var (
	mu      sync.Mutex
	lastMs  int64
	lastRnd [10]byte
)

// New returns a new ULID. Within one millisecond the random component is
// incremented instead of redrawn, so IDs generated by one process always
// sort by call order.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UnixMilli()
	if now == lastMs {
		// Monotonic mode: bump the previous random value. Overflow of
		// all 80 bits would need 2^80 calls in one millisecond.
		for i := 9; i >= 0; i-- {
			lastRnd[i]++
			if lastRnd[i] != 0 {
				break
			}
		}
	} else {
		_, _ = rand.Read(lastRnd[:])
		// Keep the top bit clear so monotonic increments within the
		// millisecond cannot overflow.
		lastRnd[0] &= 0x7F
	}
	lastMs = now
	rnd := lastRnd

	var out [26]byte

	// 48-bit timestamp in the first 10 characters.
	ms := uint64(now)
	for i := 9; i >= 0; i-- {
		out[i] = encoding[ms&0x1F]
		ms >>= 5
	}

	// 80 bits of randomness in the remaining 16 characters.
	var acc uint16
	bits := 0
	pos := 10
	for _, b := range rnd {
		acc = acc<<8 | uint16(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[pos] = encoding[(acc>>bits)&0x1F]
			pos++
		}
	}

	return string(out[:])
}

// Valid reports whether s is a well-formed ULID.
func Valid(s string) bool {
	if len(s) != 26 {
		return false
	}
	for i := 0; i < len(s); i++ {
		ok := false
		for j := 0; j < len(encoding); j++ {
			if encoding[j] == s[i] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
