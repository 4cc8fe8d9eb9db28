// Package randid generates short random identifiers.
package randid

import (
	"crypto/rand"
	"math/big"
)

const (
	letters = "abcdefghijklmnopqrstuvwxyz"
	digits  = "0123456789"
)

// Generate returns a random lowercase alphanumeric string of length n. The
// first character is always a letter so ids never parse as version numbers.
func Generate(n int) string {
	b := make([]byte, n)
	for i := range b {
		set := letters + digits
		if i == 0 {
			set = letters
		}
		b[i] = set[pick(len(set))]
	}
	return string(b)
}

func pick(n int) int64 {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("randid: crypto/rand failed: " + err.Error())
	}
	return idx.Int64()
}
