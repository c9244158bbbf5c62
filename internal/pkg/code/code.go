package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Length is the verification code length. Request validation tags that check
// code fields must agree with this value.
const Length = 5

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate returns a cryptographically random verification code of Length
// characters.
func Generate() (string, error) {
	b := make([]byte, Length)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("generate verification code: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
