package random

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// Random provides id and code generation that can be mocked for testing
type Random interface {
	// Code generates a random string of the given length from the given alphabet
	Code(length int, alphabet string) string

	// UUID generates a random UUID string
	UUID() string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Code generates a random string of the given length from the given alphabet
func (r *CryptoRandom) Code(length int, alphabet string) string {
	if length <= 0 || len(alphabet) == 0 {
		return ""
	}
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = alphabet[intn(len(alphabet))]
	}
	return string(result)
}

// UUID generates a random UUID string
func (r *CryptoRandom) UUID() string {
	return uuid.NewString()
}

func intn(n int) int {
	max := big.NewInt(int64(n))
	result, err := rand.Int(rand.Reader, max)
	if err != nil {
		// Fall back to 0 on error (should never happen with crypto/rand)
		return 0
	}
	return int(result.Int64())
}
