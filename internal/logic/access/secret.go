package access

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	secretLength   = 12
)

// generateSecret mints a fixed-length alphanumeric secret from a
// cryptographically strong source. Per-character draws avoid modulo bias.
func generateSecret() (string, error) {
	alphabetLen := big.NewInt(int64(len(secretAlphabet)))
	out := make([]byte, secretLength)

	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("draw secret character: %w", err)
		}

		out[i] = secretAlphabet[n.Int64()]
	}

	return string(out), nil
}
