// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

func GenerateRandomString(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GenerateSerialNumber produces a human-dictatable license serial of the
// form LIC-XXXXX-XXXXX-XXXXX.
func GenerateSerialNumber() (string, error) {
	const groups = 3
	const groupLen = 5
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no easily confused characters

	parts := make([]string, 0, groups)
	for g := 0; g < groups; g++ {
		b := make([]byte, groupLen)
		for i := range b {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
			if err != nil {
				return "", err
			}
			b[i] = charset[n.Int64()]
		}
		parts = append(parts, string(b))
	}

	return fmt.Sprintf("LIC-%s", strings.Join(parts, "-")), nil
}

// GenerateActivationKey produces the opaque 32-character key presented
// back during activation.
func GenerateActivationKey() (string, error) {
	return GenerateRandomString(32)
}
