package core

import (
	"crypto/rand"
	"fmt"
)

const (
	// DefaultNonceLength is the nonce length used for sign-in attempts
	DefaultNonceLength = 16

	// MinNonceLength is the shortest nonce a SIWF message accepts
	MinNonceLength = 8

	nonceAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Largest multiple of len(nonceAlphabet) that fits in a byte; bytes at
	// or above it are discarded so every character is equally likely.
	nonceByteLimit = 256 - 256%len(nonceAlphabet)
)

// GenerateNonce returns a random alphanumeric string of the given length
// read from crypto/rand. A failing random source is returned as an error.
func GenerateNonce(length int) (string, error) {
	if length < MinNonceLength {
		return "", ErrInvalidNonceLength
	}

	nonce := make([]byte, 0, length)
	buf := make([]byte, length+length/4)
	for len(nonce) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate nonce: %w", err)
		}
		for _, b := range buf {
			if int(b) >= nonceByteLimit {
				continue
			}
			nonce = append(nonce, nonceAlphabet[int(b)%len(nonceAlphabet)])
			if len(nonce) == length {
				break
			}
		}
	}

	return string(nonce), nil
}
