package signer

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Clock provides the current time for timestamp generation.
type Clock interface {
	Now() time.Time
}

// SystemClock uses the system time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type fixedClock struct {
	time time.Time
}

func (c fixedClock) Now() time.Time {
	return c.time
}

// FixedClock returns a Clock that always returns t.
func FixedClock(t time.Time) Clock {
	return fixedClock{time: t}
}

// NonceSource produces the per-request nonce of a signature.
type NonceSource interface {
	Nonce() (string, error)
}

// RandomNonce draws Size bytes from crypto/rand and hex encodes them.
type RandomNonce struct {
	Size int
}

func (r RandomNonce) Nonce() (string, error) {
	size := r.Size
	if size <= 0 {
		size = 16
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type fixedNonce string

func (n fixedNonce) Nonce() (string, error) {
	return string(n), nil
}

// FixedNonce returns a NonceSource that always yields nonce.
func FixedNonce(nonce string) NonceSource {
	return fixedNonce(nonce)
}
