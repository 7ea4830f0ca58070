package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Generator creates opaque IDs suitable for external references.
type Generator interface {
	NewID() (string, error)
}

// UUIDGenerator issues random (v4) UUIDs; used for session and batch ids.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() (string, error) {
	v, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return v.String(), nil
}

// TokenGenerator issues hex tokens of the given byte length.
type TokenGenerator struct {
	size int
}

func NewTokenGenerator(size int) *TokenGenerator {
	if size <= 0 {
		size = 16
	}
	return &TokenGenerator{size: size}
}

func (g *TokenGenerator) NewID() (string, error) {
	buf := make([]byte, g.size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IsUUID reports whether raw parses as a UUID in any accepted form.
func IsUUID(raw string) bool {
	_, err := uuid.Parse(raw)
	return err == nil
}
