package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// UUIDGenerator produces remote document ids and local child-id suffixes.
type UUIDGenerator struct {
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate returns a time-ordered UUIDv7, falling back to a random UUIDv4.
func (g *UUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}

// ChildID returns a weather-log or fish-caught id of the form
// "<tripId>-<16 hex chars>".
func (g *UUIDGenerator) ChildID(tripID int64) string {
	var suffix [8]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		u := uuid.New()
		copy(suffix[:], u[:8])
	}
	return strconv.FormatInt(tripID, 10) + "-" + hex.EncodeToString(suffix[:])
}

// NewULID returns a lexicographically sortable id for sync-queue entries.
func NewULID() string {
	return ulid.Make().String()
}
