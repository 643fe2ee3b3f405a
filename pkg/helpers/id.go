package helpers

import "github.com/google/uuid"

// IDGenerator produces opaque, globally unique document identifiers.
// Callers must not assume any ordering or structure.
type IDGenerator func() string

// NewUUID is the default IDGenerator.
func NewUUID() string { return uuid.NewString() }
