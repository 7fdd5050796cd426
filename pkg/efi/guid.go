// pkg/efi/guid.go
package efi

import (
	"fmt"

	"github.com/google/uuid"
)

// GUID identifies a protocol. The bytes are held in the defining (textual)
// order and compared by byte equality only.
type GUID [16]byte

// ParseGUID parses the canonical 8-4-4-4-12 form.
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, fmt.Errorf("failed to parse GUID %q: %w", s, err)
	}

	return GUID(u), nil
}

// MustParseGUID is ParseGUID for package-level identifiers.
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic(err)
	}

	return g
}

func (g GUID) String() string {
	return uuid.UUID(g).String()
}

// Wire returns the EFI_GUID memory layout: the first three groups are stored
// little-endian, the last eight bytes as written.
func (g GUID) Wire() [16]byte {
	var w [16]byte

	w[0], w[1], w[2], w[3] = g[3], g[2], g[1], g[0]
	w[4], w[5] = g[5], g[4]
	w[6], w[7] = g[7], g[6]
	copy(w[8:], g[8:])

	return w
}

// GUIDFromWire is the inverse of Wire.
func GUIDFromWire(w [16]byte) GUID {
	var g GUID

	g[0], g[1], g[2], g[3] = w[3], w[2], w[1], w[0]
	g[4], g[5] = w[5], w[4]
	g[6], g[7] = w[7], w[6]
	copy(g[8:], w[8:])

	return g
}
