// Package domain holds identifier types shared across modules.
package domain

import (
	"github.com/google/uuid"

	dErrors "luftscan/pkg/domain-errors"
)

// ScanID identifies one scan run. It is a distinct type so a scan ID can
// never be passed where another UUID-keyed identifier is expected.
type ScanID uuid.UUID

// NewScanID returns a fresh random scan ID.
func NewScanID() ScanID {
	return ScanID(uuid.New())
}

// ParseScanID parses a scan ID at a trust boundary. Empty, malformed and
// nil UUIDs are rejected with CodeInvalidInput.
func ParseScanID(s string) (ScanID, error) {
	u, err := parseUUID(s, "scan ID")
	if err != nil {
		return ScanID{}, err
	}
	return ScanID(u), nil
}

func (id ScanID) String() string { return uuid.UUID(id).String() }

func (id ScanID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets ScanID appear as a JSON string and a map key.
func (id ScanID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ScanID) UnmarshalText(data []byte) error {
	parsed, err := ParseScanID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s format", label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be nil", label)
	}
	return u, nil
}
