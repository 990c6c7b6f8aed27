package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	BatchID   ID
	ReportID  ID
	CarrierID string
	HoleID    string
)

// String conversions for domain IDs
func (id BatchID) String() string   { return ID(id).String() }
func (id ReportID) String() string  { return ID(id).String() }
func (id CarrierID) String() string { return string(id) }
func (id HoleID) String() string    { return string(id) }

// ParseCarrierID validates a carrier identifier. Carrier IDs become file
// names in the model store, so path separators and relative segments are
// rejected at the boundary.
func ParseCarrierID(s string) (CarrierID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("carrier ID cannot be empty")
	}
	if strings.ContainsAny(trimmed, "/\\") || trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf("carrier ID %q contains path characters", s)
	}
	return CarrierID(trimmed), nil
}

// ParseHoleID parses a string into HoleID
func ParseHoleID(s string) (HoleID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("hole ID cannot be empty")
	}
	return HoleID(s), nil
}
