package valueobjects

import (
	"encoding/json"

	"github.com/google/uuid"

	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// ResidueID uniquely identifies a residue for the lifetime of a graph.
type ResidueID struct {
	value string
}

// NewResidueID generates a fresh random identifier.
func NewResidueID() ResidueID {
	return ResidueID{value: uuid.New().String()}
}

// ResidueIDFromString parses a stored or client-supplied identifier.
func ResidueIDFromString(s string) (ResidueID, error) {
	if s == "" {
		return ResidueID{}, pkgerrors.NewValidationError("residue ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return ResidueID{}, pkgerrors.NewValidationError("invalid residue ID format").WithCause(err)
	}
	return ResidueID{value: s}, nil
}

func (id ResidueID) String() string {
	return id.value
}

// IsZero reports whether id was never assigned.
func (id ResidueID) IsZero() bool {
	return id.value == ""
}

func (id ResidueID) Equals(other ResidueID) bool {
	return id.value == other.value
}

func (id ResidueID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

func (id *ResidueID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ResidueIDFromString(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
