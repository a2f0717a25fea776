package id

import (
	"errors"
	"regexp"

	"github.com/google/uuid"
)

var ErrMalformed = errors.New("malformed id")

// canonical 8-4-4-4-12 form, either case
var reCanonical = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// New returns a random (v4) identifier.
func New() uuid.UUID { return uuid.New() }

// Parse accepts only the canonical 36-char form. uuid.Parse alone would also
// take urn:uuid:, braced and 32-char hex forms.
func Parse(raw string) (uuid.UUID, error) {
	if !reCanonical.MatchString(raw) {
		return uuid.Nil, ErrMalformed
	}
	return uuid.Parse(raw)
}
