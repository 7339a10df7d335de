// Package domain holds the primitive identifiers shared across the registry.
// Parsing functions are the trust boundary for values arriving from outside
// the process (URL params, token claims).
package domain

import (
	"strconv"
	"strings"

	dErrors "propreg/pkg/domain-errors"
)

// PropertyID identifies a registered property. Ids are dense and start at 1;
// the zero value never names a property.
type PropertyID uint64

// ParsePropertyID parses a base-10 property id. Text that is not an integer
// is invalid input. Integers no property can carry (negative, or beyond
// uint64) are reported as not found, the same as any other unassigned id.
// Zero parses successfully for the same reason.
func ParsePropertyID(s string) (PropertyID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "property id is required")
	}
	digits, negative := strings.CutPrefix(s, "-")
	if !negative {
		digits = strings.TrimPrefix(s, "+")
	}
	if !isDigits(digits) {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "property id must be an integer")
	}
	if negative {
		return 0, errUnassignedID()
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		// digits are validated above, so only overflow reaches here
		return 0, errUnassignedID()
	}
	return PropertyID(n), nil
}

func errUnassignedID() error {
	return dErrors.New(dErrors.CodeNotFound, "property not found")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (id PropertyID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Next returns the id allocated after id.
func (id PropertyID) Next() PropertyID {
	return id + 1
}

// Principal is an opaque authenticated actor, e.g. a wallet address.
type Principal string

// maxPrincipalLength bounds principals accepted from token claims.
const maxPrincipalLength = 256

// ParsePrincipal validates a principal taken from an authenticated source.
// Principals are opaque and compared byte for byte, so surrounding
// whitespace is rejected rather than trimmed.
func ParsePrincipal(s string) (Principal, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if strings.TrimSpace(s) != s {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal must not have surrounding whitespace")
	}
	if len(s) > maxPrincipalLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is too long")
	}
	return Principal(s), nil
}

func (p Principal) String() string {
	return string(p)
}

// IsNil reports whether no principal is present.
func (p Principal) IsNil() bool {
	return p == ""
}

// BlockHeight is the host environment's monotonic counter.
type BlockHeight uint64
