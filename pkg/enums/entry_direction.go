package enums

import "fmt"

// EntryDirection is the side of a double-entry ledger posting.
type EntryDirection string

const (
	EntryDirectionDebit  EntryDirection = "debit"
	EntryDirectionCredit EntryDirection = "credit"
)

var validEntryDirections = []EntryDirection{
	EntryDirectionDebit,
	EntryDirectionCredit,
}

// String implements fmt.Stringer.
func (d EntryDirection) String() string {
	return string(d)
}

// IsValid reports whether the value is a known EntryDirection.
func (d EntryDirection) IsValid() bool {
	for _, candidate := range validEntryDirections {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseEntryDirection converts raw input into an EntryDirection.
func ParseEntryDirection(value string) (EntryDirection, error) {
	for _, candidate := range validEntryDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entry direction %q", value)
}
