package enums

import "fmt"

// JournalType classifies the logical wallet operation a journal records.
type JournalType string

const (
	JournalTypeDeposit        JournalType = "deposit"
	JournalTypeWithdrawal     JournalType = "withdrawal"
	JournalTypeBookingCapture JournalType = "booking_capture"
	JournalTypeCommission     JournalType = "commission"
)

var validJournalTypes = []JournalType{
	JournalTypeDeposit,
	JournalTypeWithdrawal,
	JournalTypeBookingCapture,
	JournalTypeCommission,
}

// String implements fmt.Stringer.
func (j JournalType) String() string {
	return string(j)
}

// IsValid reports whether the value is a known JournalType.
func (j JournalType) IsValid() bool {
	for _, candidate := range validJournalTypes {
		if candidate == j {
			return true
		}
	}
	return false
}

// ParseJournalType converts raw input into a JournalType.
func ParseJournalType(value string) (JournalType, error) {
	for _, candidate := range validJournalTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid journal type %q", value)
}

// JournalStatus tracks the lifecycle of a wallet journal.
type JournalStatus string

const (
	JournalStatusPending  JournalStatus = "pending"
	JournalStatusPosted   JournalStatus = "posted"
	JournalStatusReversed JournalStatus = "reversed"
	JournalStatusFailed   JournalStatus = "failed"
)

var validJournalStatuses = []JournalStatus{
	JournalStatusPending,
	JournalStatusPosted,
	JournalStatusReversed,
	JournalStatusFailed,
}

// String implements fmt.Stringer.
func (j JournalStatus) String() string {
	return string(j)
}

// IsValid reports whether the value is a known JournalStatus.
func (j JournalStatus) IsValid() bool {
	for _, candidate := range validJournalStatuses {
		if candidate == j {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the journal can no longer change state.
func (j JournalStatus) IsTerminal() bool {
	return j == JournalStatusPosted || j == JournalStatusReversed || j == JournalStatusFailed
}
