package enums

// SagaState is the per-correlation state of a role-assignment saga.
type SagaState string

const (
	SagaStateRequested SagaState = "requested"
	SagaStateAssigned  SagaState = "assigned"
	SagaStateFailed    SagaState = "failed"
)

var validSagaStates = []SagaState{
	SagaStateRequested,
	SagaStateAssigned,
	SagaStateFailed,
}

// String implements fmt.Stringer.
func (s SagaState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SagaState.
func (s SagaState) IsValid() bool {
	for _, candidate := range validSagaStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the saga has reached an outcome.
func (s SagaState) IsTerminal() bool {
	return s == SagaStateAssigned || s == SagaStateFailed
}
