package domain

// Status is the shared lifecycle state of plans, savings goals and
// installments. CANCELLED is terminal once explicitly set.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid reports whether the status is one of the known values.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether moving from one status to another is
// allowed. ACTIVE and COMPLETED may be cancelled explicitly; COMPLETED
// returns to ACTIVE when a later edit raises the target; CANCELLED
// never leaves.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusActive:
		return to == StatusCompleted || to == StatusCancelled
	case StatusCompleted:
		return to == StatusActive || to == StatusCancelled
	}
	return false
}

// DeriveStatus returns the status implied by whether the aggregate
// reached its target. Cancellation is only ever explicit, so a
// cancelled entity stays cancelled regardless of progress.
func DeriveStatus(current Status, reached bool) Status {
	if current == StatusCancelled {
		return StatusCancelled
	}
	if reached {
		return StatusCompleted
	}
	return StatusActive
}
