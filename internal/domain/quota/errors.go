package quota

import "errors"

var (
	// ErrQuotaExceeded indicates the daily limit for a capability is used up.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrUnknownPlan indicates a plan name outside the catalog.
	ErrUnknownPlan = errors.New("unknown plan")
)

// DenialError is returned by a decorated action that was not admitted.
type DenialError struct {
	Denial Denial
}

func (e *DenialError) Error() string {
	return e.Denial.Message()
}

// Is matches ErrQuotaExceeded.
func (e *DenialError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
