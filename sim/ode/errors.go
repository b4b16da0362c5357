package ode

import "fmt"

// Reason classifies why an integration stopped before reaching t1.
type Reason string

const (
	ReasonStepTooSmall Reason = "step size too small"
	ReasonMaxSteps     Reason = "maximum number of steps reached"
	ReasonStiff        Reason = "problem appears to be stiff"
	ReasonNonFinite    Reason = "non-finite value in state or derivative"
	ReasonCancelled    Reason = "integration cancelled"
)

// Error is returned by Integrate when the controller cannot make progress.
// T and H are the time and step size at the point of failure.
type Error struct {
	Reason Reason
	T      float64
	H      float64
	Err    error // underlying cause, e.g. the context error for ReasonCancelled
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at t=%g (h=%g): %v", e.Reason, e.T, e.H, e.Err)
	}
	return fmt.Sprintf("%s at t=%g (h=%g)", e.Reason, e.T, e.H)
}

func (e *Error) Unwrap() error {
	return e.Err
}
