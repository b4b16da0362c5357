package sim

// Compartment indices into a StateVector.
const (
	Susceptible = iota
	Exposed
	Infectious
	Removed

	NumCompartments
)

// StateVector holds the compartment populations in (S, E, I, R) order.
type StateVector [NumCompartments]float64

// Total returns S+E+I+R. The model conserves it; nothing enforces it.
func (s StateVector) Total() float64 {
	return s[Susceptible] + s[Exposed] + s[Infectious] + s[Removed]
}

// Sample is one accepted (time, state) point of a solve.
type Sample struct {
	Time  float64
	State StateVector
}

// Trajectory is the ordered output of one solve. Times are strictly
// increasing, starting at 0 and ending at the requested duration.
type Trajectory []Sample

// Times returns the sample times in order.
func (tr Trajectory) Times() []float64 {
	ts := make([]float64, len(tr))
	for i, s := range tr {
		ts[i] = s.Time
	}
	return ts
}

// Final returns the last sample. It panics on an empty trajectory.
func (tr Trajectory) Final() Sample {
	return tr[len(tr)-1]
}
