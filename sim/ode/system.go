package ode

// System is a first-order ODE system y' = f(t, y).
type System interface {
	// Dim returns the length of the state vector.
	Dim() int
	// Derivative writes f(t, y) into dy. It must not retain y or dy.
	Derivative(t float64, y, dy []float64)
}

// SystemFunc adapts a plain function of fixed dimension to the System interface.
type SystemFunc struct {
	N int
	F func(t float64, y, dy []float64)
}

// Dim implements System.
func (s SystemFunc) Dim() int { return s.N }

// Derivative implements System.
func (s SystemFunc) Derivative(t float64, y, dy []float64) { s.F(t, y, dy) }
