package sim

// SEIRModel is the four-compartment epidemic model:
//
//	dS = -γ·R0·S·I
//	dE = -dS - σ·E
//	dI =  σ·E - γ·I
//	dR =  γ·I
//
// γ is RecoveryRate, R0 is ReproductionNumber and σ is InfectionRate (the
// exposed to infectious progression rate). The transmission coefficient is
// γ·R0; there is no separately configured contact rate.
type SEIRModel struct {
	RecoveryRate       float64 `yaml:"recovery_rate"`
	ReproductionNumber float64 `yaml:"reproduction_number"`
	InfectionRate      float64 `yaml:"infection_rate"`
}

// TransmissionRate returns the effective S→E coefficient γ·R0.
func (m SEIRModel) TransmissionRate() float64 {
	return m.RecoveryRate * m.ReproductionNumber
}

// Dim implements ode.System.
func (m SEIRModel) Dim() int {
	return NumCompartments
}

// Derivative implements ode.System. The model is autonomous; t is unused.
func (m SEIRModel) Derivative(_ float64, y, dy []float64) {
	susceptible := y[Susceptible]
	exposed := y[Exposed]
	infectious := y[Infectious]

	dy[Susceptible] = -m.RecoveryRate * m.ReproductionNumber * susceptible * infectious
	dy[Exposed] = -dy[Susceptible] - m.InfectionRate*exposed
	dy[Infectious] = m.InfectionRate*exposed - m.RecoveryRate*infectious
	dy[Removed] = m.RecoveryRate * infectious
}
