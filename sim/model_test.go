package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSEIRModel_Derivative_MatchesFormula(t *testing.T) {
	m := SEIRModel{RecoveryRate: 0.1, ReproductionNumber: 2.0, InfectionRate: 0.2}
	y := []float64{1000, 5, 3, 7}
	dy := make([]float64, NumCompartments)

	m.Derivative(0, y, dy)

	// dS = -γ·R0·S·I = -0.1·2·1000·3
	assert.InDelta(t, -600.0, dy[Susceptible], 1e-12)
	// dE = -dS - σ·E = 600 - 0.2·5
	assert.InDelta(t, 599.0, dy[Exposed], 1e-12)
	// dI = σ·E - γ·I = 1 - 0.3
	assert.InDelta(t, 0.7, dy[Infectious], 1e-12)
	// dR = γ·I
	assert.InDelta(t, 0.3, dy[Removed], 1e-12)
}

func TestSEIRModel_Derivative_SumsToZero(t *testing.T) {
	tests := []struct {
		name  string
		model SEIRModel
		y     []float64
	}{
		{"early outbreak", SEIRModel{0.1, 2.0, 0.2}, []float64{1000, 0, 1, 0}},
		{"mid outbreak", SEIRModel{0.5, 3.5, 0.9}, []float64{400, 120, 300, 181}},
		{"negative populations", SEIRModel{0.3, 1.1, 0.4}, []float64{-5, 2, -1, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dy := make([]float64, NumCompartments)
			tt.model.Derivative(0, tt.y, dy)
			var sum float64
			for _, v := range dy {
				sum += v
			}
			assert.InDelta(t, 0.0, sum, 1e-9)
		})
	}
}

func TestSEIRModel_Derivative_IsAutonomous(t *testing.T) {
	m := SEIRModel{RecoveryRate: 0.25, ReproductionNumber: 1.5, InfectionRate: 0.3}
	y := []float64{900, 50, 40, 10}
	a := make([]float64, NumCompartments)
	b := make([]float64, NumCompartments)

	m.Derivative(0, y, a)
	m.Derivative(123.4, y, b)

	assert.Equal(t, a, b)
}

func TestSEIRModel_TransmissionRate_IsRecoveryTimesReproduction(t *testing.T) {
	m := SEIRModel{RecoveryRate: 0.1, ReproductionNumber: 2.5, InfectionRate: 0.2}
	assert.InDelta(t, 0.25, m.TransmissionRate(), 1e-15)
}

func TestStateVector_Total(t *testing.T) {
	assert.Equal(t, 10.0, StateVector{1, 2, 3, 4}.Total())
}
