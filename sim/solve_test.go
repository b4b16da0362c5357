package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seir-sim/seir-sim/sim/ode"
)

func outbreakRequest() SolverRequest {
	return SolverRequest{
		InitialState: InitialState{Susceptible: 1000, Exposed: 0, Infectious: 1, Removed: 0},
		ModelParams:  SEIRModel{RecoveryRate: 0.1, ReproductionNumber: 2.0, InfectionRate: 0.2},
		Duration:     50,
	}
}

func TestSolve_OutbreakScenario_SinglePeakAndGrowingRemoved(t *testing.T) {
	// GIVEN the reference outbreak of 1000 susceptible and 1 infectious
	tr, err := Solve(context.Background(), outbreakRequest())
	require.NoError(t, err)
	require.Greater(t, len(tr), 2)

	// THEN the trajectory starts at the initial state and ends at t=50
	assert.Equal(t, 0.0, tr[0].Time)
	assert.Equal(t, StateVector{1000, 0, 1, 0}, tr[0].State)
	assert.Equal(t, 50.0, tr.Final().Time)

	// THEN I rises to a single interior peak and falls afterwards.
	// With E0 = 0, dI = -γ·I at t=0, so I dips briefly before the rise.
	peak := 0
	for i, s := range tr {
		if s.State[Infectious] > tr[peak].State[Infectious] {
			peak = i
		}
	}
	require.Greater(t, peak, 0, "peak must not be at t=0")
	require.Less(t, peak, len(tr)-1, "peak must not be at the end")
	assert.Greater(t, tr[peak].State[Infectious], 100.0)
	trough := 0
	for i := 0; i <= peak; i++ {
		if tr[i].State[Infectious] < tr[trough].State[Infectious] {
			trough = i
		}
	}
	assert.InDelta(t, 1.0, tr[trough].State[Infectious], 0.01, "initial dip should be shallow")
	for i := trough + 1; i <= peak; i++ {
		assert.GreaterOrEqual(t, tr[i].State[Infectious], tr[i-1].State[Infectious]-1e-6, "I fell before the peak at t=%g", tr[i].Time)
	}
	for i := peak + 1; i < len(tr); i++ {
		assert.LessOrEqual(t, tr[i].State[Infectious], tr[i-1].State[Infectious]+1e-6, "I rose after the peak at t=%g", tr[i].Time)
	}

	// THEN R never decreases
	for i := 1; i < len(tr); i++ {
		assert.GreaterOrEqual(t, tr[i].State[Removed], tr[i-1].State[Removed], "R fell at t=%g", tr[i].Time)
	}
}

func TestSolve_ConservesTotalPopulation(t *testing.T) {
	requests := []SolverRequest{
		outbreakRequest(),
		{
			InitialState: InitialState{Susceptible: 0.99, Exposed: 0.005, Infectious: 0.005, Removed: 0},
			ModelParams:  SEIRModel{RecoveryRate: 0.2, ReproductionNumber: 3.0, InfectionRate: 0.5},
			Duration:     200,
		},
	}
	for _, req := range requests {
		tr, err := Solve(context.Background(), req)
		require.NoError(t, err)

		total := req.InitialState.Vector().Total()
		tol := 1e-10 * math.Max(1, math.Abs(total)) * float64(len(tr))
		for _, s := range tr {
			assert.InDelta(t, total, s.State.Total(), tol, "t=%g", s.Time)
		}
	}
}

func TestSolve_TimesStrictlyIncreasingFromZeroToDuration(t *testing.T) {
	req := outbreakRequest()
	req.Duration = 12.5

	tr, err := Solve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0.0, tr[0].Time)
	assert.Equal(t, 12.5, tr.Final().Time)
	ts := tr.Times()
	for i := 1; i < len(ts); i++ {
		require.Greater(t, ts[i], ts[i-1])
	}
}

func TestSolve_SameRequest_IdenticalTrajectory(t *testing.T) {
	a, err := Solve(context.Background(), outbreakRequest())
	require.NoError(t, err)
	b, err := Solve(context.Background(), outbreakRequest())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSolve_ZeroDuration_SingleInitialSample(t *testing.T) {
	req := outbreakRequest()
	req.Duration = 0

	tr, err := Solve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, Trajectory{{Time: 0, State: StateVector{1000, 0, 1, 0}}}, tr)
}

func TestSolve_NoInfection_StateStaysConstant(t *testing.T) {
	req := SolverRequest{
		InitialState: InitialState{Susceptible: 500, Exposed: 0, Infectious: 0, Removed: 0},
		ModelParams:  SEIRModel{RecoveryRate: 0.1, ReproductionNumber: 2.0, InfectionRate: 0.2},
		Duration:     30,
	}

	tr, err := Solve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 30.0, tr.Final().Time)
	for _, s := range tr {
		assert.Equal(t, StateVector{500, 0, 0, 0}, s.State, "t=%g", s.Time)
	}
}

func TestSolve_OverflowingRates_ReturnsIntegrationError(t *testing.T) {
	req := outbreakRequest()
	req.ModelParams.RecoveryRate = 1e300

	tr, err := Solve(context.Background(), req)
	assert.Nil(t, tr)

	var integErr *IntegrationError
	require.True(t, errors.As(err, &integErr), "got %T: %v", err, err)
	assert.Equal(t, KindIntegration, integErr.Kind())

	var odeErr *ode.Error
	require.True(t, errors.As(err, &odeErr))
	assert.Equal(t, ode.ReasonNonFinite, odeErr.Reason)
}

func TestSolver_CancelledContext_ReturnsIntegrationError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSolver(DefaultSolverConfig(), nil).Solve(ctx, outbreakRequest())

	var integErr *IntegrationError
	require.True(t, errors.As(err, &integErr))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolver_InvalidRequest_ReturnsDecodeError(t *testing.T) {
	req := outbreakRequest()
	req.Duration = -3

	_, err := NewSolver(DefaultSolverConfig(), nil).Solve(context.Background(), req)

	var decErr *DecodeError
	assert.True(t, errors.As(err, &decErr))
}

func TestSolver_OutputStep_SamplesWholeDays(t *testing.T) {
	cfg := DefaultSolverConfig()
	cfg.OutputStep = 1

	tr, err := NewSolver(cfg, nil).Solve(context.Background(), outbreakRequest())
	require.NoError(t, err)

	require.Len(t, tr, 51)
	for i, s := range tr {
		assert.Equal(t, float64(i), s.Time)
	}
}

func TestDefaultSolverConfig_Tolerances(t *testing.T) {
	cfg := DefaultSolverConfig()
	assert.Equal(t, 1e-10, cfg.RelTol)
	assert.Equal(t, 1e-10, cfg.AbsTol)
	assert.Equal(t, 1.0, cfg.InitialStep)
	assert.Equal(t, 0.0, cfg.OutputStep)
	assert.NoError(t, cfg.Validate())
}

func TestSolve_LongDecayingTail_ReturnsStiff(t *testing.T) {
	// GIVEN the outbreak run far past the epidemic, where the step grows to
	// the explicit stability bound
	req := outbreakRequest()
	req.Duration = 20000

	_, err := Solve(context.Background(), req)

	// THEN the stiffness test stops the integration
	var integErr *IntegrationError
	require.True(t, errors.As(err, &integErr), "got %v", err)
	var odeErr *ode.Error
	require.True(t, errors.As(err, &odeErr))
	assert.Equal(t, ode.ReasonStiff, odeErr.Reason)
	assert.Greater(t, odeErr.T, 50.0)
	assert.Less(t, odeErr.T, req.Duration)
}
