package sim

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/seir-sim/seir-sim/sim/ode"
)

// DefaultSolverConfig returns the controller settings used for client
// requests: rtol = atol = 1e-10, first trial step 1.0, and one sample per
// accepted step. The stiffness test stays on, so very long horizons on a
// decaying epidemic end with ode.ReasonStiff.
func DefaultSolverConfig() ode.Config {
	cfg := ode.DefaultConfig()
	cfg.RelTol = 1e-10
	cfg.AbsTol = 1e-10
	cfg.InitialStep = 1.0
	return cfg
}

// Solver integrates SEIR requests with a fixed controller configuration.
// It holds no per-request state and is safe for concurrent use.
type Solver struct {
	config ode.Config
	log    logrus.FieldLogger
}

// NewSolver creates a Solver. A nil logger selects the standard logrus logger.
func NewSolver(config ode.Config, log logrus.FieldLogger) *Solver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Solver{config: config, log: log}
}

// Config returns the controller configuration.
func (s *Solver) Config() ode.Config {
	return s.config
}

// Solve integrates req.ModelParams from t = 0 to req.Duration starting at
// req.InitialState. Invalid requests yield *DecodeError; integrator failures,
// including cancellation through ctx, yield *IntegrationError.
func (s *Solver) Solve(ctx context.Context, req SolverRequest) (Trajectory, error) {
	if err := req.Validate(); err != nil {
		return nil, &DecodeError{Err: err}
	}
	y0 := req.InitialState.Vector()

	res, err := ode.Integrate(ctx, req.ModelParams, 0, req.Duration, y0[:], s.config)
	if err != nil {
		return nil, &IntegrationError{Err: err}
	}
	s.log.WithFields(logrus.Fields{
		"duration":    req.Duration,
		"samples":     res.Len(),
		"evaluations": res.Stats.Evaluations,
		"accepted":    res.Stats.Accepted,
		"rejected":    res.Stats.Rejected,
	}).Debug("solve complete")

	tr := make(Trajectory, res.Len())
	for i := range res.T {
		tr[i].Time = res.T[i]
		copy(tr[i].State[:], res.Y[i])
	}
	return tr, nil
}

// Solve runs req with DefaultSolverConfig.
func Solve(ctx context.Context, req SolverRequest) (Trajectory, error) {
	return NewSolver(DefaultSolverConfig(), nil).Solve(ctx, req)
}
