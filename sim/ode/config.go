package ode

import (
	"fmt"
	"math"
)

// Config groups step-size controller parameters for Integrate.
type Config struct {
	RelTol      float64 // relative tolerance (must be > 0)
	AbsTol      float64 // absolute tolerance (must be > 0)
	InitialStep float64 // first trial step; 0 = estimate from the derivative at t0
	MaxStep     float64 // upper bound on |h|; 0 = t1 - t0
	MaxSteps    int     // attempted steps before giving up (accepted + rejected)

	Safety float64 // safety factor on the optimal step (default 0.9)
	FacMin float64 // lower bound on h_new/h (default 0.2)
	FacMax float64 // upper bound on h_new/h (default 10)
	Beta   float64 // PI stabilisation exponent (default 0.04)

	// StiffnessCheckInterval runs the stiffness test every N accepted steps.
	// 0 disables the test.
	StiffnessCheckInterval int

	// OutputStep selects the sampling of the result. 0 emits every accepted
	// step; a positive value emits t0, t0+OutputStep, ... from the dense
	// output polynomial, and always ends with t1.
	OutputStep float64
}

// DefaultConfig returns the DOPRI5 reference controller settings.
func DefaultConfig() Config {
	return Config{
		RelTol:                 1e-6,
		AbsTol:                 1e-6,
		InitialStep:            0,
		MaxStep:                0,
		MaxSteps:               100000,
		Safety:                 0.9,
		FacMin:                 0.2,
		FacMax:                 10.0,
		Beta:                   0.04,
		StiffnessCheckInterval: 1000,
		OutputStep:             0,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if err := positiveFinite("rel_tol", c.RelTol); err != nil {
		return err
	}
	if err := positiveFinite("abs_tol", c.AbsTol); err != nil {
		return err
	}
	if c.InitialStep < 0 || math.IsNaN(c.InitialStep) || math.IsInf(c.InitialStep, 0) {
		return fmt.Errorf("initial_step must be a finite non-negative number, got %g", c.InitialStep)
	}
	if c.MaxStep < 0 || math.IsNaN(c.MaxStep) || math.IsInf(c.MaxStep, 0) {
		return fmt.Errorf("max_step must be a finite non-negative number, got %g", c.MaxStep)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	}
	if c.Safety <= 1e-4 || c.Safety >= 1 {
		return fmt.Errorf("safety must be in (1e-4, 1), got %g", c.Safety)
	}
	if c.FacMin <= 0 || c.FacMin >= 1 {
		return fmt.Errorf("fac_min must be in (0, 1), got %g", c.FacMin)
	}
	if c.FacMax <= 1 {
		return fmt.Errorf("fac_max must be greater than 1, got %g", c.FacMax)
	}
	if c.Beta < 0 || c.Beta > 0.2 {
		return fmt.Errorf("beta must be in [0, 0.2], got %g", c.Beta)
	}
	if c.StiffnessCheckInterval < 0 {
		return fmt.Errorf("stiffness_check_interval must be non-negative, got %d", c.StiffnessCheckInterval)
	}
	if c.OutputStep < 0 || math.IsNaN(c.OutputStep) || math.IsInf(c.OutputStep, 0) {
		return fmt.Errorf("output_step must be a finite non-negative number, got %g", c.OutputStep)
	}
	return nil
}

func positiveFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be a finite number, got %g", name, v)
	}
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %g", name, v)
	}
	return nil
}
