// Defines SolverRequest, the parameters of one solve, and its strict JSON
// decoding from client payloads.

package sim

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// InitialState holds the compartment populations at t = 0.
type InitialState struct {
	Susceptible float64 `yaml:"initial_susceptible"`
	Exposed     float64 `yaml:"initial_exposed"`
	Infectious  float64 `yaml:"initial_infectious"`
	Removed     float64 `yaml:"initial_removed"`
}

// Vector returns the initial state in (S, E, I, R) order.
func (s InitialState) Vector() StateVector {
	return StateVector{s.Susceptible, s.Exposed, s.Infectious, s.Removed}
}

// SolverRequest is one client request: initial state, model parameters and
// the end time of the integration. It is immutable once decoded.
type SolverRequest struct {
	InitialState InitialState `yaml:"initial_state"`
	ModelParams  SEIRModel    `yaml:"model_params"`
	Duration     float64      `yaml:"duration"`
}

// Validate checks that every field is finite and the duration is not negative.
func (r SolverRequest) Validate() error {
	fields := []struct {
		name string
		val  float64
	}{
		{"initial_state.initial_susceptible", r.InitialState.Susceptible},
		{"initial_state.initial_exposed", r.InitialState.Exposed},
		{"initial_state.initial_infectious", r.InitialState.Infectious},
		{"initial_state.initial_removed", r.InitialState.Removed},
		{"model_params.recovery_rate", r.ModelParams.RecoveryRate},
		{"model_params.reproduction_number", r.ModelParams.ReproductionNumber},
		{"model_params.infection_rate", r.ModelParams.InfectionRate},
		{"duration", r.Duration},
	}
	for _, f := range fields {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return fmt.Errorf("%s must be a finite number, got %f", f.name, f.val)
		}
	}
	if r.Duration < 0 {
		return fmt.Errorf("duration must be non-negative, got %f", r.Duration)
	}
	return nil
}

// Wire types use pointers so that absent fields can be told apart from zeros.
type wireInitialState struct {
	Susceptible *float64 `json:"initial_susceptible"`
	Exposed     *float64 `json:"initial_exposed"`
	Infectious  *float64 `json:"initial_infectious"`
	Removed     *float64 `json:"initial_removed"`
}

type wireModelParams struct {
	RecoveryRate       *float64 `json:"recovery_rate"`
	ReproductionNumber *float64 `json:"reproduction_number"`
	InfectionRate      *float64 `json:"infection_rate"`
}

type wireRequest struct {
	InitialState *wireInitialState `json:"initial_state"`
	ModelParams  *wireModelParams  `json:"model_params"`
	Duration     *float64          `json:"duration"`
}

// DecodeRequest parses a client payload. Every field is required, unknown
// fields are rejected and trailing data after the object is an error. All
// failures are returned as *DecodeError.
func DecodeRequest(data []byte) (SolverRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wireRequest
	if err := dec.Decode(&w); err != nil {
		return SolverRequest{}, &DecodeError{Err: err}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return SolverRequest{}, &DecodeError{Err: errors.New("unexpected data after request object")}
	}

	var missing []string
	need := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return *v
	}

	var req SolverRequest
	if w.InitialState == nil {
		missing = append(missing, "initial_state")
	} else {
		req.InitialState = InitialState{
			Susceptible: need("initial_state.initial_susceptible", w.InitialState.Susceptible),
			Exposed:     need("initial_state.initial_exposed", w.InitialState.Exposed),
			Infectious:  need("initial_state.initial_infectious", w.InitialState.Infectious),
			Removed:     need("initial_state.initial_removed", w.InitialState.Removed),
		}
	}
	if w.ModelParams == nil {
		missing = append(missing, "model_params")
	} else {
		req.ModelParams = SEIRModel{
			RecoveryRate:       need("model_params.recovery_rate", w.ModelParams.RecoveryRate),
			ReproductionNumber: need("model_params.reproduction_number", w.ModelParams.ReproductionNumber),
			InfectionRate:      need("model_params.infection_rate", w.ModelParams.InfectionRate),
		}
	}
	req.Duration = need("duration", w.Duration)

	if len(missing) > 0 {
		return SolverRequest{}, &DecodeError{Err: fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))}
	}
	if err := req.Validate(); err != nil {
		return SolverRequest{}, &DecodeError{Err: err}
	}
	return req, nil
}
