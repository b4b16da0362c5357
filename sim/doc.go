// Package sim provides the epidemic model, request decoding, solving and
// result encoding for the SEIR simulation service.
//
// # Reading Guide
//
// Start with these files:
//   - model.go: SEIRModel, the derivative of the four compartments
//   - request.go: SolverRequest and strict JSON decoding of client payloads
//   - solve.go: Solver, which drives sim/ode over [0, duration]
//   - result.go: trajectory serialization (time-keyed map or record list)
//
// # Architecture
//
// The numerical integrator lives in sim/ode and knows nothing about
// epidemics; SEIRModel satisfies ode.System. The connection handling that
// calls into this package lives in server/.
//
// Errors returned to clients are typed: DecodeError for malformed requests
// and IntegrationError when the step-size controller cannot reach the end
// time. Both carry a Kind used in the error envelope.
package sim
