// Package ode integrates first-order ordinary differential equation systems
// with the Dormand-Prince 5(4) embedded Runge-Kutta pair.
//
// # Reading Guide
//
//   - system.go: the System interface a model implements
//   - config.go: step-size controller settings and their defaults
//   - dopri5.go: the integration loop, error control and dense output
//   - errors.go: failure reasons reported by Integrate
//
// The controller follows Hairer, Nørsett and Wanner's DOPRI5: the local error
// is estimated from the embedded 4th-order solution, measured in a scaled RMS
// norm, and steps whose error exceeds 1 are rejected and retried with a
// smaller step. Accepted steps feed a PI-stabilised step-size update.
package ode
