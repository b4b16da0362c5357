package ode

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// uround is the rounding unit used by the step underflow test.
const uround = 2.3e-16

// Dormand-Prince 5(4) tableau. Row 6 of dpA holds the 5th-order weights,
// so the last stage is evaluated at the new solution (first same as last).
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][]float64{
		nil,
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// 5th-order minus embedded 4th-order weights.
	dpE = [7]float64{71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200, 22.0 / 525, -1.0 / 40}
	// Continuous extension coefficients.
	dpD = [7]float64{
		-12715105075.0 / 11282082432, 0, 87487479700.0 / 32700410799, -10690763975.0 / 1880347072,
		701980252875.0 / 199316789632, -1453857185.0 / 822651844, 69997945.0 / 29380423,
	}
)

// Stats counts the work done by one Integrate call.
type Stats struct {
	Evaluations int // derivative evaluations
	Accepted    int // accepted steps
	Rejected    int // rejected steps
}

// Result holds the sampled solution. T is strictly increasing; Y[i] is the
// state at T[i] and is owned by the Result.
type Result struct {
	T     []float64
	Y     [][]float64
	Stats Stats
}

// Len returns the number of samples.
func (r *Result) Len() int {
	return len(r.T)
}

func (r *Result) append(t float64, y []float64) {
	r.T = append(r.T, t)
	r.Y = append(r.Y, append([]float64(nil), y...))
}

// Integrate advances sys from (t0, y0) to t1 and returns the sampled
// trajectory, including both endpoints. When t1 == t0 the result is the single
// sample (t0, y0). On failure the partial solution is discarded and an *Error
// (or a configuration error) is returned.
func Integrate(ctx context.Context, sys System, t0, t1 float64, y0 []float64, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ode config: %w", err)
	}
	n := sys.Dim()
	if len(y0) != n {
		return nil, fmt.Errorf("initial state has %d components, system expects %d", len(y0), n)
	}
	if !finite(t0) || !finite(t1) {
		return nil, fmt.Errorf("integration bounds must be finite, got [%g, %g]", t0, t1)
	}
	if t1 < t0 {
		return nil, fmt.Errorf("end time %g precedes start time %g", t1, t0)
	}
	if !allFinite(y0) {
		return nil, &Error{Reason: ReasonNonFinite, T: t0}
	}

	res := &Result{}
	res.append(t0, y0)
	if t1 == t0 {
		return res, nil
	}

	in := newIntegrator(sys, cfg, res)
	if err := in.run(ctx, t0, t1, y0); err != nil {
		return nil, err
	}
	return res, nil
}

// integrator holds the work buffers for one Integrate call.
type integrator struct {
	sys System
	cfg Config
	res *Result
	n   int

	k     [7][]float64
	y     []float64
	ynew  []float64
	ytmp  []float64 // stage argument; after a step it holds the stage-6 argument
	errv  []float64
	rcont [5][]float64

	t0   float64
	grid int // index of the next dense output point
}

func newIntegrator(sys System, cfg Config, res *Result) *integrator {
	n := sys.Dim()
	in := &integrator{sys: sys, cfg: cfg, res: res, n: n, grid: 1}
	for i := range in.k {
		in.k[i] = make([]float64, n)
	}
	in.y = make([]float64, n)
	in.ynew = make([]float64, n)
	in.ytmp = make([]float64, n)
	in.errv = make([]float64, n)
	if cfg.OutputStep > 0 {
		for i := range in.rcont {
			in.rcont[i] = make([]float64, n)
		}
	}
	return in
}

func (in *integrator) run(ctx context.Context, t0, t1 float64, y0 []float64) error {
	cfg := in.cfg
	copy(in.y, y0)
	in.t0 = t0
	t := t0

	hmax := t1 - t0
	if cfg.MaxStep > 0 && cfg.MaxStep < hmax {
		hmax = cfg.MaxStep
	}
	if !in.eval(t, in.y, in.k[0]) {
		return &Error{Reason: ReasonNonFinite, T: t}
	}
	h := cfg.InitialStep
	if h == 0 {
		var ok bool
		if h, ok = in.initialStep(t, hmax); !ok {
			return &Error{Reason: ReasonNonFinite, T: t}
		}
	}
	h = math.Min(h, hmax)

	expo1 := 0.2 - cfg.Beta*0.75
	facOld := 1e-4
	last, reject := false, false
	steps, nonStiff, stiffHits := 0, 0, 0

	for {
		if err := ctx.Err(); err != nil {
			return &Error{Reason: ReasonCancelled, T: t, H: h, Err: err}
		}
		if steps >= cfg.MaxSteps {
			return &Error{Reason: ReasonMaxSteps, T: t, H: h}
		}
		if 0.1*math.Abs(h) <= math.Abs(t)*uround {
			return &Error{Reason: ReasonStepTooSmall, T: t, H: h}
		}
		if t+1.01*h-t1 > 0 {
			h = t1 - t
			last = true
		}
		steps++

		if !in.stages(t, h) {
			return &Error{Reason: ReasonNonFinite, T: t, H: h}
		}
		errNorm := in.errorNorm(h)

		fac11 := math.Pow(errNorm, expo1)
		fac := fac11 / math.Pow(facOld, cfg.Beta)
		fac = math.Max(1/cfg.FacMax, math.Min(1/cfg.FacMin, fac/cfg.Safety))
		hnew := h / fac

		if errNorm > 1 {
			hnew = h / math.Min(1/cfg.FacMin, fac11/cfg.Safety)
			reject = true
			last = false
			in.res.Stats.Rejected++
			h = hnew
			continue
		}

		facOld = math.Max(errNorm, 1e-4)
		in.res.Stats.Accepted++
		if cfg.StiffnessCheckInterval > 0 && (in.res.Stats.Accepted%cfg.StiffnessCheckInterval == 0 || stiffHits > 0) {
			if in.looksStiff(h) {
				nonStiff = 0
				stiffHits++
				if stiffHits == 15 {
					return &Error{Reason: ReasonStiff, T: t + h, H: h}
				}
			} else {
				nonStiff++
				if nonStiff == 6 {
					stiffHits = 0
				}
			}
		}

		tnew := t + h
		if last {
			tnew = t1
		}
		in.record(t, tnew, h, last)

		in.k[0], in.k[6] = in.k[6], in.k[0]
		in.y, in.ynew = in.ynew, in.y
		t = tnew
		if last {
			return nil
		}

		if math.Abs(hnew) > hmax {
			hnew = hmax
		}
		if reject {
			hnew = math.Min(math.Abs(hnew), math.Abs(h))
		}
		reject = false
		h = hnew
	}
}

// eval computes dy = f(t, y) and reports whether both y and dy are finite.
func (in *integrator) eval(t float64, y, dy []float64) bool {
	in.sys.Derivative(t, y, dy)
	in.res.Stats.Evaluations++
	return allFinite(y) && allFinite(dy)
}

// stages evaluates k[1..6] for a step of size h from (t, y); k[0] must hold f(t, y).
// The 5th-order solution is left in ynew and f(t+h, ynew) in k[6].
func (in *integrator) stages(t, h float64) bool {
	for s := 1; s < len(dpA); s++ {
		dst := in.ytmp
		if s == len(dpA)-1 {
			dst = in.ynew
		}
		copy(dst, in.y)
		for j, a := range dpA[s] {
			if a != 0 {
				floats.AddScaled(dst, h*a, in.k[j])
			}
		}
		if !in.eval(t+dpC[s]*h, dst, in.k[s]) {
			return false
		}
	}
	return true
}

// errorNorm returns the scaled RMS norm of the embedded error estimate.
func (in *integrator) errorNorm(h float64) float64 {
	clear(in.errv)
	for j, e := range dpE {
		if e != 0 {
			floats.AddScaled(in.errv, h*e, in.k[j])
		}
	}
	var sum float64
	for i, ev := range in.errv {
		sc := in.cfg.AbsTol + in.cfg.RelTol*math.Max(math.Abs(in.y[i]), math.Abs(in.ynew[i]))
		r := ev / sc
		sum += r * r
	}
	return math.Sqrt(sum / float64(in.n))
}

// looksStiff estimates h·|λ| from the last two stages, which share c = 1.
func (in *integrator) looksStiff(h float64) bool {
	den := floats.Distance(in.ynew, in.ytmp, 2)
	if den <= 0 {
		return false
	}
	num := floats.Distance(in.k[6], in.k[5], 2)
	return h*num/den > 3.25
}

// initialStep estimates a starting step from the derivative at t (k[0]).
func (in *integrator) initialStep(t, hmax float64) (float64, bool) {
	f0 := in.k[0]
	var dnf, dny float64
	for i := 0; i < in.n; i++ {
		sk := in.cfg.AbsTol + in.cfg.RelTol*math.Abs(in.y[i])
		dnf += (f0[i] / sk) * (f0[i] / sk)
		dny += (in.y[i] / sk) * (in.y[i] / sk)
	}
	h := 1e-6
	if dnf > 1e-10 && dny > 1e-10 {
		h = 0.01 * math.Sqrt(dny/dnf)
	}
	h = math.Min(h, hmax)

	floats.AddScaledTo(in.ytmp, in.y, h, f0)
	if !in.eval(t+h, in.ytmp, in.k[1]) {
		return 0, false
	}
	var der2 float64
	for i := 0; i < in.n; i++ {
		sk := in.cfg.AbsTol + in.cfg.RelTol*math.Abs(in.y[i])
		d := (in.k[1][i] - f0[i]) / sk
		der2 += d * d
	}
	der2 = math.Sqrt(der2) / h

	der12 := math.Max(math.Abs(der2), math.Sqrt(dnf))
	h1 := math.Max(1e-6, h*1e-3)
	if der12 > 1e-15 {
		h1 = math.Pow(0.01/der12, 1.0/5)
	}
	return math.Min(math.Min(100*h, h1), hmax), true
}

// record appends the samples produced by the step (t, t+h] that ends at tnew.
func (in *integrator) record(t, tnew, h float64, last bool) {
	if in.cfg.OutputStep == 0 {
		in.res.append(tnew, in.ynew)
		return
	}

	in.prepareDense(h)
	g := in.gridPoint()
	for g < tnew {
		in.res.append(g, in.dense((g-t)/h))
		in.grid++
		g = in.gridPoint()
	}
	switch {
	case g == tnew:
		in.res.append(tnew, in.ynew)
		in.grid++
	case last:
		in.res.append(tnew, in.ynew)
	}
}

func (in *integrator) gridPoint() float64 {
	return in.t0 + float64(in.grid)*in.cfg.OutputStep
}

// prepareDense fills the continuous extension coefficients for the step just
// taken. It must run before y/ynew and k[0]/k[6] are swapped.
func (in *integrator) prepareDense(h float64) {
	r := in.rcont
	for i := 0; i < in.n; i++ {
		ydiff := in.ynew[i] - in.y[i]
		bspl := h*in.k[0][i] - ydiff
		r[0][i] = in.y[i]
		r[1][i] = ydiff
		r[2][i] = bspl
		r[3][i] = ydiff - h*in.k[6][i] - bspl
		var d float64
		for j, c := range dpD {
			d += c * in.k[j][i]
		}
		r[4][i] = h * d
	}
}

// dense evaluates the continuous extension at t + theta*h.
func (in *integrator) dense(theta float64) []float64 {
	theta1 := 1 - theta
	r := in.rcont
	y := make([]float64, in.n)
	for i := range y {
		y[i] = r[0][i] + theta*(r[1][i]+theta1*(r[2][i]+theta*(r[3][i]+theta1*r[4][i])))
	}
	return y
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if !finite(x) {
			return false
		}
	}
	return true
}
