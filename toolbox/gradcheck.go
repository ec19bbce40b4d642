package toolbox

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/diff/fd"
)

// GradientCheckOptions configures GradientCheck.
type GradientCheckOptions struct {
	// Epsilon is the perturbation applied to each input element.  Defaults to
	// 0.01.
	Epsilon float32

	// X is the input to check at.  If nil, a random input in [0,1)^n is drawn
	// from Rand.
	X []float32

	// Rand seeds the random input.  Required if X is nil.
	Rand *rand.Rand
}

// GradientCheckReport holds the gradients of the cost wrt each input element.
type GradientCheckReport struct {
	X         []float32
	Cost      float32
	Analytic  []float32
	Numerical []float32

	// Diff is Analytic - Numerical.
	Diff []float32

	// CostDeltas[i] is cost(x+ε) - cost(x-ε) along dimension i.
	CostDeltas []float32
}

// GradientCheck compares the gradient that net.Backward returns wrt the
// input against a centered finite difference of the cost -log(p_correct).
// The weights are never updated.  To check a standalone output layer, wrap it
// with MakeNetwork(NegativeLogLikelihood, layer).
func GradientCheck(net *Network, y []float32, opts GradientCheckOptions) (*GradientCheckReport, error) {
	if net.LossFunction != NegativeLogLikelihood {
		return nil, fmt.Errorf("%w: gradient check needs a classifier network", ErrInvalidConfiguration)
	}
	if len(y) != net.OutputSize() {
		return nil, fmt.Errorf("%w: target has length %d, network outputs %d", ErrDimensionMismatch, len(y), net.OutputSize())
	}

	epsilon := opts.Epsilon
	if epsilon == 0 {
		epsilon = 0.01
	}
	if epsilon < 0 {
		return nil, fmt.Errorf("%w: epsilon must be positive, got %v", ErrInvalidConfiguration, epsilon)
	}

	x := opts.X
	if x == nil {
		if opts.Rand == nil {
			return nil, fmt.Errorf("%w: need either an input or a random source", ErrInvalidConfiguration)
		}
		x = make([]float32, net.InputSize())
		for i := range x {
			x[i] = opts.Rand.Float32()
		}
	}

	trace, err := net.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("while computing analytic gradient: %w", err)
	}
	analytic, err := net.Backward(trace, y, 0, false)
	if err != nil {
		return nil, fmt.Errorf("while computing analytic gradient: %w", err)
	}

	report := &GradientCheckReport{
		X:          x,
		Analytic:   analytic,
		Numerical:  make([]float32, len(x)),
		Diff:       make([]float32, len(x)),
		CostDeltas: make([]float32, len(x)),
	}
	report.Cost, err = classifierCost(net, x, y)
	if err != nil {
		return nil, err
	}

	perturbed := make([]float32, len(x))
	for i := range x {
		copy(perturbed, x)
		perturbed[i] = x[i] - epsilon
		costLeft, err := classifierCost(net, perturbed, y)
		if err != nil {
			return nil, err
		}

		perturbed[i] = x[i] + epsilon
		costRight, err := classifierCost(net, perturbed, y)
		if err != nil {
			return nil, err
		}

		report.CostDeltas[i] = costRight - costLeft
		report.Numerical[i] = (costRight - costLeft) / (2 * epsilon)
		report.Diff[i] = report.Analytic[i] - report.Numerical[i]
	}

	return report, nil
}

// classifierCost is -log(a[c]) without the clamp NegativeLogLikelihoodLoss
// applies, so the finite difference sees the same function the analytic
// gradient differentiates.
func classifierCost(net *Network, x, y []float32) (float32, error) {
	trace, err := net.Forward(x)
	if err != nil {
		return 0, err
	}
	out := trace.Output()
	var cost float32
	for i := range out {
		if y[i] != 0 {
			cost -= y[i] * math32.Log(out[i])
		}
	}
	if math32.IsNaN(cost) || math32.IsInf(cost, 0) {
		return 0, fmt.Errorf("%w: cost %v at input %v", ErrNumericalInstability, cost, x)
	}
	return cost, nil
}

// MaxAbsDiff is the largest |analytic - numerical| over all dimensions.
func (r *GradientCheckReport) MaxAbsDiff() float32 {
	var m float32
	for _, d := range r.Diff {
		m = math32.Max(m, math32.Abs(d))
	}
	return m
}

// Within reports whether every element of Diff is within tol of zero.
func (r *GradientCheckReport) Within(tol float32) bool {
	return r.MaxAbsDiff() <= tol
}

// WriteTable writes a per-dimension table of the analytic and numerical
// gradients and their difference.
func (r *GradientCheckReport) WriteTable(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Cost using x: %v\n", r.Cost); err != nil {
		return err
	}
	for i, dy := range r.CostDeltas {
		if _, err := fmt.Fprintf(w, "DJ by changing x[%d]: %+0.10f\n", i, dy); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%17s || %16s || %s\n", "Builtin Gradients", "Manual Gradients", "Diff"); err != nil {
		return err
	}
	for i := range r.Diff {
		if _, err := fmt.Fprintf(w, "%+17.6f || %+16.6f || %+0.6f\n", r.Analytic[i], r.Numerical[i], r.Diff[i]); err != nil {
			return err
		}
	}
	return nil
}

// FiniteDifferenceGradient estimates the gradient of -log(p_correct) wrt the
// input using gonum's central difference formula.  It is independent of
// GradientCheck's own differencing and is used to cross-check it.
func FiniteDifferenceGradient(net *Network, x, y []float32, step float64) ([]float64, error) {
	if len(x) != net.InputSize() {
		return nil, fmt.Errorf("%w: input has length %d, network takes %d", ErrDimensionMismatch, len(x), net.InputSize())
	}

	x64 := make([]float64, len(x))
	for i, v := range x {
		x64[i] = float64(v)
	}

	var firstErr error
	xf := make([]float32, len(x))
	cost := func(p []float64) float64 {
		for i, v := range p {
			xf[i] = float32(v)
		}
		c, err := classifierCost(net, xf, y)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return float64(c)
	}

	grad := fd.Gradient(nil, cost, x64, &fd.Settings{
		Formula: fd.Central,
		Step:    step,
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return grad, nil
}
