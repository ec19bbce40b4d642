package toolbox

import (
	"fmt"

	"github.com/chewxy/math32"
)

type LossFunctionType int

const (
	// NegativeLogLikelihood expects a Softmax output layer and a one-hot
	// target.
	NegativeLogLikelihood LossFunctionType = iota
	MeanSquaredError
)

func (t LossFunctionType) String() string {
	switch t {
	case NegativeLogLikelihood:
		return "nll"
	case MeanSquaredError:
		return "mse"
	default:
		return fmt.Sprintf("LossFunctionType(%d)", int(t))
	}
}

// y is the ground truth output.  a is the layer's forward output.  Both have
// the output layer's size.
func MeanSquaredErrorLoss(y, a []float32) float32 {
	if len(y) != len(a) {
		panic("y and a must have same shape")
	}

	loss := float32(0)
	for i := range a {
		diff := a[i] - y[i]
		loss += diff * diff / 2
	}
	return loss
}

// MeanSquaredErrorLossGradient writes dJ/da into djda.
func MeanSquaredErrorLossGradient(y, a, djda []float32) {
	if len(y) != len(a) || len(y) != len(djda) {
		panic("y, a and djda must have same shape")
	}
	for i := range a {
		djda[i] = a[i] - y[i]
	}
}

// clampProbability keeps -log(p) finite.
//
// https://stackoverflow.com/a/70608107
func clampProbability(p float32) float32 {
	if p < 1e-7 {
		return 1e-7
	}
	if p > 1-1e-7 {
		return 1 - 1e-7
	}
	return p
}

// NegativeLogLikelihoodLoss is -log(a[c]) where c is the hot index of y.
// a must be a probability vector.
func NegativeLogLikelihoodLoss(y, a []float32) float32 {
	if len(y) != len(a) {
		panic("y and a must have same shape")
	}

	loss := float32(0)
	for i := range a {
		if y[i] != 0 {
			loss += -y[i] * math32.Log(clampProbability(a[i]))
		}
	}
	return loss
}

// SoftmaxNegativeLogLikelihoodGradient writes dJ/dz = a - y for a softmax
// output a = softmax(z) under NegativeLogLikelihood.
func SoftmaxNegativeLogLikelihoodGradient(y, a, djdz []float32) {
	if len(y) != len(a) || len(y) != len(djdz) {
		panic("y, a and djdz must have same shape")
	}
	for i := range a {
		djdz[i] = a[i] - y[i]
	}
}
