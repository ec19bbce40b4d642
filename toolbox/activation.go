package toolbox

import (
	"fmt"

	"github.com/chewxy/math32"
)

type ActivationType int

const (
	ReLU ActivationType = iota
	Linear
	Sigmoid
	Tanh
	Softmax
)

func (t ActivationType) String() string {
	switch t {
	case ReLU:
		return "relu"
	case Linear:
		return "linear"
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case Softmax:
		return "softmax"
	default:
		return fmt.Sprintf("ActivationType(%d)", int(t))
	}
}

// ParseActivation maps a flag value back to an ActivationType.  "identity" is
// accepted as an alias for Linear.
func ParseActivation(s string) (ActivationType, error) {
	switch s {
	case "relu":
		return ReLU, nil
	case "linear", "identity":
		return Linear, nil
	case "sigmoid":
		return Sigmoid, nil
	case "tanh":
		return Tanh, nil
	case "softmax":
		return Softmax, nil
	default:
		return 0, fmt.Errorf("%w: unknown activation %q", ErrInvalidConfiguration, s)
	}
}

// activate writes activation(z) into a.  z and a may alias for every
// elementwise activation but not for Softmax.
func (t ActivationType) activate(z, a []float32) {
	if len(z) != len(a) {
		panic("len(z) != len(a)")
	}
	switch t {
	case ReLU:
		for i := range z {
			a[i] = math32.Max(z[i], 0)
		}
	case Linear:
		copy(a, z)
	case Sigmoid:
		for i := range z {
			a[i] = SigmoidScalar(z[i])
		}
	case Tanh:
		for i := range z {
			a[i] = math32.Tanh(z[i])
		}
	case Softmax:
		SoftmaxInto(z, a)
	default:
		panic("unhandled activation function")
	}
}

// chain writes dJ/dz into djdz given z, a = activation(z) and dJ/da.
func (t ActivationType) chain(z, a, djda, djdz []float32) {
	switch t {
	case ReLU:
		for i := range z {
			if z[i] <= 0 {
				djdz[i] = 0
			} else {
				djdz[i] = djda[i]
			}
		}
	case Linear:
		copy(djdz, djda)
	case Sigmoid:
		for i := range a {
			djdz[i] = djda[i] * a[i] * (1 - a[i])
		}
	case Tanh:
		for i := range a {
			djdz[i] = djda[i] * (1 - a[i]*a[i])
		}
	case Softmax:
		// Jacobian is da_i/dz_j = a_i (δij - a_j), so
		// dJ/dz_j = a_j (dJ/da_j - Σ_i dJ/da_i a_i).
		dot := denseDot2(djda, a)
		for j := range a {
			djdz[j] = a[j] * (djda[j] - dot)
		}
	default:
		panic("unhandled activation function")
	}
}

// SigmoidScalar is the logistic function 1/(1+e^-z), evaluated so that
// neither branch exponentiates a large positive number.
func SigmoidScalar(z float32) float32 {
	if z >= 0 {
		return 1 / (1 + math32.Exp(-z))
	}
	e := math32.Exp(z)
	return e / (1 + e)
}

// SigmoidGradientScalar is σ'(z) = σ(z)(1-σ(z)).
func SigmoidGradientScalar(z float32) float32 {
	s := SigmoidScalar(z)
	return s * (1 - s)
}

// LogSigmoid returns log σ(z) without underflowing to -Inf for moderately
// negative z.
func LogSigmoid(z float32) float32 {
	if z >= 0 {
		return -math32.Log1p(math32.Exp(-z))
	}
	return z - math32.Log1p(math32.Exp(z))
}

func TanhGradientScalar(z float32) float32 {
	t := math32.Tanh(z)
	return 1 - t*t
}

// SoftmaxInto writes softmax(z) into out.  The maximum logit is subtracted
// before exponentiating.
func SoftmaxInto(z, out []float32) {
	if len(z) != len(out) {
		panic("len(z) != len(out)")
	}
	maxz := math32.Inf(-1)
	for _, v := range z {
		if v > maxz {
			maxz = v
		}
	}

	var sum float32
	for i, v := range z {
		e := math32.Exp(v - maxz)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
}

// SoftmaxOf returns a newly allocated softmax(z).
func SoftmaxOf(z []float32) []float32 {
	out := make([]float32, len(z))
	SoftmaxInto(z, out)
	return out
}

// ArgMax returns the lowest index holding the maximum of a.
func ArgMax(a []float32) int {
	best := 0
	for i := 1; i < len(a); i++ {
		if a[i] > a[best] {
			best = i
		}
	}
	return best
}

// Classification returns the one-hot classification of a softmax output.
// Every entry equal to the maximum is marked, so ties yield more than one
// true value; use ArgMax for a single class.
func Classification(a []float32) []bool {
	out := make([]bool, len(a))
	if len(a) == 0 {
		return out
	}
	maxa := a[ArgMax(a)]
	for i, v := range a {
		out[i] = v == maxa
	}
	return out
}

// OneHot returns a length-n vector with a 1 at index i.
func OneHot(n, i int) []float32 {
	out := make([]float32, n)
	out[i] = 1
	return out
}

func checkFinite(what string, v []float32) error {
	for i, x := range v {
		if math32.IsNaN(x) || math32.IsInf(x, 0) {
			return fmt.Errorf("%w: %s[%d] = %v", ErrNumericalInstability, what, i, x)
		}
	}
	return nil
}
