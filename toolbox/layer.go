package toolbox

import (
	"fmt"
	"math/rand"
)

// Layer is one affine transform followed by an activation.  There is no bias
// term.
//
// A Layer is not safe for concurrent use while it is being updated.
type Layer struct {
	Activation ActivationType

	W *AF32 // Shape (OutputSize, InputSize)

	InputSize  int
	OutputSize int
}

// Activations is the result of Layer.Forward.  Pass it back into
// Layer.Backward for the same input; the layer itself keeps no copy.
type Activations struct {
	Z []float32 // pre-activation W·x
	A []float32 // activation(Z)
}

// Gradients is the result of Layer.Backward.
type Gradients struct {
	Djdz []float32 // Shape (OutputSize)
	Djdw *AF32     // Shape (OutputSize, InputSize)
	Djdx []float32 // Shape (InputSize)
}

// MakeLayer creates a layer with weights drawn uniformly from [0, 1).
func MakeLayer(activation ActivationType, inputSize, outputSize int, r *rand.Rand) *Layer {
	return MakeLayerInRange(activation, inputSize, outputSize, 0, 1, r)
}

func MakeLayerInRange(activation ActivationType, inputSize, outputSize int, lo, hi float32, r *rand.Rand) *Layer {
	return &Layer{
		Activation: activation,
		InputSize:  inputSize,
		OutputSize: outputSize,
		W:          MakeUniformAF32(r, lo, hi, outputSize, inputSize),
	}
}

// MakeLayerFromWeights wraps pre-baked weights.  InputSize and OutputSize are
// taken from w's shape.  w is used directly, not copied.
func MakeLayerFromWeights(activation ActivationType, w *AF32) (*Layer, error) {
	if len(w.Shape) != 2 {
		return nil, fmt.Errorf("%w: weights must be 2-D, got shape %v", ErrDimensionMismatch, w.Shape)
	}
	if len(w.V) != w.Shape[0]*w.Shape[1] {
		return nil, fmt.Errorf("%w: weights have %d values for shape %v", ErrDimensionMismatch, len(w.V), w.Shape)
	}
	return &Layer{
		Activation: activation,
		W:          w,
		InputSize:  w.Shape[1],
		OutputSize: w.Shape[0],
	}, nil
}

// Forward computes z = W·x and a = activation(z).
func (lay *Layer) Forward(x []float32) (*Activations, error) {
	if len(x) != lay.InputSize {
		return nil, fmt.Errorf("%w: input has length %d, layer takes %d", ErrDimensionMismatch, len(x), lay.InputSize)
	}

	act := &Activations{
		Z: make([]float32, lay.OutputSize),
		A: make([]float32, lay.OutputSize),
	}
	MatVec(lay.W, x, act.Z)
	lay.Activation.activate(act.Z, act.A)
	return act, nil
}

// Backward computes the gradients of the cost given x, the Activations that
// Forward returned for x, and djda, the gradient of the cost wrt the layer
// output.
func (lay *Layer) Backward(x []float32, act *Activations, djda []float32) (*Gradients, error) {
	if err := lay.checkBackward(x, act); err != nil {
		return nil, err
	}
	if len(djda) != lay.OutputSize {
		return nil, fmt.Errorf("%w: output gradient has length %d, layer outputs %d", ErrDimensionMismatch, len(djda), lay.OutputSize)
	}

	djdz := make([]float32, lay.OutputSize)
	lay.Activation.chain(act.Z, act.A, djda, djdz)
	return lay.backwardFromPreactivation(x, djdz), nil
}

// BackwardFromPreactivation is Backward for callers that already hold the
// gradient wrt z, such as a softmax output trained with negative
// log-likelihood where djdz = a - y.
func (lay *Layer) BackwardFromPreactivation(x []float32, djdz []float32) (*Gradients, error) {
	if len(x) != lay.InputSize {
		return nil, fmt.Errorf("%w: input has length %d, layer takes %d", ErrDimensionMismatch, len(x), lay.InputSize)
	}
	if len(djdz) != lay.OutputSize {
		return nil, fmt.Errorf("%w: pre-activation gradient has length %d, layer outputs %d", ErrDimensionMismatch, len(djdz), lay.OutputSize)
	}
	return lay.backwardFromPreactivation(x, djdz), nil
}

func (lay *Layer) backwardFromPreactivation(x, djdz []float32) *Gradients {
	g := &Gradients{
		Djdz: djdz,
		Djdw: MakeAF32(lay.OutputSize, lay.InputSize),
		Djdx: make([]float32, lay.InputSize),
	}
	Outer(djdz, x, g.Djdw)
	MatTVec(lay.W, djdz, g.Djdx)
	return g
}

// Update applies one gradient descent step, W -= learningRate * dJ/dW.
func (lay *Layer) Update(g *Gradients, learningRate float32) {
	Axpy(-learningRate, g.Djdw.V, lay.W.V)
}

// Back runs Backward and, if updateWeights is set, Update.  It returns the
// gradient to hand to the previous layer.  The returned gradient is computed
// with the weights as they were before the update.
func (lay *Layer) Back(x []float32, act *Activations, djda []float32, learningRate float32, updateWeights bool) ([]float32, error) {
	g, err := lay.Backward(x, act, djda)
	if err != nil {
		return nil, err
	}
	if updateWeights {
		lay.Update(g, learningRate)
	}
	return g.Djdx, nil
}

func (lay *Layer) checkBackward(x []float32, act *Activations) error {
	if len(x) != lay.InputSize {
		return fmt.Errorf("%w: input has length %d, layer takes %d", ErrDimensionMismatch, len(x), lay.InputSize)
	}
	if act == nil || len(act.Z) != lay.OutputSize || len(act.A) != lay.OutputSize {
		return fmt.Errorf("%w: activations do not belong to this layer", ErrDimensionMismatch)
	}
	return nil
}
