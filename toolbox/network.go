package toolbox

import (
	"fmt"
	"log"
	"math/rand"
	"slices"
)

// Network is an ordered stack of layers.  Layer l's OutputSize equals layer
// l+1's InputSize.
//
// A Network is single-writer: Backward with updateWeights and GradientDescent
// mutate the layers in place and must not run concurrently with anything else
// on the same Network.
type Network struct {
	LossFunction LossFunctionType
	Layers       []*Layer

	// Logger, if set, receives per-epoch progress from GradientDescent.
	Logger *log.Logger
}

// LayerSpec describes a layer to be created with random weights.
type LayerSpec struct {
	Activation ActivationType
	InputSize  int
	OutputSize int
}

// Trace is the record of one forward pass.  Inputs[l] is the input to layer
// l; Activations[l] is its output.
type Trace struct {
	Inputs      [][]float32
	Activations []*Activations
}

// Output is the last layer's activated output.
func (t *Trace) Output() []float32 {
	return t.Activations[len(t.Activations)-1].A
}

func MakeNetwork(loss LossFunctionType, layers ...*Layer) (*Network, error) {
	net := &Network{
		LossFunction: loss,
		Layers:       layers,
	}
	if err := net.Validate(); err != nil {
		return nil, err
	}
	return net, nil
}

// MakeNetworkFromSpecs creates every layer with weights drawn uniformly from
// [0, 1).
func MakeNetworkFromSpecs(loss LossFunctionType, r *rand.Rand, specs ...LayerSpec) (*Network, error) {
	layers := make([]*Layer, 0, len(specs))
	for i, s := range specs {
		if s.InputSize <= 0 || s.OutputSize <= 0 {
			return nil, fmt.Errorf("%w: layer %d has size %dx%d", ErrInvalidConfiguration, i, s.OutputSize, s.InputSize)
		}
		layers = append(layers, MakeLayer(s.Activation, s.InputSize, s.OutputSize, r))
	}
	return MakeNetwork(loss, layers...)
}

// Validate checks that consecutive layers have compatible sizes and that the
// loss function suits the output layer.
func (net *Network) Validate() error {
	if len(net.Layers) == 0 {
		return fmt.Errorf("%w: network has no layers", ErrInvalidConfiguration)
	}
	for l, lay := range net.Layers {
		if lay.W == nil || !slices.Equal(lay.W.Shape, []int{lay.OutputSize, lay.InputSize}) {
			return fmt.Errorf("%w: layer %d weights do not have shape (%d, %d)", ErrDimensionMismatch, l, lay.OutputSize, lay.InputSize)
		}
		if l > 0 && net.Layers[l-1].OutputSize != lay.InputSize {
			return fmt.Errorf("%w: layer %d outputs %d values but layer %d takes %d", ErrDimensionMismatch, l-1, net.Layers[l-1].OutputSize, l, lay.InputSize)
		}
	}
	switch net.LossFunction {
	case NegativeLogLikelihood:
		if net.Layers[len(net.Layers)-1].Activation != Softmax {
			return fmt.Errorf("%w: negative log-likelihood needs a softmax output layer", ErrInvalidConfiguration)
		}
	case MeanSquaredError:
	default:
		return fmt.Errorf("%w: unknown loss function %v", ErrInvalidConfiguration, net.LossFunction)
	}
	return nil
}

func (net *Network) InputSize() int {
	return net.Layers[0].InputSize
}

func (net *Network) OutputSize() int {
	return net.Layers[len(net.Layers)-1].OutputSize
}

// Forward feeds x through every layer in order.
func (net *Network) Forward(x []float32) (*Trace, error) {
	trace := &Trace{
		Inputs:      make([][]float32, len(net.Layers)),
		Activations: make([]*Activations, len(net.Layers)),
	}

	in := x
	for l, lay := range net.Layers {
		act, err := lay.Forward(in)
		if err != nil {
			return nil, fmt.Errorf("while applying layer %d: %w", l, err)
		}
		trace.Inputs[l] = in
		trace.Activations[l] = act

		// This layer's output becomes the input for the next layer.
		in = act.A
	}
	return trace, nil
}

// Predict returns the network output for x.
func (net *Network) Predict(x []float32) ([]float32, error) {
	trace, err := net.Forward(x)
	if err != nil {
		return nil, err
	}
	return trace.Output(), nil
}

// Cost evaluates the loss function on a forward pass against target y.
func (net *Network) Cost(trace *Trace, y []float32) (float32, error) {
	out := trace.Output()
	if len(y) != len(out) {
		return 0, fmt.Errorf("%w: target has length %d, network outputs %d", ErrDimensionMismatch, len(y), len(out))
	}
	switch net.LossFunction {
	case MeanSquaredError:
		return MeanSquaredErrorLoss(y, out), nil
	case NegativeLogLikelihood:
		return NegativeLogLikelihoodLoss(y, out), nil
	default:
		panic("unimplemented loss function type")
	}
}

// Backward propagates the error for target y back through the layers of a
// forward pass, returning the gradient of the cost wrt the network input.  If
// updateWeights is set, each layer takes one gradient descent step after the
// gradient it passes down has been computed.
func (net *Network) Backward(trace *Trace, y []float32, learningRate float32, updateWeights bool) ([]float32, error) {
	last := len(net.Layers) - 1
	out := trace.Output()
	if len(y) != len(out) {
		return nil, fmt.Errorf("%w: target has length %d, network outputs %d", ErrDimensionMismatch, len(y), len(out))
	}

	var g *Gradients
	var err error
	switch net.LossFunction {
	case NegativeLogLikelihood:
		djdz := make([]float32, len(out))
		SoftmaxNegativeLogLikelihoodGradient(y, out, djdz)
		g, err = net.Layers[last].BackwardFromPreactivation(trace.Inputs[last], djdz)
	case MeanSquaredError:
		djda := make([]float32, len(out))
		MeanSquaredErrorLossGradient(y, out, djda)
		g, err = net.Layers[last].Backward(trace.Inputs[last], trace.Activations[last], djda)
	default:
		panic("unimplemented loss function type")
	}
	if err != nil {
		return nil, fmt.Errorf("while backpropagating layer %d: %w", last, err)
	}
	if updateWeights {
		net.Layers[last].Update(g, learningRate)
	}

	// Backprop.  djdx of layer l+1 is the djda of layer l.
	djda := g.Djdx
	for l := last - 1; l >= 0; l-- {
		djda, err = net.Layers[l].Back(trace.Inputs[l], trace.Activations[l], djda, learningRate, updateWeights)
		if err != nil {
			return nil, fmt.Errorf("while backpropagating layer %d: %w", l, err)
		}
	}
	return djda, nil
}

// Step runs one forward and backward pass on a single example, updating the
// weights, and returns the cost before the update.
func (net *Network) Step(x, y []float32, learningRate float32) (float32, error) {
	trace, err := net.Forward(x)
	if err != nil {
		return 0, err
	}
	cost, err := net.Cost(trace, y)
	if err != nil {
		return 0, err
	}
	if err := checkFinite("cost", []float32{cost}); err != nil {
		return 0, err
	}
	if _, err := net.Backward(trace, y, learningRate, true); err != nil {
		return 0, err
	}
	return cost, nil
}

// GradientDescent runs per-example stochastic gradient descent over (xs, ys)
// for the given number of epochs, presenting examples in a fresh random order
// each epoch.  It returns the mean cost of each epoch.
func (net *Network) GradientDescent(xs, ys [][]float32, learningRate float32, epochs int, r *rand.Rand) ([]float32, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %d inputs but %d targets", ErrDimensionMismatch, len(xs), len(ys))
	}
	if len(xs) == 0 {
		return nil, fmt.Errorf("%w: no training examples", ErrInvalidConfiguration)
	}

	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}

	losses := make([]float32, 0, epochs)
	for epoch := 0; epoch < epochs; epoch++ {
		r.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		var total float32
		for _, k := range order {
			cost, err := net.Step(xs[k], ys[k], learningRate)
			if err != nil {
				return losses, fmt.Errorf("while training on example %d in epoch %d: %w", k, epoch, err)
			}
			total += cost
		}
		losses = append(losses, total/float32(len(xs)))

		if net.Logger != nil {
			net.Logger.Printf("epoch=%d loss=%v", epoch, losses[epoch])
		}
	}
	return losses, nil
}

// LoadTensors replaces each layer's weights with the tensor stored under
// "net.<l>.weights".
func (net *Network) LoadTensors(tensors map[string]*AF32) error {
	for l := 0; l < len(net.Layers); l++ {
		weightKey := fmt.Sprintf("net.%d.weights", l)
		weightTensor, ok := tensors[weightKey]
		if !ok {
			return fmt.Errorf("no entry for %s", weightKey)
		}
		wantWeightShape := []int{net.Layers[l].OutputSize, net.Layers[l].InputSize}
		if !slices.Equal(weightTensor.Shape, wantWeightShape) {
			return fmt.Errorf("%w: %s got %v want %v", ErrDimensionMismatch, weightKey, weightTensor.Shape, wantWeightShape)
		}
		net.Layers[l].W = weightTensor
	}

	return nil
}

func (net *Network) DumpTensors(tensors map[string]*AF32) {
	for l := 0; l < len(net.Layers); l++ {
		tensors[fmt.Sprintf("net.%d.weights", l)] = net.Layers[l].W
	}
}
