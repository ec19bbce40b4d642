// Command logistic-regression-simulator trains a single softmax layer on a
// linearly separable two-class problem and compares it against a hand-coded
// logistic regression fit to the same points.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/ahmedtd/brickml/toolbox"
	"github.com/chewxy/math32"
)

var (
	numPoints    = flag.Int("points", 1000, "Number of generated points")
	alpha        = flag.Float64("alpha", 0.01, "Learning rate for both models")
	epochs       = flag.Int("epochs", 100, "Passes of per-example gradient descent for the network")
	steps        = flag.Int("steps", 100000, "Full-batch gradient descent steps for the hand-coded model")
	seed         = flag.Int64("seed", 12345, "Random seed")
	weightOutput = flag.String("output-weight-file", "", "If set, save the network weights (safetensors format)")
)

func main() {
	flag.Parse()

	x, y, labels := generateDataset(*numPoints, rand.New(rand.NewSource(*seed)))

	num1s := 0
	for _, l := range labels {
		if l == 1 {
			num1s++
		}
	}
	log.Printf("original data set has %d 1s and %d 0s", num1s, len(labels)-num1s)

	r := rand.New(rand.NewSource(*seed))
	net, err := toolbox.MakeNetwork(
		toolbox.NegativeLogLikelihood,
		toolbox.MakeLayerInRange(toolbox.Softmax, 3, 2, -0.1, 0.1, r),
	)
	if err != nil {
		log.Fatalf("Error: while creating network: %v", err)
	}
	net.Logger = log.Default()

	losses, err := net.GradientDescent(x, y, float32(*alpha), *epochs, r)
	if err != nil {
		log.Fatalf("Error: while training network: %v", err)
	}

	// Column 2 of the input is the constant 1, so it carries the bias.  The
	// decision boundary is where both class scores are equal.
	w := net.Layers[0].W
	dw0 := w.At2(1, 0) - w.At2(0, 0)
	dw1 := w.At2(1, 1) - w.At2(0, 1)
	db := w.At2(1, 2) - w.At2(0, 2)
	log.Printf("toolbox learned model W=%v loss=%v", w.V, losses[len(losses)-1])
	log.Printf("toolbox learned decision boundary x1=%v*x0+%v", -dw0/dw1, -db/dw1)

	toolboxNumMispredictions := 0
	for k := range x {
		pred, err := net.Predict(x[k])
		if err != nil {
			log.Fatalf("Error: while predicting: %v", err)
		}
		if toolbox.ArgMax(pred) != labels[k] {
			toolboxNumMispredictions++
		}
	}
	log.Printf("toolbox had %d mispredictions (%v%%)", toolboxNumMispredictions, float32(toolboxNumMispredictions)/float32(len(x))*float32(100))

	if *weightOutput != "" {
		if err := writeWeights(*weightOutput, net); err != nil {
			log.Fatalf("Error: %v", err)
		}
	}

	m := &Model{}
	m.Learn(x, labels, float32(*alpha), 0.0, *steps)
	log.Printf("Learned model W1=%v W2=%v B=%v", m.W1, m.W2, m.B)

	slope := -m.W1 / m.W2
	intercept := -m.B / m.W2
	log.Printf("Learned decision boundary x1=%v*x0+%v", slope, intercept)

	handNumMispredictions := 0
	for k := range x {
		if m.apply(x[k]) != labels[k] {
			handNumMispredictions++
		}
	}
	log.Printf("hand had %d mispredictions (%v%%)", handNumMispredictions, float32(handNumMispredictions)/float32(len(x))*float32(100))
}

func writeWeights(path string, net *toolbox.Network) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating weight file: %w", err)
	}
	defer f.Close()

	tensors := map[string]*toolbox.AF32{}
	net.DumpTensors(tensors)
	if err := toolbox.WriteSafeTensors(f, tensors); err != nil {
		return fmt.Errorf("while writing weight tensors: %w", err)
	}
	return f.Close()
}

// generateDataset draws points from the unit square and labels them 1 above
// the line x1 = x0.  Each input is (x0, x1, 1); each target is one-hot.
func generateDataset(m int, r *rand.Rand) (x, y [][]float32, labels []int) {
	x = make([][]float32, m)
	y = make([][]float32, m)
	labels = make([]int, m)

	for i := 0; i < m; i++ {
		x0 := r.Float32()
		x1 := r.Float32()
		label := 0
		if x1 > x0 {
			label = 1
		}

		x[i] = []float32{x0, x1, 1}
		y[i] = toolbox.OneHot(2, label)
		labels[i] = label
	}

	return x, y, labels
}

// Model is logistic regression on (x0, x1) written out by hand.
type Model struct {
	W1, W2 float32
	B      float32
}

func (m *Model) probability(x []float32) float32 {
	return toolbox.SigmoidScalar(m.W1*x[0] + m.W2*x[1] + m.B)
}

func (m *Model) apply(x []float32) int {
	if m.probability(x) > 0.5 {
		return 1
	}
	return 0
}

func (m *Model) loss(x [][]float32, labels []int, lambda float32) float32 {
	predictionCost := float32(0)
	regularizationCost := float32(0)

	for i := range x {
		pred := m.probability(x[i])
		if labels[i] == 1 {
			predictionCost += -math32.Log(pred)
		} else {
			predictionCost += -math32.Log(float32(1) - pred)
		}

		regularizationCost += m.W1*m.W1 + m.W2*m.W2
	}

	// The regularization cost is divided by 2n, mostly to make the gradient math simpler.
	n := float32(len(x))
	return predictionCost/n + lambda*regularizationCost/2/n
}

func (m *Model) gradient(x [][]float32, labels []int, lambda float32) (dW1, dW2, dB float32) {
	for i := range x {
		diff := m.probability(x[i]) - float32(labels[i])
		dW1 += diff * x[i][0]
		dW2 += diff * x[i][1]
		dB += diff
	}

	// Regularize: encourage model parameters to be small.
	dW1 += lambda * m.W1
	dW2 += lambda * m.W2

	n := float32(len(x))
	return dW1 / n, dW2 / n, dB / n
}

func (m *Model) Learn(x [][]float32, labels []int, learningRate float32, lambda float32, steps int) {
	for i := 0; i < steps; i++ {
		dJdW1, dJdW2, dJdb := m.gradient(x, labels, lambda)
		m.W1 -= learningRate * dJdW1
		m.W2 -= learningRate * dJdW2
		m.B -= learningRate * dJdb

		if i%10000 == 0 {
			log.Printf("step=%v W1=%v W2=%v B=%v djdw1=%v djdw2=%v djdb=%v loss=%v", i, m.W1, m.W2, m.B, dJdW1, dJdW2, dJdb, m.loss(x, labels, lambda))
		}
	}
}
