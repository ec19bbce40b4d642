// Command gradient-descent-linreg fits y = m*x + b with a linear Network under
// mean squared error and with a hand-written gradient descent loop, and logs
// both fits.
package main

import (
	"flag"
	"log"
	"math/rand"

	"github.com/ahmedtd/brickml/toolbox"
)

var (
	learningRate = flag.Float64("learning-rate", 0.01, "Gradient descent step size")
	steps        = flag.Int("steps", 20000, "Steps for the hand-written loop, epochs for the network")
	seed         = flag.Int64("seed", 12345, "Random seed for the network")
)

func main() {
	flag.Parse()

	x := []float32{1.0, 2.0, 3.0}
	y := []float32{3.0, 4.0, 5.0}

	m, b := gradientDescentLinReg(x, y, float32(*learningRate), *steps, float32(0.0), float32(0.0))
	log.Printf("hand m=%v b=%v loss=%v", m, b, lossFn(x, y, m, b))

	net, err := fitNetwork(x, y, float32(*learningRate), *steps, rand.New(rand.NewSource(*seed)))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	w := net.Layers[0].W
	log.Printf("network m=%v b=%v", w.At2(0, 0), w.At2(0, 1))
}

// fitNetwork trains a single linear unit on inputs (x, 1), so the second
// weight plays the role of the intercept.
func fitNetwork(x, y []float32, learningRate float32, epochs int, r *rand.Rand) (*toolbox.Network, error) {
	net, err := toolbox.MakeNetwork(
		toolbox.MeanSquaredError,
		toolbox.MakeLayerInRange(toolbox.Linear, 2, 1, 0, 0, r),
	)
	if err != nil {
		return nil, err
	}

	xs := make([][]float32, len(x))
	ys := make([][]float32, len(y))
	for i := range x {
		xs[i] = []float32{x[i], 1}
		ys[i] = []float32{y[i]}
	}

	if _, err := net.GradientDescent(xs, ys, learningRate, epochs, r); err != nil {
		return nil, err
	}
	return net, nil
}

func lossFn(x, y []float32, m, b float32) float32 {
	loss := float32(0)
	for i := range x {
		pred := m*x[i] + b
		loss += (pred - y[i]) * (pred - y[i])
	}
	loss /= 2 * float32(len(x))
	return loss
}

func gradientFn(x, y []float32, m, b float32) (gradM, gradB float32) {
	for i := range x {
		pred := m*x[i] + b
		gradM += (pred - y[i]) * x[i]
		gradB += (pred - y[i])
	}
	gradM /= float32(len(x))
	gradB /= float32(len(x))
	return gradM, gradB
}

func gradientDescentLinReg(x, y []float32, learningRate float32, steps int, initM, initB float32) (m, b float32) {
	m = initM
	b = initB
	for i := 0; i < steps; i++ {
		gradM, gradB := gradientFn(x, y, m, b)
		m = m - learningRate*gradM
		b = b - learningRate*gradB
		if i%1000 == 0 {
			log.Printf("step=%v m=%v b=%v gradM=%v gradB=%v loss=%v", i, m, b, gradM, gradB, lossFn(x, y, m, b))
		}
	}
	return m, b
}
