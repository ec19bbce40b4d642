package toolbox

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
)

func TestAgreesWithHandcodedLinreg(t *testing.T) {
	alpha := float32(0.01)
	epochs := 50

	x, y := generate1DLinRegDataset(1000)

	w, err := MakeAF32FromRows([][]float32{{0}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	lay, err := MakeLayerFromWeights(Linear, w)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	net, err := MakeNetwork(MeanSquaredError, lay)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for epoch := 0; epoch < epochs; epoch++ {
		for k := range x {
			if _, err := net.Step([]float32{x[k]}, []float32{y[k]}, alpha); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		}
	}
	gotM := net.Layers[0].W.At2(0, 0)
	t.Logf("toolkit m=%v loss=%v", gotM, lossFn(x, y, gotM))

	m := stochasticGradientDescentLinReg(x, y, alpha, epochs, 0)
	t.Logf("original m=%v loss=%v", m, lossFn(x, y, m))

	if math32.Abs(gotM-m) > 0.001 {
		t.Errorf("Disagreement on m parameter; got %v, want %v", gotM, m)
	}
	if math32.Abs(gotM-10) > 0.5 {
		t.Errorf("Did not converge; got m=%v, want about 10", gotM)
	}
}

func generate1DLinRegDataset(m int) (x, y []float32) {
	r := rand.New(rand.NewSource(12345))

	x = make([]float32, m)
	y = make([]float32, m)

	for i := 0; i < m; i++ {
		// Normalization is important --- if I multiply x1 * 1000, the loss is
		// huge and the model blows up with NaNs.
		x1 := r.Float32()
		y1 := 10 * x1

		// Perturb the point a little bit
		y1 += 0.1*math32.Sin(0.001*x1) + (r.Float32()-0.5)*0.1

		x[i] = x1
		y[i] = y1
	}

	return x, y
}

func lossFn(x, y []float32, m float32) float32 {
	loss := float32(0)
	for i := range x {
		pred := m * x[i]
		loss += (pred - y[i]) * (pred - y[i])
	}
	loss /= 2 * float32(len(x))
	return loss
}

func stochasticGradientDescentLinReg(x, y []float32, learningRate float32, epochs int, initM float32) float32 {
	m := initM
	for epoch := 0; epoch < epochs; epoch++ {
		for i := range x {
			pred := m * x[i]
			m -= learningRate * ((pred - y[i]) * x[i])
		}
	}
	return m
}
