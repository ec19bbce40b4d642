package toolbox

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
)

func TestAgreesWithGolden2DLinreg(t *testing.T) {
	alpha := float32(0.01)
	epochs := 100

	xs, ys := generate2DLinRegDataset(1000)

	net := &Network{
		LossFunction: MeanSquaredError,
		Layers: []*Layer{
			{
				Activation: Linear,
				W:          MakeAF32(1, 2),
				InputSize:  2,
				OutputSize: 1,
			},
		},
	}

	losses, err := net.GradientDescent(xs, ys, alpha, epochs, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	gotM0, gotM1 := net.Layers[0].W.At2(0, 0), net.Layers[0].W.At2(0, 1)
	t.Logf("toolkit m0=%v m1=%v loss=%v", gotM0, gotM1, mseLoss2D(xs, ys, gotM0, gotM1))

	m0, m1 := gradientDescent2DLinReg(xs, ys, alpha, epochs, rand.New(rand.NewSource(7)))
	t.Logf("original m0=%v m1=%v loss=%v", m0, m1, mseLoss2D(xs, ys, m0, m1))

	if math32.Abs(gotM0-m0) > 0.001 {
		t.Errorf("Disagreement on m0 parameter; got %v, want %v", gotM0, m0)
	}

	if math32.Abs(gotM1-m1) > 0.001 {
		t.Errorf("Disagreement on m1 parameter; got %v, want %v", gotM1, m1)
	}

	if losses[len(losses)-1] >= losses[0] {
		t.Errorf("Loss did not decrease; first epoch %v, last epoch %v", losses[0], losses[len(losses)-1])
	}
}

func generate2DLinRegDataset(m int) (xs, ys [][]float32) {
	r := rand.New(rand.NewSource(12345))

	for k := 0; k < m; k++ {
		// Normalization is important --- if I multiply x1 * 1000, the loss is
		// huge and the model blows up with NaNs.
		x0 := r.Float32()
		x1 := r.Float32()
		y0 := 10*x0 + 3*x1

		// Perturb the point a little bit
		y0 += 0.1*math32.Sin(0.001*x0) + (r.Float32()-0.5)*0.1

		xs = append(xs, []float32{x0, x1})
		ys = append(ys, []float32{y0})
	}

	return xs, ys
}

func mseLoss2D(xs, ys [][]float32, m0, m1 float32) float32 {
	loss := float32(0)
	for k := range xs {
		pred := m0*xs[k][0] + m1*xs[k][1]
		loss += (pred - ys[k][0]) * (pred - ys[k][0]) / (2 * float32(len(xs)))
	}
	return loss
}

func gradientDescent2DLinReg(xs, ys [][]float32, learningRate float32, epochs int, r *rand.Rand) (m0, m1 float32) {
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	for epoch := 0; epoch < epochs; epoch++ {
		r.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, k := range order {
			pred := m0*xs[k][0] + m1*xs[k][1]
			gradM0 := (pred - ys[k][0]) * xs[k][0]
			gradM1 := (pred - ys[k][0]) * xs[k][1]
			m0 -= learningRate * gradM0
			m1 -= learningRate * gradM1
		}
	}
	return m0, m1
}
