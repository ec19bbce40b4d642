package word2vec

import (
	"math/rand"
	"testing"

	"github.com/ahmedtd/brickml/toolbox"
	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestNegativeSamplingCostFiniteAndNonNegative(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	vocab, err := BuildVocabulary(Tokenize("a b c d e f g h i j"), DefaultPower)
	require.NoError(t, err)

	for trial := 0; trial < 200; trial++ {
		// Every fifth trial uses tables large enough to saturate the
		// sigmoid.  Once every margin exceeds about 104, each log σ term
		// underflows float32 and the cost rounds to exactly zero, so those
		// trials only require a non-negative cost.
		saturated := trial%5 == 0
		scale := float32(1 + trial%3)
		if saturated {
			scale = 50
		}
		out := toolbox.MakeUniformAF32(r, -scale, scale, vocab.Size(), 4)
		hidden := make([]float32, 4)
		for i := range hidden {
			hidden[i] = (r.Float32()*2 - 1) * scale
		}

		positive := 2 + r.Intn(vocab.Size()-2)
		k := 1 + r.Intn(5)
		negatives, err := vocab.SampleNegative(r, k, positive)
		require.NoError(t, err)

		cost := NegativeSamplingCost(out, hidden, positive, negatives)
		require.False(t, math32.IsNaN(cost) || math32.IsInf(cost, 0), "cost %v", cost)
		if saturated {
			require.GreaterOrEqual(t, cost, float32(0))
		} else {
			require.Greater(t, cost, float32(0))
		}

		stepCost, djdh := NegativeSamplingStep(out, hidden, positive, negatives, 0.01)
		require.Equal(t, cost, stepCost)
		for _, g := range djdh {
			require.False(t, math32.IsNaN(g) || math32.IsInf(g, 0))
		}
	}
}

func TestNegativeSamplingStepTouchesOnlySampledRows(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	out := toolbox.MakeUniformAF32(r, -1, 1, 10, 3)
	before := toolbox.AF32Copy(out)
	hidden := []float32{0.3, -0.2, 0.5}

	NegativeSamplingStep(out, hidden, 4, []int{1, 7}, 0.5)

	for i := 0; i < 10; i++ {
		changed := !cmp.Equal(out.Row(i), before.Row(i))
		sampled := i == 4 || i == 1 || i == 7
		require.Equal(t, sampled, changed, "row %d", i)
	}
}

func TestNegativeSamplingGradient(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	out := toolbox.MakeUniformAF32(r, -1, 1, 6, 4)
	hidden := []float32{0.1, -0.4, 0.25, 0.6}
	positive, negatives := 0, []int{2, 5}

	// With a zero learning rate the step only reports the gradient.
	_, djdh := NegativeSamplingStep(out, hidden, positive, negatives, 0)

	const eps = 1e-2
	numerical := make([]float32, len(hidden))
	perturbed := make([]float32, len(hidden))
	for i := range hidden {
		copy(perturbed, hidden)
		perturbed[i] = hidden[i] + eps
		right := NegativeSamplingCost(out, perturbed, positive, negatives)
		perturbed[i] = hidden[i] - eps
		left := NegativeSamplingCost(out, perturbed, positive, negatives)
		numerical[i] = (right - left) / (2 * eps)
	}

	if diff := cmp.Diff(djdh, numerical, cmpopts.EquateApprox(0, 1e-3)); diff != "" {
		t.Errorf("Analytic gradient disagrees with finite difference; diff (-analytic +numerical)\n%s", diff)
	}
}

func TestNegativeSamplingStepReducesCost(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	out := toolbox.MakeUniformAF32(r, -1, 1, 6, 4)
	hidden := []float32{0.1, -0.4, 0.25, 0.6}

	before, _ := NegativeSamplingStep(out, hidden, 0, []int{2, 5}, 0.1)
	after := NegativeSamplingCost(out, hidden, 0, []int{2, 5})
	require.Less(t, after, before)
}
