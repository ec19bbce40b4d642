package word2vec

import (
	"github.com/ahmedtd/brickml/toolbox"
)

// NegativeSamplingCost is -log σ(u_pos·h) - Σ_neg log σ(-u_neg·h), where u are
// rows of out and h is the hidden vector.
func NegativeSamplingCost(out *toolbox.AF32, hidden []float32, positive int, negatives []int) float32 {
	cost := -toolbox.LogSigmoid(toolbox.Dot(out.Row(positive), hidden))
	for _, n := range negatives {
		cost -= toolbox.LogSigmoid(-toolbox.Dot(out.Row(n), hidden))
	}
	return cost
}

// NegativeSamplingStep takes one gradient descent step on the negative
// sampling cost.  Only the 1+len(negatives) sampled rows of out are read or
// written, so a step costs O(k·d) regardless of vocabulary size.  It returns
// the cost before the update and dJ/dh, computed from the rows as they were
// before the update; the caller applies dJ/dh to the input vectors.
func NegativeSamplingStep(out *toolbox.AF32, hidden []float32, positive int, negatives []int, learningRate float32) (float32, []float32) {
	cost := float32(0)
	djdh := make([]float32, len(hidden))

	rows := make([]int, 0, 1+len(negatives))
	djdz := make([]float32, 0, 1+len(negatives))

	zPos := toolbox.Dot(out.Row(positive), hidden)
	cost -= toolbox.LogSigmoid(zPos)
	rows = append(rows, positive)
	djdz = append(djdz, toolbox.SigmoidScalar(zPos)-1)

	for _, n := range negatives {
		zNeg := toolbox.Dot(out.Row(n), hidden)
		cost -= toolbox.LogSigmoid(-zNeg)
		rows = append(rows, n)
		djdz = append(djdz, toolbox.SigmoidScalar(zNeg))
	}

	for i, row := range rows {
		toolbox.Axpy(djdz[i], out.Row(row), djdh)
	}
	for i, row := range rows {
		toolbox.Axpy(-learningRate*djdz[i], hidden, out.Row(row))
	}

	return cost, djdh
}
