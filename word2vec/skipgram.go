package word2vec

import (
	"fmt"
	"math"
	"slices"

	"github.com/ahmedtd/brickml/toolbox"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SkipGram predicts each context word independently from the center word's
// input vector.
//
// A SkipGram owns its Embeddings for the duration of training; it is not safe
// for concurrent use.
type SkipGram struct {
	Embeddings *Embeddings
	Vocab      *Vocabulary
	Config     TrainerConfig
}

// SkipGramForward is the result of SkipGram.Forward.
type SkipGramForward struct {
	Hidden        []float32 // the center word's input vector
	Z             []float32 // Out·Hidden
	Probabilities []float32 // p(j | center) for every word j
}

func NewSkipGram(emb *Embeddings, vocab *Vocabulary, cfg TrainerConfig) (*SkipGram, error) {
	if emb.VocabSize() != vocab.Size() {
		return nil, fmt.Errorf("%w: embeddings cover %d words, vocabulary has %d", toolbox.ErrDimensionMismatch, emb.VocabSize(), vocab.Size())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SkipGram{Embeddings: emb, Vocab: vocab, Config: cfg}, nil
}

func (m *SkipGram) Forward(center int) (*SkipGramForward, error) {
	if err := m.Embeddings.checkIndex(center); err != nil {
		return nil, err
	}
	fwd := &SkipGramForward{
		Hidden:        m.Embeddings.InputVector(center),
		Z:             make([]float32, m.Embeddings.VocabSize()),
		Probabilities: make([]float32, m.Embeddings.VocabSize()),
	}
	toolbox.MatVec(m.Embeddings.Out, fwd.Hidden, fwd.Z)
	toolbox.SoftmaxInto(fwd.Z, fwd.Probabilities)
	return fwd, nil
}

// PairProbability is the full-softmax probability of out appearing in the
// context of center.
func (m *SkipGram) PairProbability(center, out int) (float32, error) {
	if err := m.Embeddings.checkIndex(out); err != nil {
		return 0, err
	}
	fwd, err := m.Forward(center)
	if err != nil {
		return 0, err
	}
	return fwd.Probabilities[out], nil
}

// LogProbGradient is the gradient of log p(out | center) wrt the center
// word's input vector, in closed form:
//
//	u_out - Σ_j p(j | center) u_j
//
// computed as u_out - Outᵗ·p.
func (m *SkipGram) LogProbGradient(center, out int) ([]float64, error) {
	if err := m.Embeddings.checkIndex(out); err != nil {
		return nil, err
	}
	fwd, err := m.Forward(center)
	if err != nil {
		return nil, err
	}

	vocabSize, vecSize := m.Embeddings.VocabSize(), m.Embeddings.VecSize()
	outTable := mat.NewDense(vocabSize, vecSize, toFloat64(m.Embeddings.Out.V))
	p := mat.NewVecDense(vocabSize, toFloat64(fwd.Probabilities))

	var expected mat.VecDense
	expected.MulVec(outTable.T(), p)

	grad := make([]float64, vecSize)
	floats.SubTo(grad, toFloat64(m.Embeddings.OutputVector(out)), expected.RawVector().Data)
	return grad, nil
}

// LogProbGradientNaive computes the same gradient as LogProbGradient by
// evaluating p(j | center) separately for every word j and summing
// explicitly.  It exists to cross-check the closed form.
func (m *SkipGram) LogProbGradientNaive(center, out int) ([]float64, error) {
	if err := m.Embeddings.checkIndex(center); err != nil {
		return nil, err
	}
	if err := m.Embeddings.checkIndex(out); err != nil {
		return nil, err
	}

	vocabSize, vecSize := m.Embeddings.VocabSize(), m.Embeddings.VecSize()
	in := toFloat64(m.Embeddings.InputVector(center))

	dots := make([]float64, vocabSize)
	for j := 0; j < vocabSize; j++ {
		dots[j] = floats.Dot(toFloat64(m.Embeddings.OutputVector(j)), in)
	}
	maxDot := floats.Max(dots)
	var denominator float64
	for j := 0; j < vocabSize; j++ {
		denominator += math.Exp(dots[j] - maxDot)
	}

	grad := toFloat64(m.Embeddings.OutputVector(out))
	for j := 0; j < vocabSize; j++ {
		pj := math.Exp(dots[j]-maxDot) / denominator
		uj := toFloat64(m.Embeddings.OutputVector(j))
		for d := 0; d < vecSize; d++ {
			grad[d] -= pj * uj[d]
		}
	}
	return grad, nil
}

// Backward takes one full-softmax gradient descent step for the pair (center,
// out) given the forward pass for center.
func (m *SkipGram) Backward(fwd *SkipGramForward, center, out int) error {
	if err := m.Embeddings.checkIndex(center); err != nil {
		return err
	}
	if err := m.Embeddings.checkIndex(out); err != nil {
		return err
	}
	if err := m.Embeddings.checkForward(fwd.Hidden, fwd.Probabilities); err != nil {
		return err
	}
	alpha := m.Config.LearningRate

	gradOut := append([]float32(nil), fwd.Probabilities...)
	gradOut[out] -= 1

	gradHidden := make([]float32, m.Embeddings.VecSize())
	toolbox.MatTVec(m.Embeddings.Out, gradOut, gradHidden)

	for i, g := range gradOut {
		toolbox.Axpy(-alpha*g, fwd.Hidden, m.Embeddings.Out.Row(i))
	}
	m.Embeddings.In.AddCol(center, -alpha, gradHidden)
	return nil
}

// Step trains on one (center, out) pair with the configured objective and
// returns the cost before the update.
func (m *SkipGram) Step(center, out int) (float32, error) {
	if err := m.Embeddings.checkIndex(center); err != nil {
		return 0, err
	}
	if err := m.Embeddings.checkIndex(out); err != nil {
		return 0, err
	}

	switch m.Config.Objective {
	case NegativeSampling:
		negatives, err := m.Vocab.SampleNegative(m.Config.Rand, m.Config.NegativeSamples, out)
		if err != nil {
			return 0, err
		}
		hidden := m.Embeddings.InputVector(center)
		cost, gradHidden := NegativeSamplingStep(m.Embeddings.Out, hidden, out, negatives, m.Config.LearningRate)
		m.Embeddings.In.AddCol(center, -m.Config.LearningRate, gradHidden)
		return cost, nil
	default:
		fwd, err := m.Forward(center)
		if err != nil {
			return 0, err
		}
		cost := LogitCost(fwd.Z, out)
		if err := m.Backward(fwd, center, out); err != nil {
			return 0, err
		}
		return cost, nil
	}
}

// Train runs the configured number of iterations over sentences and returns
// the cost trace.  Each center word contributes the mean cost over its
// context pairs.
func (m *SkipGram) Train(sentences [][]string) ([]float32, error) {
	return train(sentences, &m.Config, func(padded []string, center int) (float32, bool, error) {
		c, ok := m.Vocab.IndexOf(padded[center])
		if !ok {
			return 0, false, nil
		}
		context := indicesOf(m.Vocab, m.Config.Window.Context(padded, center))
		if len(context) == 0 {
			return 0, false, nil
		}

		var total float32
		for _, out := range context {
			cost, err := m.Step(c, out)
			if err != nil {
				return 0, false, err
			}
			total += cost
		}
		return total / float32(len(context)), true, nil
	})
}

// WordScore pairs a word with a probability or similarity.
type WordScore struct {
	Word  string
	Score float64
}

// MostLikelyOutputWords returns the n words with the highest p(word | center),
// most likely first.
func (m *SkipGram) MostLikelyOutputWords(center string, n int) ([]WordScore, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: n must be non-negative, got %d", toolbox.ErrInvalidConfiguration, n)
	}
	c, ok := m.Vocab.IndexOf(center)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in the vocabulary", toolbox.ErrInvalidConfiguration, center)
	}
	fwd, err := m.Forward(c)
	if err != nil {
		return nil, err
	}

	scores := make([]WordScore, len(fwd.Probabilities))
	for j, p := range fwd.Probabilities {
		scores[j] = WordScore{Word: m.Vocab.Word(j), Score: float64(p)}
	}
	return topN(scores, n), nil
}

func topN(scores []WordScore, n int) []WordScore {
	slices.SortStableFunc(scores, func(a, b WordScore) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if n < len(scores) {
		scores = scores[:n]
	}
	return scores
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
