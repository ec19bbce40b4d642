package word2vec

import (
	"fmt"

	"github.com/ahmedtd/brickml/toolbox"
)

// CBOW predicts a center word from the mean of its context words' input
// vectors.
//
// A CBOW owns its Embeddings for the duration of training; it is not safe for
// concurrent use.
type CBOW struct {
	Embeddings *Embeddings
	Vocab      *Vocabulary
	Config     TrainerConfig
}

// CBOWForward is the result of CBOW.Forward.
type CBOWForward struct {
	Hidden     []float32 // mean of the context input vectors
	Z          []float32 // Out·Hidden
	Hypothesis []float32 // softmax(Z) over the vocabulary
}

func NewCBOW(emb *Embeddings, vocab *Vocabulary, cfg TrainerConfig) (*CBOW, error) {
	if emb.VocabSize() != vocab.Size() {
		return nil, fmt.Errorf("%w: embeddings cover %d words, vocabulary has %d", toolbox.ErrDimensionMismatch, emb.VocabSize(), vocab.Size())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CBOW{Embeddings: emb, Vocab: vocab, Config: cfg}, nil
}

// Hidden returns the mean of the input vectors of context.
func (m *CBOW) Hidden(context []int) ([]float32, error) {
	if len(context) == 0 {
		return nil, fmt.Errorf("%w: empty context", toolbox.ErrDimensionMismatch)
	}
	for _, c := range context {
		if err := m.Embeddings.checkIndex(c); err != nil {
			return nil, err
		}
	}

	hidden := make([]float32, m.Embeddings.VecSize())
	scale := 1 / float32(len(context))
	col := make([]float32, m.Embeddings.VecSize())
	for _, c := range context {
		m.Embeddings.In.Col(c, col)
		toolbox.Axpy(scale, col, hidden)
	}
	return hidden, nil
}

func (m *CBOW) Forward(context []int) (*CBOWForward, error) {
	hidden, err := m.Hidden(context)
	if err != nil {
		return nil, err
	}
	fwd := &CBOWForward{
		Hidden:     hidden,
		Z:          make([]float32, m.Embeddings.VocabSize()),
		Hypothesis: make([]float32, m.Embeddings.VocabSize()),
	}
	toolbox.MatVec(m.Embeddings.Out, hidden, fwd.Z)
	toolbox.SoftmaxInto(fwd.Z, fwd.Hypothesis)
	return fwd, nil
}

// Backward takes one full-softmax gradient descent step for a forward pass
// over context whose true center word is correct.  A word listed more than
// once in context is updated once per listing.
func (m *CBOW) Backward(fwd *CBOWForward, context []int, correct int) error {
	if err := m.Embeddings.checkIndex(correct); err != nil {
		return err
	}
	if len(context) == 0 {
		return fmt.Errorf("%w: empty context", toolbox.ErrDimensionMismatch)
	}
	for _, c := range context {
		if err := m.Embeddings.checkIndex(c); err != nil {
			return err
		}
	}
	if err := m.Embeddings.checkForward(fwd.Hidden, fwd.Hypothesis); err != nil {
		return err
	}
	alpha := m.Config.LearningRate

	gradOut := append([]float32(nil), fwd.Hypothesis...)
	gradOut[correct] -= 1

	gradHidden := make([]float32, m.Embeddings.VecSize())
	toolbox.MatTVec(m.Embeddings.Out, gradOut, gradHidden)

	for i, g := range gradOut {
		toolbox.Axpy(-alpha*g, fwd.Hidden, m.Embeddings.Out.Row(i))
	}

	scale := -alpha / float32(len(context))
	for _, c := range context {
		m.Embeddings.In.AddCol(c, scale, gradHidden)
	}
	return nil
}

// Step trains on one (context, center) example with the configured objective
// and returns the cost before the update.
func (m *CBOW) Step(context []int, center int) (float32, error) {
	if err := m.Embeddings.checkIndex(center); err != nil {
		return 0, err
	}

	switch m.Config.Objective {
	case NegativeSampling:
		hidden, err := m.Hidden(context)
		if err != nil {
			return 0, err
		}
		negatives, err := m.Vocab.SampleNegative(m.Config.Rand, m.Config.NegativeSamples, center)
		if err != nil {
			return 0, err
		}
		cost, gradHidden := NegativeSamplingStep(m.Embeddings.Out, hidden, center, negatives, m.Config.LearningRate)
		scale := -m.Config.LearningRate / float32(len(context))
		for _, c := range context {
			m.Embeddings.In.AddCol(c, scale, gradHidden)
		}
		return cost, nil
	default:
		fwd, err := m.Forward(context)
		if err != nil {
			return 0, err
		}
		cost := LogitCost(fwd.Z, center)
		if err := m.Backward(fwd, context, center); err != nil {
			return 0, err
		}
		return cost, nil
	}
}

// Train runs the configured number of iterations over sentences and returns
// the cost trace.  Sentences with nothing to train on record SkippedCost.
func (m *CBOW) Train(sentences [][]string) ([]float32, error) {
	return train(sentences, &m.Config, func(padded []string, center int) (float32, bool, error) {
		target, ok := m.Vocab.IndexOf(padded[center])
		if !ok {
			return 0, false, nil
		}
		context := indicesOf(m.Vocab, m.Config.Window.Context(padded, center))
		if len(context) == 0 {
			return 0, false, nil
		}
		cost, err := m.Step(context, target)
		return cost, err == nil, err
	})
}
