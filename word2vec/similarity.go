package word2vec

import (
	"fmt"

	"github.com/ahmedtd/brickml/toolbox"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Similar returns the n words whose input vectors have the highest cosine
// similarity to word's, most similar first.  The word itself and the padding
// tokens are never returned.
func Similar(emb *Embeddings, vocab *Vocabulary, word string, n int) ([]WordScore, error) {
	if emb.VocabSize() != vocab.Size() {
		return nil, fmt.Errorf("%w: embeddings cover %d words, vocabulary has %d", toolbox.ErrDimensionMismatch, emb.VocabSize(), vocab.Size())
	}
	target, ok := vocab.IndexOf(word)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in the vocabulary", toolbox.ErrInvalidConfiguration, word)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: n must be non-negative, got %d", toolbox.ErrInvalidConfiguration, n)
	}

	// Column i of in is word i's input vector.
	in := mat.NewDense(emb.VecSize(), emb.VocabSize(), toFloat64(emb.In.V))
	query := mat.Col(nil, target, in)
	queryNorm := floats.Norm(query, 2)

	var dots mat.VecDense
	dots.MulVec(in.T(), mat.NewVecDense(len(query), query))

	scores := make([]WordScore, 0, emb.VocabSize())
	column := make([]float64, emb.VecSize())
	for i := 0; i < emb.VocabSize(); i++ {
		w := vocab.Word(i)
		if i == target || w == StartToken || w == EndToken {
			continue
		}
		mat.Col(column, i, in)
		norm := queryNorm * floats.Norm(column, 2)
		score := 0.0
		if norm != 0 {
			score = dots.AtVec(i) / norm
		}
		scores = append(scores, WordScore{Word: w, Score: score})
	}
	return topN(scores, n), nil
}
