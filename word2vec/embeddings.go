package word2vec

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/ahmedtd/brickml/toolbox"
)

// Orientation selects how a word vector matrix is laid out.
type Orientation int

const (
	// Columns stores one word vector per column: shape (vecSize, vocabSize).
	Columns Orientation = iota
	// Rows stores one word vector per row: shape (vocabSize, vecSize).
	Rows
)

func (o Orientation) String() string {
	switch o {
	case Columns:
		return "cols"
	case Rows:
		return "rows"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "cols", "columns":
		return Columns, nil
	case "rows":
		return Rows, nil
	default:
		return 0, fmt.Errorf("%w: unknown orientation %q, want \"cols\" or \"rows\"", toolbox.ErrInvalidConfiguration, s)
	}
}

// WordVectorMatrix returns a matrix of word vectors drawn uniformly from
// [lo, hi), laid out according to o.
func WordVectorMatrix(vocabSize, vecSize int, o Orientation, lo, hi float32, r *rand.Rand) (*toolbox.AF32, error) {
	if vocabSize <= 0 || vecSize <= 0 {
		return nil, fmt.Errorf("%w: vocabulary size %d and vector size %d must be positive", toolbox.ErrInvalidConfiguration, vocabSize, vecSize)
	}
	switch o {
	case Columns:
		return toolbox.MakeUniformAF32(r, lo, hi, vecSize, vocabSize), nil
	case Rows:
		return toolbox.MakeUniformAF32(r, lo, hi, vocabSize, vecSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown orientation %v", toolbox.ErrInvalidConfiguration, o)
	}
}

// Embeddings are the two parameter tables of a word2vec model.
//
// Embeddings are mutated in place by training and have a single writer: do not
// train two models sharing one Embeddings concurrently, or read it while a
// trainer is running.
type Embeddings struct {
	In  *toolbox.AF32 // Shape (VecSize, VocabSize); column i is word i's input vector
	Out *toolbox.AF32 // Shape (VocabSize, VecSize); row i is word i's output vector
}

// MakeEmbeddings draws both tables uniformly from [lo, hi).
func MakeEmbeddings(vocabSize, vecSize int, lo, hi float32, r *rand.Rand) (*Embeddings, error) {
	in, err := WordVectorMatrix(vocabSize, vecSize, Columns, lo, hi, r)
	if err != nil {
		return nil, err
	}
	out, err := WordVectorMatrix(vocabSize, vecSize, Rows, lo, hi, r)
	if err != nil {
		return nil, err
	}
	return &Embeddings{In: in, Out: out}, nil
}

// MakeEmbeddingsFromValues wraps pre-baked tables without copying them.
func MakeEmbeddingsFromValues(in, out *toolbox.AF32) (*Embeddings, error) {
	if len(in.Shape) != 2 || len(out.Shape) != 2 {
		return nil, fmt.Errorf("%w: embedding tables must be 2-D, got %v and %v", toolbox.ErrDimensionMismatch, in.Shape, out.Shape)
	}
	if !slices.Equal(in.Shape, []int{out.Shape[1], out.Shape[0]}) {
		return nil, fmt.Errorf("%w: input table %v is not the transpose shape of output table %v", toolbox.ErrDimensionMismatch, in.Shape, out.Shape)
	}
	if len(in.V) != in.Shape[0]*in.Shape[1] || len(out.V) != out.Shape[0]*out.Shape[1] {
		return nil, fmt.Errorf("%w: embedding storage does not match shape", toolbox.ErrDimensionMismatch)
	}
	return &Embeddings{In: in, Out: out}, nil
}

func (e *Embeddings) VocabSize() int {
	return e.Out.Shape[0]
}

func (e *Embeddings) VecSize() int {
	return e.Out.Shape[1]
}

// InputVector returns a copy of word i's input vector.
func (e *Embeddings) InputVector(i int) []float32 {
	v := make([]float32, e.VecSize())
	e.In.Col(i, v)
	return v
}

// OutputVector returns word i's output vector.  The slice aliases e.Out.
func (e *Embeddings) OutputVector(i int) []float32 {
	return e.Out.Row(i)
}

func (e *Embeddings) checkIndex(i int) error {
	if i < 0 || i >= e.VocabSize() {
		return fmt.Errorf("%w: word index %d outside vocabulary of %d", toolbox.ErrDimensionMismatch, i, e.VocabSize())
	}
	return nil
}

// checkForward rejects a forward pass that was not computed against these
// tables.
func (e *Embeddings) checkForward(hidden, probabilities []float32) error {
	if len(hidden) != e.VecSize() || len(probabilities) != e.VocabSize() {
		return fmt.Errorf("%w: forward pass has %d hidden and %d output values, want %d and %d", toolbox.ErrDimensionMismatch, len(hidden), len(probabilities), e.VecSize(), e.VocabSize())
	}
	return nil
}
