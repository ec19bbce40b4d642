package word2vec

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ahmedtd/brickml/toolbox"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func fixedCBOW(t *testing.T, cfg TrainerConfig) *CBOW {
	t.Helper()
	vocab, err := NewVocabulary([]string{"a", "b", "c"}, []int{1, 1, 1}, DefaultPower)
	require.NoError(t, err)
	m, err := NewCBOW(fixedEmbeddings(t), vocab, cfg)
	require.NoError(t, err)
	return m
}

func TestCBOWHiddenIsContextMean(t *testing.T) {
	m := fixedCBOW(t, DefaultTrainerConfig())

	hidden, err := m.Hidden([]int{0, 2})
	require.NoError(t, err)
	if diff := cmp.Diff(hidden, []float32{3, 4}); diff != "" {
		t.Errorf("Bad hidden; diff (-got +want)\n%s", diff)
	}

	_, err = m.Hidden(nil)
	require.ErrorIs(t, err, toolbox.ErrDimensionMismatch)
	_, err = m.Hidden([]int{3})
	require.ErrorIs(t, err, toolbox.ErrDimensionMismatch)
}

func TestCBOWForward(t *testing.T) {
	m := fixedCBOW(t, DefaultTrainerConfig())

	fwd, err := m.Forward([]int{0, 2})
	require.NoError(t, err)

	if diff := cmp.Diff(fwd.Z, []float32{3, 4, -4}); diff != "" {
		t.Errorf("Bad z; diff (-got +want)\n%s", diff)
	}

	want := softmax64([]float64{3, 4, -4})
	if diff := cmp.Diff(toFloat64(fwd.Hypothesis), want, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("Bad hypothesis; diff (-got +want)\n%s", diff)
	}
	require.InDelta(t, -math.Log(want[1]), float64(Cost(fwd.Hypothesis, 1)), 1e-5)
}

func TestCBOWBackward(t *testing.T) {
	testCases := []struct {
		desc    string
		context []int
	}{
		{desc: "distinct context", context: []int{0, 2}},
		{desc: "repeated context word is updated per occurrence", context: []int{0, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := DefaultTrainerConfig()
			cfg.LearningRate = 0.1
			m := fixedCBOW(t, cfg)
			const correct = 1
			alpha := float64(cfg.LearningRate)

			inBefore := toolbox.AF32Copy(m.Embeddings.In)
			outBefore := toolbox.AF32Copy(m.Embeddings.Out)

			fwd, err := m.Forward(tc.context)
			require.NoError(t, err)
			require.NoError(t, m.Backward(fwd, tc.context, correct))

			h := toFloat64(fwd.Hidden)
			g := toFloat64(fwd.Hypothesis)
			g[correct] -= 1

			wantOut := toFloat64(outBefore.V)
			gh := make([]float64, 2)
			for i := 0; i < 3; i++ {
				for d := 0; d < 2; d++ {
					gh[d] += float64(outBefore.At2(i, d)) * g[i]
					wantOut[i*2+d] -= alpha * g[i] * h[d]
				}
			}

			wantIn := toFloat64(inBefore.V)
			for _, c := range tc.context {
				for d := 0; d < 2; d++ {
					wantIn[d*3+c] -= alpha / float64(len(tc.context)) * gh[d]
				}
			}

			if diff := cmp.Diff(toFloat64(m.Embeddings.Out.V), wantOut, cmpopts.EquateApprox(0, 1e-5)); diff != "" {
				t.Errorf("Bad output table; diff (-got +want)\n%s", diff)
			}
			if diff := cmp.Diff(toFloat64(m.Embeddings.In.V), wantIn, cmpopts.EquateApprox(0, 1e-5)); diff != "" {
				t.Errorf("Bad input table; diff (-got +want)\n%s", diff)
			}
		})
	}
}

func TestCBOWStepReducesCost(t *testing.T) {
	cfg := DefaultTrainerConfig()
	cfg.LearningRate = 0.01
	m := fixedCBOW(t, cfg)

	context := []int{0, 2}
	before, err := m.Step(context, 1)
	require.NoError(t, err)

	fwd, err := m.Forward(context)
	require.NoError(t, err)
	require.Less(t, Cost(fwd.Hypothesis, 1), before)
}

func TestCBOWTrainReducesCost(t *testing.T) {
	for _, objective := range []Objective{FullSoftmax, NegativeSampling} {
		t.Run(objective.String(), func(t *testing.T) {
			sentences := tinyCorpus()
			vocab, err := BuildVocabulary(sentences, DefaultPower)
			require.NoError(t, err)
			emb, err := MakeEmbeddings(vocab.Size(), 10, -0.5, 0.5, rand.New(rand.NewSource(12345)))
			require.NoError(t, err)

			cfg := DefaultTrainerConfig()
			cfg.Objective = objective
			cfg.NegativeSamples = 2
			cfg.LearningRate = 0.1
			cfg.Exhaustive = true
			cfg.Iterations = 200
			cfg.Rand = rand.New(rand.NewSource(12345))

			m, err := NewCBOW(emb, vocab, cfg)
			require.NoError(t, err)

			trace, err := m.Train(sentences)
			require.NoError(t, err)
			require.Len(t, trace, cfg.Iterations*len(sentences))

			first, last := meanOf(trace[:10]), meanOf(trace[len(trace)-10:])
			require.Less(t, last, 0.75*first, "cost did not fall: first %v last %v", first, last)
		})
	}
}

func TestCBOWSampledTraceLength(t *testing.T) {
	sentences := tinyCorpus()
	vocab, err := BuildVocabulary(sentences, DefaultPower)
	require.NoError(t, err)
	emb, err := MakeEmbeddings(vocab.Size(), 4, -0.5, 0.5, rand.New(rand.NewSource(12345)))
	require.NoError(t, err)

	cfg := DefaultTrainerConfig()
	cfg.Iterations = 37
	m, err := NewCBOW(emb, vocab, cfg)
	require.NoError(t, err)

	trace, err := m.Train(sentences)
	require.NoError(t, err)
	require.Len(t, trace, 37)
	for _, c := range trace {
		require.GreaterOrEqual(t, c, float32(0))
	}
}

func TestNewCBOWRejectsMismatchedVocabulary(t *testing.T) {
	vocab, err := NewVocabulary([]string{"a", "b"}, []int{1, 1}, DefaultPower)
	require.NoError(t, err)
	_, err = NewCBOW(fixedEmbeddings(t), vocab, DefaultTrainerConfig())
	require.ErrorIs(t, err, toolbox.ErrDimensionMismatch)
}

func tinyCorpus() [][]string {
	return Tokenize("the cat sat on the mat. the dog ate the bone.")
}

func meanOf(v []float32) float32 {
	var total float32
	for _, x := range v {
		total += x
	}
	return total / float32(len(v))
}

func softmax64(z []float64) []float64 {
	maxZ := math.Inf(-1)
	for _, v := range z {
		maxZ = math.Max(maxZ, v)
	}
	out := make([]float64, len(z))
	var total float64
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
		total += out[i]
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

func TestCBOWHiddenWithIdentityTable(t *testing.T) {
	in := &toolbox.AF32{V: []float32{1, 0, 0, 1}, Shape: []int{2, 2}}
	out := toolbox.MakeAF32(2, 2)
	emb, err := MakeEmbeddingsFromValues(in, out)
	require.NoError(t, err)
	vocab, err := NewVocabulary([]string{"x", "y"}, []int{1, 1}, DefaultPower)
	require.NoError(t, err)
	m, err := NewCBOW(emb, vocab, DefaultTrainerConfig())
	require.NoError(t, err)

	hidden, err := m.Hidden([]int{0, 1})
	require.NoError(t, err)
	if diff := cmp.Diff(hidden, []float32{0.5, 0.5}); diff != "" {
		t.Errorf("Bad hidden; diff (-got +want)\n%s", diff)
	}
}

func TestCBOWBackwardRejectsBadIndicesWithoutUpdating(t *testing.T) {
	vocab, err := BuildVocabulary([][]string{{"a", "b", "c"}}, DefaultPower)
	require.NoError(t, err)
	emb, err := MakeEmbeddings(vocab.Size(), 3, -1, 1, rand.New(rand.NewSource(12345)))
	require.NoError(t, err)
	m, err := NewCBOW(emb, vocab, DefaultTrainerConfig())
	require.NoError(t, err)

	fwd, err := m.Forward([]int{2, 3})
	require.NoError(t, err)

	inBefore := toolbox.AF32Copy(m.Embeddings.In)
	outBefore := toolbox.AF32Copy(m.Embeddings.Out)

	testCases := []struct {
		desc    string
		fwd     *CBOWForward
		context []int
		correct int
	}{
		{desc: "context index past the vocabulary", fwd: fwd, context: []int{2, 5}, correct: 0},
		{desc: "negative context index", fwd: fwd, context: []int{-1}, correct: 0},
		{desc: "empty context", fwd: fwd, context: nil, correct: 0},
		{desc: "correct index past the vocabulary", fwd: fwd, context: []int{2, 3}, correct: 5},
		{
			desc:    "forward pass from another model",
			fwd:     &CBOWForward{Hidden: fwd.Hidden, Z: fwd.Z[:2], Hypothesis: fwd.Hypothesis[:2]},
			context: []int{2, 3},
			correct: 0,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := m.Backward(tc.fwd, tc.context, tc.correct)
			require.ErrorIs(t, err, toolbox.ErrDimensionMismatch)
			require.Equal(t, inBefore, m.Embeddings.In)
			require.Equal(t, outBefore, m.Embeddings.Out)
		})
	}
}
