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

func TestBuildVocabulary(t *testing.T) {
	vocab, err := BuildVocabulary([][]string{{"a", "b", "a"}, {"c"}}, DefaultPower)
	require.NoError(t, err)

	want := []string{StartToken, EndToken, "a", "b", "c"}
	var got []string
	for i := 0; i < vocab.Size(); i++ {
		got = append(got, vocab.Word(i))
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Bad words; diff (-got +want)\n%s", diff)
	}

	require.Equal(t, 2, vocab.CountOf("a"))
	require.Equal(t, 0, vocab.CountOf(StartToken))
	require.Equal(t, 0, vocab.CountOf("zebra"))
	require.Zero(t, vocab.SamplingProbability(EndToken))

	i, ok := vocab.IndexOf("b")
	require.True(t, ok)
	require.Equal(t, 3, i)
	_, ok = vocab.IndexOf("zebra")
	require.False(t, ok)
}

func TestSamplingDistribution(t *testing.T) {
	counts := []float64{1, 2, 3, 4}

	testCases := []struct {
		desc  string
		power float64
		want  []float64
	}{
		{
			desc:  "power 0 is uniform",
			power: 0,
			want:  []float64{0.25, 0.25, 0.25, 0.25},
		},
		{
			desc:  "power 1 is unigram",
			power: 1,
			want:  []float64{0.1, 0.2, 0.3, 0.4},
		},
		{
			desc:  "power 0.5",
			power: 0.5,
			want: func() []float64 {
				total := 1 + math.Sqrt(2) + math.Sqrt(3) + 2
				return []float64{1 / total, math.Sqrt(2) / total, math.Sqrt(3) / total, 2 / total}
			}(),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := SamplingDistribution(counts, tc.power)
			require.NoError(t, err)
			if diff := cmp.Diff(got, tc.want, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("Bad distribution; diff (-got +want)\n%s", diff)
			}
		})
	}
}

func TestSamplingDistributionSumsToOne(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	counts := make([]float64, 50)
	for i := range counts {
		counts[i] = float64(r.Intn(1000))
	}
	counts[0] = 1

	for _, power := range []float64{0, 0.25, DefaultPower, 1, 2} {
		dist, err := SamplingDistribution(counts, power)
		require.NoError(t, err)
		var total float64
		for _, p := range dist {
			require.GreaterOrEqual(t, p, 0.0)
			total += p
		}
		require.InDelta(t, 1, total, 1e-9, "power %v", power)
	}
}

func TestSamplingDistributionErrors(t *testing.T) {
	_, err := SamplingDistribution([]float64{1, 2}, -0.5)
	require.ErrorIs(t, err, toolbox.ErrInvalidConfiguration)

	_, err = SamplingDistribution([]float64{0, 0}, 1)
	require.ErrorIs(t, err, toolbox.ErrInvalidConfiguration)

	_, err = SamplingDistribution(nil, 1)
	require.ErrorIs(t, err, toolbox.ErrInvalidConfiguration)

	_, err = NewVocabulary([]string{"a", "a"}, []int{1, 1}, 1)
	require.ErrorIs(t, err, toolbox.ErrInvalidConfiguration)
}

func TestSampleNegativeDistinctAndExcluded(t *testing.T) {
	vocab, err := BuildVocabulary([][]string{{"a", "b", "c", "d"}}, DefaultPower)
	require.NoError(t, err)
	a, _ := vocab.IndexOf("a")

	r := rand.New(rand.NewSource(12345))
	for trial := 0; trial < 100; trial++ {
		got, err := vocab.SampleNegative(r, 3, a)
		require.NoError(t, err)
		require.Len(t, got, 3)

		seen := map[int]bool{}
		for _, i := range got {
			require.NotEqual(t, a, i)
			require.NotEqual(t, StartToken, vocab.Word(i))
			require.NotEqual(t, EndToken, vocab.Word(i))
			require.False(t, seen[i], "index %d drawn twice", i)
			seen[i] = true
		}
	}
}

func TestSampleNegativeNotEnoughCandidates(t *testing.T) {
	vocab, err := BuildVocabulary([][]string{{"a", "b", "c", "d"}}, DefaultPower)
	require.NoError(t, err)
	a, _ := vocab.IndexOf("a")

	_, err = vocab.SampleNegative(rand.New(rand.NewSource(1)), 4, a)
	require.ErrorIs(t, err, toolbox.ErrInvalidConfiguration)
}

func TestSampleNegativeFollowsDistribution(t *testing.T) {
	vocab, err := NewVocabulary([]string{"x", "y"}, []int{1, 3}, 1)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(12345))
	const draws = 20000
	ys := 0
	for i := 0; i < draws; i++ {
		got, err := vocab.SampleNegative(r, 1)
		require.NoError(t, err)
		if got[0] == 1 {
			ys++
		}
	}
	require.InDelta(t, 0.75, float64(ys)/draws, 0.02)
}
