package word2vec

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/ahmedtd/brickml/toolbox"
	"gonum.org/v1/gonum/floats"
)

// Padding tokens added around a sentence so that every position has a full
// context window.  They are always part of a Vocabulary with a count of zero.
const (
	StartToken = "<s>"
	EndToken   = "</s>"
)

// DefaultPower is the exponent applied to unigram counts for negative
// sampling (Mikolov et al. 2013).
const DefaultPower = 0.75

// Vocabulary maps words to dense indices and holds their unigram counts and
// the smoothed distribution negative samples are drawn from.  It is not
// modified after construction.
type Vocabulary struct {
	words  []string
	index  map[string]int
	counts []int

	power      float64
	dist       []float64
	cumulative []float64
}

// BuildVocabulary indexes every word of the corpus in first-occurrence order,
// after StartToken and EndToken.
func BuildVocabulary(sentences [][]string, power float64) (*Vocabulary, error) {
	words := []string{StartToken, EndToken}
	counts := []int{0, 0}
	index := map[string]int{StartToken: 0, EndToken: 1}

	for _, sentence := range sentences {
		for _, w := range sentence {
			i, ok := index[w]
			if !ok {
				i = len(words)
				index[w] = i
				words = append(words, w)
				counts = append(counts, 0)
			}
			counts[i]++
		}
	}

	return NewVocabulary(words, counts, power)
}

// NewVocabulary builds a vocabulary from parallel word and count slices.
// Words must be unique.
func NewVocabulary(words []string, counts []int, power float64) (*Vocabulary, error) {
	if len(words) != len(counts) {
		return nil, fmt.Errorf("%w: %d words but %d counts", toolbox.ErrDimensionMismatch, len(words), len(counts))
	}

	index := make(map[string]int, len(words))
	c := make([]float64, len(counts))
	for i, w := range words {
		if _, dup := index[w]; dup {
			return nil, fmt.Errorf("%w: duplicate word %q", toolbox.ErrInvalidConfiguration, w)
		}
		index[w] = i
		c[i] = float64(counts[i])
	}

	dist, err := SamplingDistribution(c, power)
	if err != nil {
		return nil, err
	}

	return &Vocabulary{
		words:      append([]string(nil), words...),
		index:      index,
		counts:     append([]int(nil), counts...),
		power:      power,
		dist:       dist,
		cumulative: floats.CumSum(make([]float64, len(dist)), dist),
	}, nil
}

// SamplingDistribution raises each count to power and normalizes the result
// to sum to 1.  power=1 gives the unigram distribution and power=0 the
// uniform distribution.
func SamplingDistribution(counts []float64, power float64) ([]float64, error) {
	if power < 0 || math.IsNaN(power) {
		return nil, fmt.Errorf("%w: sampling power must be >= 0, got %v", toolbox.ErrInvalidConfiguration, power)
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("%w: no counts", toolbox.ErrInvalidConfiguration)
	}

	p := make([]float64, len(counts))
	for i, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("%w: negative count %v at %d", toolbox.ErrInvalidConfiguration, c, i)
		}
		p[i] = math.Pow(c, power)
	}

	total := floats.Sum(p)
	if total <= 0 || math.IsInf(total, 0) {
		return nil, fmt.Errorf("%w: counts give no sampling mass", toolbox.ErrInvalidConfiguration)
	}
	floats.Scale(1/total, p)
	return p, nil
}

func (v *Vocabulary) Size() int {
	return len(v.words)
}

func (v *Vocabulary) Word(i int) string {
	return v.words[i]
}

func (v *Vocabulary) IndexOf(word string) (int, bool) {
	i, ok := v.index[word]
	return i, ok
}

// CountOf returns the unigram count of word, or 0 for unknown words.
func (v *Vocabulary) CountOf(word string) int {
	i, ok := v.index[word]
	if !ok {
		return 0
	}
	return v.counts[i]
}

// SamplingProbability returns the probability of drawing word as a negative
// sample, or 0 for unknown words.
func (v *Vocabulary) SamplingProbability(word string) float64 {
	i, ok := v.index[word]
	if !ok {
		return 0
	}
	return v.dist[i]
}

// Distribution returns a copy of the sampling distribution in index order.
func (v *Vocabulary) Distribution() []float64 {
	return append([]float64(nil), v.dist...)
}

func (v *Vocabulary) Power() float64 {
	return v.power
}

// maxRejections bounds the fast path of SampleNegative before it falls back
// to renormalizing over the remaining candidates.
const maxRejections = 64

// SampleNegative draws k distinct indices without replacement, proportional to
// the sampling distribution, never returning an index in exclude.
func (v *Vocabulary) SampleNegative(r *rand.Rand, k int, exclude ...int) ([]int, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: cannot draw %d samples", toolbox.ErrInvalidConfiguration, k)
	}

	taken := make(map[int]bool, k+len(exclude))
	for _, e := range exclude {
		taken[e] = true
	}

	available := 0
	for i, p := range v.dist {
		if p > 0 && !taken[i] {
			available++
		}
	}
	if available < k {
		return nil, fmt.Errorf("%w: only %d words can be drawn as negatives, want %d", toolbox.ErrInvalidConfiguration, available, k)
	}

	out := make([]int, 0, k)
	for len(out) < k {
		i, ok := v.sampleRejecting(r, taken)
		if !ok {
			i = v.sampleRenormalized(r, taken)
		}
		taken[i] = true
		out = append(out, i)
	}
	return out, nil
}

// sampleRejecting draws from the full distribution by binary search on the
// cumulative sums, retrying when it lands on a taken index.
func (v *Vocabulary) sampleRejecting(r *rand.Rand, taken map[int]bool) (int, bool) {
	total := v.cumulative[len(v.cumulative)-1]
	for try := 0; try < maxRejections; try++ {
		u := r.Float64() * total
		i := sort.SearchFloat64s(v.cumulative, u)
		// SearchFloat64s returns the first i with cumulative[i] >= u; step
		// past zero-probability entries that share the same cumulative value.
		for i < len(v.dist)-1 && v.dist[i] == 0 {
			i++
		}
		if i >= len(v.dist) || v.dist[i] == 0 || taken[i] {
			continue
		}
		return i, true
	}
	return 0, false
}

// sampleRenormalized is the exact O(|vocab|) fallback for when most of the
// probability mass is taken.
func (v *Vocabulary) sampleRenormalized(r *rand.Rand, taken map[int]bool) int {
	var total float64
	last := -1
	for i, p := range v.dist {
		if p > 0 && !taken[i] {
			total += p
			last = i
		}
	}
	u := r.Float64() * total
	for i, p := range v.dist {
		if p <= 0 || taken[i] {
			continue
		}
		if u < p {
			return i
		}
		u -= p
	}
	return last
}
