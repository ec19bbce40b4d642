package word2vec

import (
	"fmt"

	"github.com/ahmedtd/brickml/toolbox"
	"github.com/chewxy/math32"
)

// exampleFunc trains on the center word at padded[center].  ok is false when
// there was nothing to train on.
type exampleFunc func(padded []string, center int) (cost float32, ok bool, err error)

// train runs the sentence sampling loop shared by CBOW and skip-gram and
// returns one cost per sentence visited.
func train(sentences [][]string, cfg *TrainerConfig, step exampleFunc) ([]float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(sentences) == 0 {
		return nil, fmt.Errorf("%w: empty corpus", toolbox.ErrInvalidConfiguration)
	}

	var trace []float32
	var sinceLog float32
	var sinceLogCount int

	visit := func(sentence []string) error {
		cost, err := trainSentence(sentence, cfg, step)
		if err != nil {
			return err
		}
		trace = append(trace, cost)

		if cost != SkippedCost {
			sinceLog += cost
			sinceLogCount++
		}
		if cfg.Logger != nil && cfg.LogEvery > 0 && len(trace)%cfg.LogEvery == 0 {
			mean := float32(0)
			if sinceLogCount > 0 {
				mean = sinceLog / float32(sinceLogCount)
			}
			cfg.Logger.Printf("iteration=%d mean-cost=%v skipped=%d", len(trace), mean, cfg.LogEvery-sinceLogCount)
			sinceLog, sinceLogCount = 0, 0
		}
		return nil
	}

	if cfg.Exhaustive {
		for pass := 0; pass < cfg.Iterations; pass++ {
			for _, sentence := range sentences {
				if err := visit(sentence); err != nil {
					return trace, err
				}
			}
		}
		return trace, nil
	}

	for it := 0; it < cfg.Iterations; it++ {
		sentence := sentences[cfg.Rand.Intn(len(sentences))]
		if err := visit(sentence); err != nil {
			return trace, err
		}
	}
	return trace, nil
}

func trainSentence(sentence []string, cfg *TrainerConfig, step exampleFunc) (float32, error) {
	if len(sentence) == 0 {
		return SkippedCost, nil
	}
	padded := cfg.Window.Pad(sentence)

	centers := []int{cfg.Window.Left + cfg.Rand.Intn(len(sentence))}
	if cfg.Exhaustive {
		centers = centers[:0]
		for i := range sentence {
			centers = append(centers, cfg.Window.Left+i)
		}
	}

	var total float32
	n := 0
	for _, c := range centers {
		cost, ok, err := step(padded, c)
		if err != nil {
			return 0, fmt.Errorf("while training on %q: %w", padded[c], err)
		}
		if !ok {
			continue
		}
		if math32.IsNaN(cost) || math32.IsInf(cost, 0) {
			return 0, fmt.Errorf("%w: cost %v while training on %q", toolbox.ErrNumericalInstability, cost, padded[c])
		}
		total += cost
		n++
	}
	if n == 0 {
		return SkippedCost, nil
	}
	return total / float32(n), nil
}

// indicesOf maps words to vocabulary indices, dropping unknown words.
func indicesOf(vocab *Vocabulary, words []string) []int {
	out := make([]int, 0, len(words))
	for _, w := range words {
		if i, ok := vocab.IndexOf(w); ok {
			out = append(out, i)
		}
	}
	return out
}

// Cost is -log(hypothesis[correct]).
func Cost(hypothesis []float32, correct int) float32 {
	return -math32.Log(hypothesis[correct])
}

// LogitCost is -log(softmax(z)[correct]) computed as logsumexp(z) - z[correct].
// It stays finite when softmax(z)[correct] underflows to zero.
func LogitCost(z []float32, correct int) float32 {
	maxZ := math32.Inf(-1)
	for _, v := range z {
		maxZ = math32.Max(maxZ, v)
	}
	var total float32
	for _, v := range z {
		total += math32.Exp(v - maxZ)
	}
	return maxZ + math32.Log(total) - z[correct]
}
