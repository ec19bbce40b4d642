package word2vec

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/ahmedtd/brickml/toolbox"
)

// Objective selects how the output side of a model is trained.
type Objective int

const (
	// FullSoftmax normalizes over the whole vocabulary on every step.
	FullSoftmax Objective = iota
	// NegativeSampling scores the true output word against a few words drawn
	// from the vocabulary's sampling distribution.
	NegativeSampling
)

func (o Objective) String() string {
	switch o {
	case FullSoftmax:
		return "softmax"
	case NegativeSampling:
		return "negative"
	default:
		return fmt.Sprintf("Objective(%d)", int(o))
	}
}

func ParseObjective(s string) (Objective, error) {
	switch s {
	case "softmax":
		return FullSoftmax, nil
	case "negative", "ns":
		return NegativeSampling, nil
	default:
		return 0, fmt.Errorf("%w: unknown objective %q", toolbox.ErrInvalidConfiguration, s)
	}
}

// SkippedCost is recorded in a cost trace for an iteration that had nothing to
// train on, such as an empty sentence.  Real costs are never negative.
const SkippedCost = float32(-1)

type TrainerConfig struct {
	Window       Window
	LearningRate float32
	Objective    Objective

	// NegativeSamples is k, the number of negatives drawn per positive pair
	// when Objective is NegativeSampling.
	NegativeSamples int

	// Iterations is the number of sampled sentences, or the number of passes
	// over the corpus when Exhaustive is set.
	Iterations int

	// Exhaustive visits every sentence in order and every position in it,
	// instead of sampling one sentence (with replacement) and one center word
	// per iteration.
	Exhaustive bool

	// Rand drives sentence, center and negative sampling.
	Rand *rand.Rand

	// Logger, if set, receives the mean cost every LogEvery iterations.
	Logger   *log.Logger
	LogEvery int
}

func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Window:          Window{Left: 2, Right: 2},
		LearningRate:    0.05,
		Objective:       FullSoftmax,
		NegativeSamples: 5,
		Iterations:      1000,
		Rand:            rand.New(rand.NewSource(1)),
		LogEvery:        1000,
	}
}

func (c *TrainerConfig) Validate() error {
	if err := c.Window.Validate(); err != nil {
		return err
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("%w: learning rate must be positive, got %v", toolbox.ErrInvalidConfiguration, c.LearningRate)
	}
	if c.Iterations < 0 {
		return fmt.Errorf("%w: iterations must be non-negative, got %d", toolbox.ErrInvalidConfiguration, c.Iterations)
	}
	switch c.Objective {
	case FullSoftmax:
	case NegativeSampling:
		if c.NegativeSamples < 1 {
			return fmt.Errorf("%w: negative sampling needs at least one negative, got %d", toolbox.ErrInvalidConfiguration, c.NegativeSamples)
		}
	default:
		return fmt.Errorf("%w: unknown objective %v", toolbox.ErrInvalidConfiguration, c.Objective)
	}
	if c.Rand == nil {
		return fmt.Errorf("%w: no random source", toolbox.ErrInvalidConfiguration)
	}
	return nil
}
