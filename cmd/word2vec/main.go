// Command word2vec trains CBOW and skip-gram word embeddings on a plain text
// corpus and queries the trained vectors.
//
// To train: `go run ./cmd/word2vec train --corpus=corpus.txt --model=skipgram --objective=negative --output=model.npz`
//
// To query: `go run ./cmd/word2vec similar --corpus=corpus.txt --model-file=model.npz --word=king`
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ahmedtd/brickml/word2vec"
	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&TrainCommand{}, "")
	subcommands.Register(&SimilarCommand{}, "")
	subcommands.Register(&PredictCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

// loadCorpus reads the corpus and builds its vocabulary.  Query commands
// rebuild the vocabulary the same way, so the corpus must be the one the
// model was trained on.
func loadCorpus(path string, power float64) ([][]string, *word2vec.Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("while opening corpus: %w", err)
	}
	defer f.Close()

	sentences, err := word2vec.ReadSentences(f)
	if err != nil {
		return nil, nil, err
	}
	if len(sentences) == 0 {
		return nil, nil, fmt.Errorf("corpus %s has no sentences", path)
	}

	vocab, err := word2vec.BuildVocabulary(sentences, power)
	if err != nil {
		return nil, nil, fmt.Errorf("while building vocabulary: %w", err)
	}
	return sentences, vocab, nil
}

// loadModel loads embeddings and checks that they cover vocab.
func loadModel(path string, vocab *word2vec.Vocabulary) (*word2vec.Embeddings, error) {
	emb, err := word2vec.LoadNPZ(path)
	if err != nil {
		return nil, err
	}
	if emb.VocabSize() != vocab.Size() {
		return nil, fmt.Errorf("model covers %d words but the corpus has %d; was it trained on a different corpus?", emb.VocabSize(), vocab.Size())
	}
	return emb, nil
}

func printScores(scores []word2vec.WordScore) {
	for _, s := range scores {
		fmt.Printf("%-20s %.4f\n", s.Word, s.Score)
	}
}

type TrainCommand struct {
	corpusFile string
	outputFile string

	model      string
	objective  string
	window     string
	vecSize    int
	iterations int
	exhaustive bool
	alpha      float64
	negatives  int
	power      float64
	initLow    float64
	initHigh   float64
	seed       int64
	logEvery   int
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Train word embeddings"
}

func (*TrainCommand) Usage() string {
	return ``
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.corpusFile, "corpus", "corpus.txt", "Path to the plain text corpus")
	f.StringVar(&c.outputFile, "output", "model.npz", "Path to save the trained embeddings (npz format)")

	f.StringVar(&c.model, "model", "cbow", "Model to train: cbow or skipgram")
	f.StringVar(&c.objective, "objective", "softmax", "Output objective: softmax or negative")
	f.StringVar(&c.window, "window", "2", "Context window, either N or LEFT,RIGHT")
	f.IntVar(&c.vecSize, "vec-size", 20, "Dimension of the word vectors")
	f.IntVar(&c.iterations, "iterations", 10000, "Sampled sentences, or passes over the corpus with --exhaustive")
	f.BoolVar(&c.exhaustive, "exhaustive", false, "Visit every position of every sentence instead of sampling")
	f.Float64Var(&c.alpha, "alpha", 0.05, "Learning rate")
	f.IntVar(&c.negatives, "negatives", 5, "Negative samples per positive pair")
	f.Float64Var(&c.power, "power", word2vec.DefaultPower, "Exponent applied to unigram counts for negative sampling")
	f.Float64Var(&c.initLow, "init-low", 0, "Lower bound of the uniform initial word vectors")
	f.Float64Var(&c.initHigh, "init-high", 1, "Upper bound of the uniform initial word vectors")
	f.Int64Var(&c.seed, "seed", 1, "Random seed")
	f.IntVar(&c.logEvery, "log-every", 1000, "Log the mean cost every N iterations")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) config() (word2vec.TrainerConfig, error) {
	cfg := word2vec.DefaultTrainerConfig()

	window, err := word2vec.ParseWindow(c.window)
	if err != nil {
		return cfg, err
	}
	objective, err := word2vec.ParseObjective(c.objective)
	if err != nil {
		return cfg, err
	}

	cfg.Window = window
	cfg.Objective = objective
	cfg.LearningRate = float32(c.alpha)
	cfg.NegativeSamples = c.negatives
	cfg.Iterations = c.iterations
	cfg.Exhaustive = c.exhaustive
	cfg.Rand.Seed(c.seed)
	cfg.Logger = log.Default()
	cfg.LogEvery = c.logEvery
	return cfg, cfg.Validate()
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	cfg, err := c.config()
	if err != nil {
		return fmt.Errorf("while parsing flags: %w", err)
	}

	sentences, vocab, err := loadCorpus(c.corpusFile, c.power)
	if err != nil {
		return err
	}
	log.Printf("Corpus loaded: %d sentences, %d words in vocabulary", len(sentences), vocab.Size())

	emb, err := word2vec.MakeEmbeddings(vocab.Size(), c.vecSize, float32(c.initLow), float32(c.initHigh), cfg.Rand)
	if err != nil {
		return fmt.Errorf("while initializing embeddings: %w", err)
	}

	var trace []float32
	switch c.model {
	case "cbow":
		m, err := word2vec.NewCBOW(emb, vocab, cfg)
		if err != nil {
			return err
		}
		trace, err = m.Train(sentences)
		if err != nil {
			return fmt.Errorf("while training: %w", err)
		}
	case "skipgram":
		m, err := word2vec.NewSkipGram(emb, vocab, cfg)
		if err != nil {
			return err
		}
		trace, err = m.Train(sentences)
		if err != nil {
			return fmt.Errorf("while training: %w", err)
		}
	default:
		return fmt.Errorf("unknown model %q, want cbow or skipgram", c.model)
	}

	skipped := 0
	for _, cost := range trace {
		if cost == word2vec.SkippedCost {
			skipped++
		}
	}
	log.Printf("Training done: %d iterations, %d skipped", len(trace), skipped)

	if err := emb.SaveNPZ(c.outputFile); err != nil {
		return fmt.Errorf("while saving model: %w", err)
	}
	log.Printf("Model written to %s", c.outputFile)
	return nil
}

type SimilarCommand struct {
	corpusFile string
	modelFile  string
	word       string
	n          int
}

var _ subcommands.Command = (*SimilarCommand)(nil)

func (*SimilarCommand) Name() string {
	return "similar"
}

func (*SimilarCommand) Synopsis() string {
	return "List the words closest to a word by cosine similarity"
}

func (*SimilarCommand) Usage() string {
	return ``
}

func (c *SimilarCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.corpusFile, "corpus", "corpus.txt", "Path to the corpus the model was trained on")
	f.StringVar(&c.modelFile, "model-file", "model.npz", "Path to the trained embeddings")
	f.StringVar(&c.word, "word", "", "Word to query")
	f.IntVar(&c.n, "n", 10, "Number of words to list")
}

func (c *SimilarCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *SimilarCommand) executeErr(ctx context.Context) error {
	_, vocab, err := loadCorpus(c.corpusFile, word2vec.DefaultPower)
	if err != nil {
		return err
	}
	emb, err := loadModel(c.modelFile, vocab)
	if err != nil {
		return err
	}

	scores, err := word2vec.Similar(emb, vocab, c.word, c.n)
	if err != nil {
		return err
	}
	printScores(scores)
	return nil
}

type PredictCommand struct {
	corpusFile string
	modelFile  string
	word       string
	n          int
}

var _ subcommands.Command = (*PredictCommand)(nil)

func (*PredictCommand) Name() string {
	return "predict"
}

func (*PredictCommand) Synopsis() string {
	return "List the most likely context words of a word under the skip-gram softmax"
}

func (*PredictCommand) Usage() string {
	return ``
}

func (c *PredictCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.corpusFile, "corpus", "corpus.txt", "Path to the corpus the model was trained on")
	f.StringVar(&c.modelFile, "model-file", "model.npz", "Path to the trained embeddings")
	f.StringVar(&c.word, "word", "", "Center word to query")
	f.IntVar(&c.n, "n", 10, "Number of words to list")
}

func (c *PredictCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *PredictCommand) executeErr(ctx context.Context) error {
	_, vocab, err := loadCorpus(c.corpusFile, word2vec.DefaultPower)
	if err != nil {
		return err
	}
	emb, err := loadModel(c.modelFile, vocab)
	if err != nil {
		return err
	}

	m, err := word2vec.NewSkipGram(emb, vocab, word2vec.DefaultTrainerConfig())
	if err != nil {
		return err
	}
	scores, err := m.MostLikelyOutputWords(c.word, c.n)
	if err != nil {
		return err
	}
	printScores(scores)
	return nil
}
