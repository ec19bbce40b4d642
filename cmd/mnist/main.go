// Command mnist implements training and inference on the MNIST dataset with a
// sigmoid hidden layer and a softmax classifier trained by per-example
// gradient descent.
//
// To train: `go run ./cmd/mnist train --data-file=cmd/mnist/data/mnist.npz`
//
// To infer: `go run ./cmd/mnist infer --weights=mnist-out.safetensors --image=cmd/mnist/data/five.png`
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime/pprof"

	"github.com/ahmedtd/brickml/toolbox"
	"github.com/chewxy/math32"
	"github.com/google/subcommands"
	"github.com/sbinet/npyio/npz"
)

const (
	imagePixels = 28 * 28
	numDigits   = 10
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&TrainCommand{}, "")
	subcommands.Register(&InferCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

type TrainCommand struct {
	dataFile string

	fromCheckpointFile string
	outputWeightFile   string

	hiddenSize   int
	epochs       int
	learningRate float64
	seed         int64

	cpuProfileFile string
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Train the model"
}

func (*TrainCommand) Usage() string {
	return ``
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dataFile, "data-file", "mnist.npz", "Path to the mnist.npz input file")
	f.StringVar(&c.fromCheckpointFile, "from-checkpoint", "", "Path to initial weights to load for training")
	f.StringVar(&c.outputWeightFile, "output-weight-file", "mnist-out.safetensors", "Path to save trained weights (safetensors format)")

	f.IntVar(&c.hiddenSize, "hidden-size", 64, "Width of the sigmoid hidden layer")
	f.IntVar(&c.epochs, "epochs", 5, "Passes over the training set")
	f.Float64Var(&c.learningRate, "learning-rate", 0.05, "Gradient descent step size")
	f.Int64Var(&c.seed, "seed", 12345, "Random seed for initialization and shuffling")

	f.StringVar(&c.cpuProfileFile, "cpu-profile", "", "Write a CPU profile")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	if c.cpuProfileFile != "" {
		f, err := os.Create(c.cpuProfileFile)
		if err != nil {
			return fmt.Errorf("while creating CPU profile file: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("while starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	xTrain, yTrain, xTest, yTest, err := loadMNIST(c.dataFile)
	if err != nil {
		return fmt.Errorf("while loading MNIST data set: %w", err)
	}
	log.Printf("Data loaded: %d training and %d testing examples", len(xTrain), len(xTest))

	r := rand.New(rand.NewSource(c.seed))

	net, err := makeNetwork(c.hiddenSize, r)
	if err != nil {
		return fmt.Errorf("while creating network: %w", err)
	}

	if c.fromCheckpointFile != "" {
		if err := loadWeights(c.fromCheckpointFile, net); err != nil {
			return fmt.Errorf("while loading initial checkpoint: %w", err)
		}
	}

	for epoch := 0; epoch < c.epochs; epoch++ {
		if _, err := net.GradientDescent(xTrain, yTrain, float32(c.learningRate), 1, r); err != nil {
			return fmt.Errorf("while training epoch %d: %w", epoch, err)
		}

		if err := c.writeCheckpoint(net); err != nil {
			return fmt.Errorf("while writing checkpoint: %w", err)
		}

		trainLoss, trainPercent, err := evaluate(net, xTrain, yTrain)
		if err != nil {
			return fmt.Errorf("while evaluating training set: %w", err)
		}
		testLoss, testPercent, err := evaluate(net, xTest, yTest)
		if err != nil {
			return fmt.Errorf("while evaluating testing set: %w", err)
		}

		log.Printf("epoch %d training-loss=%f training-pct=%.1f testing-loss=%f testing-pct=%.1f",
			epoch,
			trainLoss,
			trainPercent,
			testLoss,
			testPercent,
		)
	}

	return nil
}

// makeNetwork builds the classifier with weights drawn from ±1/sqrt(fan-in)
// so the sigmoid layer does not start out saturated.
func makeNetwork(hiddenSize int, r *rand.Rand) (*toolbox.Network, error) {
	if hiddenSize < 1 {
		return nil, fmt.Errorf("%w: hidden size must be positive, got %d", toolbox.ErrInvalidConfiguration, hiddenSize)
	}
	hiddenScale := 1 / math32.Sqrt(imagePixels)
	outputScale := 1 / math32.Sqrt(float32(hiddenSize))
	return toolbox.MakeNetwork(
		toolbox.NegativeLogLikelihood,
		toolbox.MakeLayerInRange(toolbox.Sigmoid, imagePixels, hiddenSize, -hiddenScale, hiddenScale, r),
		toolbox.MakeLayerInRange(toolbox.Softmax, hiddenSize, numDigits, -outputScale, outputScale, r),
	)
}

// evaluate returns the mean cost and the percentage of examples whose most
// likely digit is correct.
func evaluate(net *toolbox.Network, xs, ys [][]float32) (float32, float32, error) {
	var totalLoss float32
	numCorrect := 0
	for k := range xs {
		trace, err := net.Forward(xs[k])
		if err != nil {
			return 0, 0, err
		}
		cost, err := net.Cost(trace, ys[k])
		if err != nil {
			return 0, 0, err
		}
		totalLoss += cost
		if toolbox.ArgMax(trace.Output()) == toolbox.ArgMax(ys[k]) {
			numCorrect++
		}
	}
	n := float32(len(xs))
	return totalLoss / n, float32(numCorrect) / n * 100, nil
}

func (c *TrainCommand) writeCheckpoint(net *toolbox.Network) error {
	f, err := os.Create(c.outputWeightFile)
	if err != nil {
		return fmt.Errorf("while creating checkpoint file: %w", err)
	}
	defer f.Close()

	tensors := map[string]*toolbox.AF32{}

	net.DumpTensors(tensors)

	if err := toolbox.WriteSafeTensors(f, tensors); err != nil {
		return fmt.Errorf("while writing checkpoint tensors: %w", err)
	}

	return f.Close()
}

func readWeights(path string) (map[string]*toolbox.AF32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening weights file: %w", err)
	}
	defer f.Close()

	tensors, err := toolbox.ReadSafeTensors(f)
	if err != nil {
		return nil, fmt.Errorf("while reading weight tensors: %w", err)
	}
	return tensors, nil
}

func loadWeights(path string, net *toolbox.Network) error {
	tensors, err := readWeights(path)
	if err != nil {
		return err
	}
	if err := net.LoadTensors(tensors); err != nil {
		return fmt.Errorf("while restoring network: %w", err)
	}
	return nil
}

func loadMNIST(path string) (xTrain, yTrain, xTest, yTest [][]float32, err error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("while opening mnist data file: %w", err)
	}
	defer r.Close()

	// It seems like even though the npy format supports specifying a Fortran
	// layout, numpy will always write C-style layouts (row-major / last index
	// stored contiguously.)

	// The MNIST data set is of 28x28 images.  Each image becomes one flat
	// input vector of 28*28 values in [0, 1].

	xTrain, err = loadImages(r, "x_train.npy")
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("while reading x_train.npy: %w", err)
	}

	yTrain, err = loadLabels(r, "y_train.npy")
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("while reading y_train.npy: %w", err)
	}

	xTest, err = loadImages(r, "x_test.npy")
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("while reading x_test.npy: %w", err)
	}

	yTest, err = loadLabels(r, "y_test.npy")
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("while reading y_test.npy: %w", err)
	}

	if len(xTrain) != len(yTrain) || len(xTest) != len(yTest) {
		return nil, nil, nil, nil, fmt.Errorf("%w: image and label counts differ", toolbox.ErrDimensionMismatch)
	}

	return xTrain, yTrain, xTest, yTest, nil
}

func loadImages(r *npz.Reader, name string) ([][]float32, error) {
	header := r.Header(name)
	if header == nil {
		return nil, fmt.Errorf("no entry %s", name)
	}
	shape := header.Descr.Shape
	if len(shape) != 3 || shape[1]*shape[2] != imagePixels {
		return nil, fmt.Errorf("%w: images have shape %v, want (n, 28, 28)", toolbox.ErrDimensionMismatch, shape)
	}

	var raw []uint8
	if err := r.Read(name, &raw); err != nil {
		return nil, fmt.Errorf("while reading uint8 array: %w", err)
	}

	all := toolbox.MakeAF32(shape[0], imagePixels)
	for i := 0; i < len(raw); i++ {
		all.V[i] = float32(raw[i]) / float32(255)
	}

	images := make([][]float32, shape[0])
	for k := range images {
		images[k] = all.Row(k)
	}
	return images, nil
}

// loadLabels returns each digit label as a one-hot target.
func loadLabels(r *npz.Reader, name string) ([][]float32, error) {
	var raw []uint8
	if err := r.Read(name, &raw); err != nil {
		return nil, fmt.Errorf("while reading uint8 array: %w", err)
	}

	labels := make([][]float32, len(raw))
	for k, digit := range raw {
		if int(digit) >= numDigits {
			return nil, fmt.Errorf("label %d at index %d is not a digit", digit, k)
		}
		labels[k] = toolbox.OneHot(numDigits, int(digit))
	}
	return labels, nil
}
