// Command gradcheck builds a random classifier network and compares the
// gradient that backpropagation computes wrt the input against a centered
// finite difference of the cost.
//
// `go run ./cmd/gradcheck --sizes=4,5,3 --verbose`
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/ahmedtd/brickml/toolbox"
)

var (
	sizesFlag        = flag.String("sizes", "4,5,3", "Comma-separated layer sizes, input first")
	hiddenActivation = flag.String("hidden-activation", "sigmoid", "Activation of every layer but the softmax output")
	epsilon          = flag.Float64("epsilon", 0.01, "Perturbation applied to each input element")
	tolerance        = flag.Float64("tolerance", 1e-3, "Largest acceptable |analytic - numerical|")
	seed             = flag.Int64("seed", 12345, "Random seed for weights, input and target class")
	verbose          = flag.Bool("verbose", false, "Print the per-dimension gradient table")
)

func main() {
	flag.Parse()

	ok, err := run(os.Stdout)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if !ok {
		os.Exit(1)
	}
}

func run(out *os.File) (bool, error) {
	sizes, err := parseSizes(*sizesFlag)
	if err != nil {
		return false, err
	}
	act, err := toolbox.ParseActivation(*hiddenActivation)
	if err != nil {
		return false, err
	}

	r := rand.New(rand.NewSource(*seed))
	net, err := classifier(sizes, act, r)
	if err != nil {
		return false, fmt.Errorf("while creating network: %w", err)
	}

	correct := r.Intn(net.OutputSize())
	report, err := toolbox.GradientCheck(net, toolbox.OneHot(net.OutputSize(), correct), toolbox.GradientCheckOptions{
		Epsilon: float32(*epsilon),
		Rand:    r,
	})
	if err != nil {
		return false, fmt.Errorf("while checking gradients: %w", err)
	}

	if *verbose {
		if err := report.WriteTable(out); err != nil {
			return false, fmt.Errorf("while writing gradient table: %w", err)
		}
	}

	maxDiff := report.MaxAbsDiff()
	if !report.Within(float32(*tolerance)) {
		log.Printf("FAIL sizes=%v correct=%d max-abs-diff=%v tolerance=%v", sizes, correct, maxDiff, *tolerance)
		return false, nil
	}
	log.Printf("OK sizes=%v correct=%d max-abs-diff=%v tolerance=%v", sizes, correct, maxDiff, *tolerance)
	return true, nil
}

// classifier stacks layers of the given sizes with act between them and a
// softmax output trained with negative log-likelihood.
func classifier(sizes []int, act toolbox.ActivationType, r *rand.Rand) (*toolbox.Network, error) {
	specs := make([]toolbox.LayerSpec, 0, len(sizes)-1)
	for i := 0; i+1 < len(sizes); i++ {
		layerAct := act
		if i+2 == len(sizes) {
			layerAct = toolbox.Softmax
		}
		specs = append(specs, toolbox.LayerSpec{
			Activation: layerAct,
			InputSize:  sizes[i],
			OutputSize: sizes[i+1],
		})
	}
	return toolbox.MakeNetworkFromSpecs(toolbox.NegativeLogLikelihood, r, specs...)
}

func parseSizes(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: need at least an input and an output size, got %q", toolbox.ErrInvalidConfiguration, s)
	}
	sizes := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: bad layer size %q", toolbox.ErrInvalidConfiguration, p)
		}
		sizes[i] = n
	}
	return sizes, nil
}
