package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"

	"github.com/ahmedtd/brickml/toolbox"
	"github.com/google/subcommands"

	_ "image/jpeg"
	_ "image/png"
)

type InferCommand struct {
	weightsFile string
	imageFile   string
}

var _ subcommands.Command = (*InferCommand)(nil)

func (*InferCommand) Name() string {
	return "infer"
}

func (*InferCommand) Synopsis() string {
	return "Infer using the model weights"
}

func (*InferCommand) Usage() string {
	return ``
}

func (c *InferCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.weightsFile, "weights", "mnist.safetensors", "Path to the weights produced by the train command")
	f.StringVar(&c.imageFile, "image", "", "Path to the image to predict")
}

func (c *InferCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *InferCommand) executeErr(ctx context.Context) error {
	tensors, err := readWeights(c.weightsFile)
	if err != nil {
		return fmt.Errorf("while loading weights: %w", err)
	}

	net, err := networkFromTensors(tensors)
	if err != nil {
		return fmt.Errorf("while restoring network: %w", err)
	}

	x, err := c.loadImage()
	if err != nil {
		return fmt.Errorf("while loading image: %w", err)
	}

	pred, err := net.Predict(x)
	if err != nil {
		return fmt.Errorf("while predicting: %w", err)
	}

	digit := toolbox.ArgMax(pred)
	log.Printf("Prediction: %d (p=%.3f)", digit, pred[digit])
	return nil
}

// networkFromTensors rebuilds the classifier around checkpointed weights,
// taking the hidden size from the first layer's shape.
func networkFromTensors(tensors map[string]*toolbox.AF32) (*toolbox.Network, error) {
	hidden, ok := tensors["net.0.weights"]
	if !ok {
		return nil, fmt.Errorf("no entry for net.0.weights")
	}
	output, ok := tensors["net.1.weights"]
	if !ok {
		return nil, fmt.Errorf("no entry for net.1.weights")
	}

	hiddenLayer, err := toolbox.MakeLayerFromWeights(toolbox.Sigmoid, hidden)
	if err != nil {
		return nil, err
	}
	outputLayer, err := toolbox.MakeLayerFromWeights(toolbox.Softmax, output)
	if err != nil {
		return nil, err
	}
	if hiddenLayer.InputSize != imagePixels || outputLayer.OutputSize != numDigits {
		return nil, fmt.Errorf("%w: checkpoint maps %d inputs to %d outputs", toolbox.ErrDimensionMismatch, hiddenLayer.InputSize, outputLayer.OutputSize)
	}
	return toolbox.MakeNetwork(toolbox.NegativeLogLikelihood, hiddenLayer, outputLayer)
}

func (c *InferCommand) loadImage() ([]float32, error) {
	f, err := os.Open(c.imageFile)
	if err != nil {
		return nil, fmt.Errorf("while opening image file: %w", err)
	}
	defer f.Close()

	rawImg, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("while decoding image: %w", err)
	}

	rawBounds := rawImg.Bounds()
	if rawBounds.Dx() != 28 || rawBounds.Dy() != 28 {
		return nil, fmt.Errorf("image is %dx%d, want 28x28", rawBounds.Dx(), rawBounds.Dy())
	}

	out := make([]float32, imagePixels)

	for y := rawBounds.Min.Y; y < rawBounds.Max.Y; y++ {
		for x := rawBounds.Min.X; x < rawBounds.Max.X; x++ {
			v := float32(color.GrayModel.Convert(rawImg.At(x, y)).(color.Gray).Y) / float32(255)
			out[(y-rawBounds.Min.Y)*28+(x-rawBounds.Min.X)] = v
		}
	}

	return out, nil
}
