package word2vec

import (
	"fmt"
	"os"

	"github.com/ahmedtd/brickml/toolbox"
	"github.com/sbinet/npyio/npz"
)

// Each table is stored as a flat float32 array plus an int64 shape array.
const (
	npzInKey       = "in.npy"
	npzInShapeKey  = "in_shape.npy"
	npzOutKey      = "out.npy"
	npzOutShapeKey = "out_shape.npy"
)

// SaveNPZ writes both tables to a numpy .npz archive at path.
func (e *Embeddings) SaveNPZ(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating model file: %w", err)
	}
	defer f.Close()

	w := npz.NewWriter(f)
	entries := []struct {
		key   string
		value any
	}{
		{npzInKey, e.In.V},
		{npzInShapeKey, shapeOf(e.In)},
		{npzOutKey, e.Out.V},
		{npzOutShapeKey, shapeOf(e.Out)},
	}
	for _, entry := range entries {
		if err := w.Write(entry.key, entry.value); err != nil {
			return fmt.Errorf("while writing %s: %w", entry.key, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("while finishing model file: %w", err)
	}
	return f.Close()
}

// LoadNPZ reads embeddings written by SaveNPZ.
func LoadNPZ(path string) (*Embeddings, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening model file: %w", err)
	}
	defer r.Close()

	in, err := readTable(r, npzInKey, npzInShapeKey)
	if err != nil {
		return nil, err
	}
	out, err := readTable(r, npzOutKey, npzOutShapeKey)
	if err != nil {
		return nil, err
	}
	return MakeEmbeddingsFromValues(in, out)
}

func readTable(r *npz.Reader, valuesKey, shapeKey string) (*toolbox.AF32, error) {
	var shape []int64
	if err := r.Read(shapeKey, &shape); err != nil {
		return nil, fmt.Errorf("while reading %s: %w", shapeKey, err)
	}
	var values []float32
	if err := r.Read(valuesKey, &values); err != nil {
		return nil, fmt.Errorf("while reading %s: %w", valuesKey, err)
	}

	t := &toolbox.AF32{V: values, Shape: make([]int, len(shape))}
	size := 1
	for i, s := range shape {
		t.Shape[i] = int(s)
		size *= int(s)
	}
	if size != len(values) {
		return nil, fmt.Errorf("%w: %s has %d values but shape %v", toolbox.ErrDimensionMismatch, valuesKey, len(values), shape)
	}
	return t, nil
}

func shapeOf(t *toolbox.AF32) []int64 {
	shape := make([]int64, len(t.Shape))
	for i, s := range t.Shape {
		shape[i] = int64(s)
	}
	return shape
}
