package toolbox

import (
	"fmt"
	"math/rand"
	"slices"
)

// AF32 is a dense row-major float32 array.
type AF32 struct {
	V     []float32
	Shape []int
}

func MakeAF32(shape ...int) *AF32 {
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("invalid shape: %v", shape))
		}
	}
	size := 1
	for _, s := range shape {
		size *= s
	}

	return &AF32{
		V:     make([]float32, size),
		Shape: shape,
	}
}

func MakeScalarAF32(scalar float32) *AF32 {
	return &AF32{
		V:     []float32{scalar},
		Shape: []int{1},
	}
}

// MakeAF32FromRows builds a (len(rows), len(rows[0])) array.  Every row must
// have the same length.
func MakeAF32FromRows(rows [][]float32) (*AF32, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrDimensionMismatch)
	}
	cols := len(rows[0])
	out := MakeAF32(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, i, len(row), cols)
		}
		copy(out.V[i*cols:(i+1)*cols], row)
	}
	return out, nil
}

// MakeUniformAF32 fills a new array with values drawn uniformly from [lo, hi).
func MakeUniformAF32(r *rand.Rand, lo, hi float32, shape ...int) *AF32 {
	a := MakeAF32(shape...)
	for i := range a.V {
		a.V[i] = lo + (hi-lo)*r.Float32()
	}
	return a
}

// AF32Copy returns a deep copy of in.
func AF32Copy(in *AF32) *AF32 {
	return &AF32{
		V:     slices.Clone(in.V),
		Shape: slices.Clone(in.Shape),
	}
}

func AF32Transpose(in *AF32, out *AF32) {
	if len(in.Shape) != 2 {
		panic("cannot transpose if len(shape) != 2")
	}
	if len(in.V) != len(out.V) {
		panic("output storage is not correctly sized to store the transpose of the input")
	}
	out.Shape = []int{in.Shape[1], in.Shape[0]}

	for i := 0; i < in.Shape[0]; i++ {
		for j := 0; j < in.Shape[1]; j++ {
			out.Set2(j, i, in.At2(i, j))
		}
	}
}

// AF32Reshape reshapes the input tensor.  The overall number of elements must
// be the same.  The returned tensor shares storage with the input tensor (no
// data is copied).
func AF32Reshape(a *AF32, shape ...int) *AF32 {
	newSize := 1
	for _, s := range shape {
		if s <= 0 {
			panic(fmt.Sprintf("invalid shape: %v", shape))
		}
		newSize *= s
	}

	if newSize != len(a.V) {
		panic("invalid reshape")
	}

	return &AF32{
		V:     a.V,
		Shape: shape,
	}
}

func (a *AF32) At1(idx int) float32 {
	return a.V[idx]
}

func (a *AF32) At2(idx0, idx1 int) float32 {
	if len(a.Shape) != 2 {
		panic("At2() invalid for len(shape) != 2")
	}
	return a.V[idx0*a.Shape[1]+idx1]
}

func (a *AF32) Set1(idx int, v float32) {
	a.V[idx] = v
}

func (a *AF32) Set2(idx0, idx1 int, v float32) {
	if len(a.Shape) != 2 {
		panic("Set2() invalid for len(shape) != 2")
	}
	a.V[idx0*a.Shape[1]+idx1] = v
}

// Row returns row i of a 2-D array.  The slice shares storage with a.
func (a *AF32) Row(i int) []float32 {
	if len(a.Shape) != 2 {
		panic("Row() invalid for len(shape) != 2")
	}
	cols := a.Shape[1]
	return a.V[i*cols : i*cols+cols]
}

// Col copies column j of a 2-D array into out, which must have length
// Shape[0].
func (a *AF32) Col(j int, out []float32) {
	if len(a.Shape) != 2 {
		panic("Col() invalid for len(shape) != 2")
	}
	rows, cols := a.Shape[0], a.Shape[1]
	if len(out) != rows {
		panic("dimension mismatch")
	}
	for i := 0; i < rows; i++ {
		out[i] = a.V[i*cols+j]
	}
}

// AddCol adds scale*v to column j of a 2-D array.
func (a *AF32) AddCol(j int, scale float32, v []float32) {
	rows, cols := a.Shape[0], a.Shape[1]
	if len(v) != rows {
		panic("dimension mismatch")
	}
	for i := 0; i < rows; i++ {
		a.V[i*cols+j] += scale * v[i]
	}
}

// MatVec writes a·x into out.  a has shape (len(out), len(x)).
func MatVec(a *AF32, x, out []float32) {
	rows, cols := a.Shape[0], a.Shape[1]
	if len(x) != cols || len(out) != rows {
		panic("dimension mismatch")
	}
	for i := 0; i < rows; i++ {
		out[i] = denseDot2(a.V[i*cols:i*cols+cols], x)
	}
}

// MatTVec writes aᵗ·y into out.  a has shape (len(y), len(out)).
func MatTVec(a *AF32, y, out []float32) {
	rows, cols := a.Shape[0], a.Shape[1]
	if len(y) != rows || len(out) != cols {
		panic("dimension mismatch")
	}
	clear(out)
	for i := 0; i < rows; i++ {
		Axpy(y[i], a.V[i*cols:i*cols+cols], out)
	}
}

// Outer writes the outer product of x and y into out, which has shape
// (len(x), len(y)).
func Outer(x, y []float32, out *AF32) {
	if !slices.Equal(out.Shape, []int{len(x), len(y)}) {
		panic("dimension mismatch")
	}
	cols := len(y)
	for i := range x {
		row := out.V[i*cols : i*cols+cols]
		for j := range y {
			row[j] = x[i] * y[j]
		}
	}
}
