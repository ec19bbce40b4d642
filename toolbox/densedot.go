package toolbox

func denseDot2Naive(x []float32, y []float32) float32 {
	if len(x) != len(y) {
		panic("mismatched length")
	}
	var sum float32
	for i := range len(x) {
		sum += x[i] * y[i]
	}
	return sum
}

// denseDot2 is denseDot2Naive unrolled by four.  The partial sums are
// combined pairwise, so results can differ from the naive loop in the last
// few bits.
func denseDot2(x []float32, y []float32) float32 {
	if len(x) != len(y) {
		panic("mismatched length")
	}

	var s0, s1, s2, s3 float32

	// Slicing by constants keeps the bounds-check elimination pass happy.
	for len(x) >= 4 && len(y) >= 4 {
		s0 += x[0] * y[0]
		s1 += x[1] * y[1]
		s2 += x[2] * y[2]
		s3 += x[3] * y[3]
		x = x[4:]
		y = y[4:]
	}

	sum := (s0 + s1) + (s2 + s3)

	// Handle the tail.
	if len(x) == len(y) {
		for i := range len(x) {
			sum += x[i] * y[i]
		}
	}

	return sum
}

// Axpy computes y += a*x.
func Axpy(a float32, x, y []float32) {
	if len(x) != len(y) {
		panic("mismatched length")
	}
	for i := range len(x) {
		y[i] += a * x[i]
	}
}

// Dot is the inner product of x and y, which must have the same length.
func Dot(x, y []float32) float32 {
	return denseDot2(x, y)
}
