package word2vec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ahmedtd/brickml/toolbox"
)

// Window is the number of context words taken on each side of a center word.
type Window struct {
	Left  int
	Right int
}

// ParseWindow accepts a symmetric width ("2") or explicit left and right
// widths ("2,3").
func ParseWindow(s string) (Window, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 2 {
		return Window{}, fmt.Errorf("%w: window %q has more than two bounds", toolbox.ErrInvalidConfiguration, s)
	}

	bounds := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Window{}, fmt.Errorf("%w: window bound %q is not an integer", toolbox.ErrInvalidConfiguration, p)
		}
		bounds[i] = n
	}

	w := Window{Left: bounds[0], Right: bounds[0]}
	if len(bounds) == 2 {
		w.Right = bounds[1]
	}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func (w Window) Validate() error {
	if w.Left < 0 || w.Right < 0 {
		return fmt.Errorf("%w: window bounds must be non-negative, got %d,%d", toolbox.ErrInvalidConfiguration, w.Left, w.Right)
	}
	if w.Left+w.Right == 0 {
		return fmt.Errorf("%w: window has no context", toolbox.ErrInvalidConfiguration)
	}
	return nil
}

func (w Window) String() string {
	if w.Left == w.Right {
		return strconv.Itoa(w.Left)
	}
	return fmt.Sprintf("%d,%d", w.Left, w.Right)
}

// Pad surrounds sentence with Left StartTokens and Right EndTokens.  The word
// at sentence[i] is at Pad(sentence)[w.Left+i].
func (w Window) Pad(sentence []string) []string {
	padded := make([]string, 0, w.Left+len(sentence)+w.Right)
	for i := 0; i < w.Left; i++ {
		padded = append(padded, StartToken)
	}
	padded = append(padded, sentence...)
	for i := 0; i < w.Right; i++ {
		padded = append(padded, EndToken)
	}
	return padded
}

// Context returns the words up to Left before and Right after padded[center],
// keeping only the first occurrence of each word.
func (w Window) Context(padded []string, center int) []string {
	lo := max(center-w.Left, 0)
	hi := min(center+w.Right, len(padded)-1)

	seen := map[string]bool{}
	var context []string
	for i := lo; i <= hi; i++ {
		if i == center || seen[padded[i]] {
			continue
		}
		seen[padded[i]] = true
		context = append(context, padded[i])
	}
	return context
}
