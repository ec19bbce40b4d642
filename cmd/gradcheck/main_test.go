package main

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/ahmedtd/brickml/toolbox"
	"github.com/google/go-cmp/cmp"
)

func TestParseSizes(t *testing.T) {
	got, err := parseSizes("4, 5,3")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(got, []int{4, 5, 3}); diff != "" {
		t.Errorf("Bad sizes; diff (-got +want)\n%s", diff)
	}

	for _, bad := range []string{"4", "4,x", "4,0", ""} {
		if _, err := parseSizes(bad); !errors.Is(err, toolbox.ErrInvalidConfiguration) {
			t.Errorf("parseSizes(%q) error = %v, want ErrInvalidConfiguration", bad, err)
		}
	}
}

func TestClassifierPassesGradientCheck(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	for _, act := range []toolbox.ActivationType{toolbox.Sigmoid, toolbox.Tanh, toolbox.Linear} {
		t.Run(act.String(), func(t *testing.T) {
			net, err := classifier([]int{4, 5, 3}, act, r)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got := net.Layers[len(net.Layers)-1].Activation; got != toolbox.Softmax {
				t.Fatalf("output activation = %v, want softmax", got)
			}

			report, err := toolbox.GradientCheck(net, toolbox.OneHot(3, 1), toolbox.GradientCheckOptions{Rand: r})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !report.Within(1e-3) {
				t.Errorf("max abs diff %v exceeds 1e-3", report.MaxAbsDiff())
			}
		})
	}
}
