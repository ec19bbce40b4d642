package main

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/ahmedtd/brickml/toolbox"
	"github.com/google/go-cmp/cmp"
)

func TestCheckpointRestoresNetwork(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	net, err := makeNetwork(16, r)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tensors := map[string]*toolbox.AF32{}
	net.DumpTensors(tensors)
	buf := &bytes.Buffer{}
	if err := toolbox.WriteSafeTensors(buf, tensors); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	restoredTensors, err := toolbox.ReadSafeTensors(buf)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	restored, err := networkFromTensors(restoredTensors)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	x := make([]float32, imagePixels)
	for i := range x {
		x[i] = r.Float32()
	}
	want, err := net.Predict(x)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	got, err := restored.Predict(x)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Restored network predicts differently; diff (-got +want)\n%s", diff)
	}
}

func TestEvaluate(t *testing.T) {
	net, err := makeNetwork(4, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	x := make([]float32, imagePixels)
	pred, err := net.Predict(x)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	best := toolbox.ArgMax(pred)
	worst := (best + 1) % numDigits

	_, pct, err := evaluate(net, [][]float32{x, x}, [][]float32{toolbox.OneHot(numDigits, best), toolbox.OneHot(numDigits, worst)})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pct != 50 {
		t.Errorf("evaluate percent = %v, want 50", pct)
	}
}
