package utils

import (
	"math"
	"testing"
)

func AssertTrue(t *testing.T, a bool) {
	t.Helper()
	if !a {
		t.Fatalf("Expected true, got false")
	}
}

func AssertEqual(t *testing.T, a interface{}, b interface{}) {
	t.Helper()
	if a != b {
		t.Fatalf("Expected equal: %v != %v\n", a, b)
	}
}

func AssertClose(t *testing.T, a, b, tol float64) {
	t.Helper()
	if math.IsNaN(a) || math.Abs(a-b) > tol {
		t.Fatalf("Expected %v within %v of %v\n", a, tol, b)
	}
}

func AssertSliceClose(t *testing.T, a, b []float64, tol float64) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("Length mismatch: %d != %d\n", len(a), len(b))
	}
	for i := range a {
		if math.IsNaN(a[i]) || math.Abs(a[i]-b[i]) > tol {
			t.Fatalf("Index %d: expected %v within %v of %v\n", i, a[i], tol, b[i])
		}
	}
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}
