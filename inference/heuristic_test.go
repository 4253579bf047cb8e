package inference

import (
	"math"
	"testing"

	"motionsense-go/errcode"
)

func feedWindow(t *testing.T, h *Heuristic, values []float64) {
	t.Helper()
	for i, v := range values {
		st, err := h.Feed(v)
		if err != nil {
			t.Fatalf("feed %d: %v", i, err)
		}
		if i < len(values)-1 && st != Accumulating {
			t.Fatalf("feed %d: status %v before window full", i, st)
		}
		if i == len(values)-1 && st != Ready {
			t.Fatalf("final feed: status %v, want Ready", st)
		}
	}
}

func constWindow(n int, v float64) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = v
	}
	return w
}

func TestClassifyWindows(t *testing.T) {
	const n = 20

	cases := []struct {
		name   string
		window []float64
		want   uint16
	}{
		{"free fall", constWindow(n, 50), 3},
		{"placed", constWindow(n, 1000), 6},
		{"shaking", func() []float64 {
			w := make([]float64, n)
			for i := range w {
				if i%2 == 0 {
					w[i] = 200
				} else {
					w[i] = 1800
				}
			}
			return w
		}(), 1},
		{"impact", func() []float64 {
			w := constWindow(n, 1000)
			w[n/2] = 3000
			return w
		}(), 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHeuristic(n)
			feedWindow(t, h, tc.window)
			res, err := h.RunInference()
			if err != nil {
				t.Fatal(err)
			}
			if res.PredictedClass != tc.want {
				t.Fatalf("class = %d, want %d", res.PredictedClass, tc.want)
			}
			if got := len(res.Probabilities); got != h.ClassCount() {
				t.Fatalf("probabilities len = %d, want %d", got, h.ClassCount())
			}
			best := res.Probabilities[res.PredictedClass]
			for i, p := range res.Probabilities {
				if uint16(i) != res.PredictedClass && p >= best {
					t.Fatalf("probability %d not dominated by winner", i)
				}
			}
		})
	}
}

func TestRejectsNonFiniteFeature(t *testing.T) {
	h := NewHeuristic(4)
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := h.Feed(bad); errcode.Of(err) != errcode.InvalidParams {
			t.Fatalf("feed(%v): err = %v", bad, err)
		}
	}
	// Rejected features must not count toward the window.
	for i := 0; i < 3; i++ {
		if st, _ := h.Feed(1000); st != Accumulating {
			t.Fatalf("feed %d: window advanced past rejects", i)
		}
	}
}

func TestInferenceRequiresFullWindow(t *testing.T) {
	h := NewHeuristic(8)
	h.Feed(1000)
	if _, err := h.RunInference(); errcode.Of(err) != errcode.NotReady {
		t.Fatalf("err = %v, want NotReady", err)
	}
}

func TestWindowResetsAfterInference(t *testing.T) {
	h := NewHeuristic(4)
	feedWindow(t, h, constWindow(4, 1000))
	if _, err := h.RunInference(); err != nil {
		t.Fatal(err)
	}
	if st, _ := h.Feed(1000); st != Accumulating {
		t.Fatal("window not reset after inference")
	}
}
