package inference

import (
	"math"

	"motionsense-go/errcode"
	"motionsense-go/types"
)

// Heuristic is a windowed magnitude-statistics classifier used when no
// vendor model is linked in. It collects windowSize magnitude samples
// (milli-g) and classifies the window from mean, deviation and extrema.
// The thresholds are coarse on purpose: the stand-in exists so the full
// pipeline runs end to end on hardware without the vendor blob.
type Heuristic struct {
	windowSize int
	window     []float64
}

// NewHeuristic creates a stand-in engine with the given window length.
func NewHeuristic(windowSize int) *Heuristic {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &Heuristic{
		windowSize: windowSize,
		window:     make([]float64, 0, windowSize),
	}
}

func (h *Heuristic) WindowSize() int { return h.windowSize }
func (h *Heuristic) InputCount() int { return 1 }
func (h *Heuristic) ClassCount() int { return len(types.ClassNames) }

// Feed appends one magnitude sample. NaN and infinities are rejected so a
// bad sensor read cannot poison the whole window.
func (h *Heuristic) Feed(feature float64) (FeedStatus, error) {
	if math.IsNaN(feature) || math.IsInf(feature, 0) {
		return Accumulating, &errcode.E{C: errcode.InvalidParams, Op: "inference.Feed", Msg: "non-finite feature"}
	}
	h.window = append(h.window, feature)
	if len(h.window) >= h.windowSize {
		return Ready, nil
	}
	return Accumulating, nil
}

// RunInference classifies the completed window and resets it.
func (h *Heuristic) RunInference() (Result, error) {
	if len(h.window) < h.windowSize {
		return Result{}, &errcode.E{C: errcode.NotReady, Op: "inference.RunInference", Msg: "window not full"}
	}

	var sum, min, max float64
	min = math.Inf(1)
	max = math.Inf(-1)
	for _, v := range h.window {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	n := float64(len(h.window))
	mean := sum / n

	var dev float64
	for _, v := range h.window {
		dev += math.Abs(v - mean)
	}
	dev /= n

	h.window = h.window[:0]

	// Classes: 0 Idle, 1 Shaking, 2 Impact, 3 Free Fall, 4 Carrying,
	// 5 in Car, 6 Placed. Magnitudes are milli-g, so rest sits near 1000.
	class := uint16(0)
	switch {
	case mean < 300:
		class = 3 // sustained low magnitude: free fall
	case max > 2500 && dev < 200:
		class = 2 // isolated spike over a quiet window: impact
	case dev > 400:
		class = 1 // large sustained variation: shaking
	case dev > 80:
		class = 4 // moderate rhythmic variation: carrying
	case dev > 25:
		class = 5 // low-amplitude vibration: in car
	case max-min < 10:
		class = 6 // dead still: placed
	default:
		class = 0
	}

	probs := make([]float64, len(types.ClassNames))
	for i := range probs {
		probs[i] = 0.05
	}
	probs[class] = 1 - 0.05*float64(len(probs)-1)
	return Result{PredictedClass: class, Probabilities: probs}, nil
}
