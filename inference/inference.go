// Package inference declares the boundary to the vendor-supplied
// classification engine. Only the consumed surface is modelled: the engine's
// windowing and classification internals are opaque.
package inference

// FeedStatus is the outcome of feeding one feature scalar.
type FeedStatus uint8

const (
	// Accumulating means the window is still filling. Not an error.
	Accumulating FeedStatus = iota
	// Ready means the window is complete and inference should run now.
	Ready
)

// Result is one inference outcome: the winning class id and the full
// probability vector, indexed by class id.
type Result struct {
	PredictedClass uint16
	Probabilities  []float64
}

// Engine is the opaque inference engine. Implementations are supplied by the
// model vendor; tests use fakes.
type Engine interface {
	// Feed accumulates one feature scalar. A non-nil error is a transient
	// feed failure; the sample is discarded and the system continues.
	Feed(feature float64) (FeedStatus, error)
	// RunInference classifies the completed window.
	RunInference() (Result, error)

	WindowSize() int
	InputCount() int
	ClassCount() int
}
