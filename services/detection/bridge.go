// Package detection bridges inertial samples to the opaque inference
// engine. For each sample it derives the acceleration-vector magnitude,
// feeds it to the engine and, when a window completes, publishes the
// classification — but only when the predicted class changed since the last
// successful publication.
package detection

import (
	"log"
	"math"
	"sync/atomic"

	"motionsense-go/bus"
	"motionsense-go/errcode"
	"motionsense-go/inference"
	"motionsense-go/types"
	"motionsense-go/x/timex"
)

const msPerG = 9.80665

// Bridge holds one word of session state: the last published class.
// The sample listener runs in the sampling worker's context; ResetState may
// be called from the control-loop context, hence the atomic.
type Bridge struct {
	engine inference.Engine
	out    *bus.Channel[types.ClassificationResult]

	lastPublished atomic.Uint32
}

// New creates a bridge driving engine and publishing on out.
func New(engine inference.Engine, out *bus.Channel[types.ClassificationResult]) *Bridge {
	b := &Bridge{engine: engine, out: out}
	b.lastPublished.Store(uint32(types.InvalidClass))
	return b
}

// Init validates the engine and logs its shape.
func (b *Bridge) Init() error {
	if b.engine == nil {
		return errcode.NotReady
	}
	b.ResetState()
	log.Printf("detection: model ready (window=%d inputs=%d classes=%d)",
		b.engine.WindowSize(), b.engine.InputCount(), b.engine.ClassCount())
	return nil
}

// Attach subscribes the bridge to the sample channel as an inline listener.
func (b *Bridge) Attach(samples *bus.Channel[types.InertialSample]) {
	samples.AddListener(b.onSample)
}

// ResetState forgets the last published class so the next classification is
// guaranteed to be published once, even if identical to one from a prior
// session.
func (b *Bridge) ResetState() {
	b.lastPublished.Store(uint32(types.InvalidClass))
}

// onSample runs inline in the sample publisher's context.
func (b *Bridge) onSample(s *types.InertialSample) {
	status, err := b.engine.Feed(magnitudeMg(s))
	if err != nil {
		log.Printf("detection: feed failed: %v", err)
		return
	}
	if status != inference.Ready {
		return // window still filling; not an error, not logged
	}

	res, err := b.engine.RunInference()
	if err != nil {
		log.Printf("detection: inference failed: %v", err)
		return
	}
	if int(res.PredictedClass) >= len(res.Probabilities) {
		log.Printf("detection: inference failed: class %d outside probability vector", res.PredictedClass)
		return
	}

	if uint32(res.PredictedClass) == b.lastPublished.Load() {
		return // avoid republishing an unchanged class
	}

	result := types.ClassificationResult{
		PredictedClass: res.PredictedClass,
		Confidence:     res.Probabilities[res.PredictedClass],
		TimestampMS:    timex.NowMs(),
	}
	if err := b.out.Publish(result); err != nil {
		// Leave lastPublished unchanged so the same class is retried on the
		// next qualifying sample.
		log.Printf("detection: publish dropped: %v", err)
		return
	}
	b.lastPublished.Store(uint32(res.PredictedClass))
}

// magnitudeMg converts one sample's acceleration vector to milli-g.
func magnitudeMg(s *types.InertialSample) float64 {
	m := math.Sqrt(s.AccelX*s.AccelX + s.AccelY*s.AccelY + s.AccelZ*s.AccelZ)
	return m / msPerG * 1000.0
}
