// Package button converts raw press/release edges into disambiguated
// gestures (single, double, long press) published on the button channel.
//
// All detector state is mutated on one single-worker queue: the edge
// handler, the long-press callback and the double-press-window callback are
// posted to the same goroutine, so no two of them ever observe a torn state
// and no lock is needed.
package button

import (
	"context"
	"log"
	"time"

	"motionsense-go/bus"
	"motionsense-go/types"
	"motionsense-go/x/deferred"
	"motionsense-go/x/timex"
)

// Mask is the bit of the monitored button in the edge callback arguments.
const Mask uint32 = 1 << 0

// Config carries the gesture timing knobs.
type Config struct {
	Debounce          time.Duration // software debounce on accepted press edges
	LongPress         time.Duration // press held this long emits LongPress
	DoublePressWindow time.Duration // second press must land inside this window
	QueueLen          int
}

// Detector is the gesture state machine. Fields below the queue are owned by
// the queue goroutine exclusively.
type Detector struct {
	out   *bus.Channel[types.ButtonEvent]
	cfg   Config
	queue chan func()

	pressedMask uint32
	pressCount  uint32
	lastPressMs int64

	longPressTask *deferred.Task
	windowTask    *deferred.Task
}

// New creates a detector publishing on out.
func New(cfg Config, out *bus.Channel[types.ButtonEvent]) *Detector {
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 16
	}
	d := &Detector{
		out:   out,
		cfg:   cfg,
		queue: make(chan func(), cfg.QueueLen),
	}
	d.longPressTask = deferred.New(d.longPressFired, d.post)
	d.windowTask = deferred.New(d.windowElapsed, d.post)
	return d
}

// Run executes the serialized callback domain until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.longPressTask.Cancel()
			d.windowTask.Cancel()
			return
		case f := <-d.queue:
			f()
		}
	}
}

// OnEdge is the hardware edge callback. It runs in the caller's
// (interrupt-adjacent) context and only posts work; it never blocks.
func (d *Detector) OnEdge(maskNow, maskChanged uint32) {
	if maskChanged&Mask == 0 {
		return
	}
	d.post(func() { d.handleEdge(maskNow) })
}

// post hands work to the queue goroutine without blocking the caller. A full
// queue drops the work; edges arriving faster than the queue drains are
// electrically implausible and not worth stalling an ISR path for.
func (d *Detector) post(f func()) {
	select {
	case d.queue <- f:
	default:
		log.Print("button: callback queue full, edge dropped")
	}
}

func (d *Detector) handleEdge(maskNow uint32) {
	if maskNow&Mask != 0 {
		// Press edge.
		now := timex.NowMs()
		if now-d.lastPressMs < d.cfg.Debounce.Milliseconds() {
			return
		}
		d.pressedMask |= Mask
		d.lastPressMs = now
		d.pressCount++
		d.longPressTask.Schedule(d.cfg.LongPress)
	} else {
		// Release edge.
		d.pressedMask &^= Mask
		// Only a release that beat the long-press timer opens the
		// double-press window; after a LongPress fired there is nothing
		// left to disambiguate.
		if d.longPressTask.Cancel() {
			d.windowTask.Reschedule(d.cfg.DoublePressWindow)
		}
	}
}

// longPressFired runs on the queue goroutine when the long-press timeout
// elapses with the button still held.
func (d *Detector) longPressFired() {
	if d.pressedMask&Mask == 0 {
		return
	}
	log.Print("button: long press detected")
	d.emit(types.LongPress)
	d.pressCount = 0
	d.lastPressMs = 0
}

// windowElapsed runs on the queue goroutine when the double-press window
// closes and maps the press count to a gesture.
func (d *Detector) windowElapsed() {
	switch d.pressCount {
	case 1:
		d.emit(types.SinglePress)
	case 2:
		d.emit(types.DoublePress)
	default:
		log.Printf("button: invalid press count: %d", d.pressCount)
	}
	d.pressCount = 0
	d.lastPressMs = 0
}

func (d *Detector) emit(ev types.ButtonEvent) {
	if err := d.out.Publish(ev); err != nil {
		log.Printf("button: publish %s dropped: %v", ev, err)
	}
}
