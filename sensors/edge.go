package sensors

import (
	"context"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"motionsense-go/errcode"
)

// EdgeFunc receives the current pressed mask and the bits that changed.
// It runs on the watcher goroutine and must not block.
type EdgeFunc func(maskNow, maskChanged uint32)

// PinWatcher turns electrical edges on one GPIO pin into EdgeFunc callbacks.
// The pin is assumed active-low with a pull-up (pressed == low) unless
// invert is false.
type PinWatcher struct {
	pin    gpio.PinIn
	mask   uint32
	invert bool
	fn     EdgeFunc
}

// NewPinWatcher claims the named pin and configures edge detection. mask is
// the bit reported for this pin in the EdgeFunc arguments.
func NewPinWatcher(name string, mask uint32, invert bool, fn EdgeFunc) (*PinWatcher, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, &errcode.E{C: errcode.DeviceUnavailable, Op: "button", Msg: "pin " + name + " not found"}
	}
	if err := p.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, &errcode.E{C: errcode.DeviceUnavailable, Op: "button", Msg: "configure input", Err: err}
	}
	return &PinWatcher{pin: p, mask: mask, invert: invert, fn: fn}, nil
}

// Run blocks on edges until ctx is cancelled. The wait uses a short timeout
// so cancellation is observed promptly.
func (w *PinWatcher) Run(ctx context.Context) {
	last := w.pressed()
	for ctx.Err() == nil {
		if !w.pin.WaitForEdge(200 * time.Millisecond) {
			continue
		}
		cur := w.pressed()
		if cur == last {
			continue // glitch already settled; driver-level debounce
		}
		last = cur

		var now uint32
		if cur {
			now = w.mask
		}
		w.fn(now, w.mask)
	}
}

func (w *PinWatcher) pressed() bool {
	lvl := w.pin.Read() == gpio.High
	if w.invert {
		return !lvl
	}
	return lvl
}
