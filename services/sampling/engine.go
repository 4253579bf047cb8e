// Package sampling drives periodic acquisition of 6-axis inertial samples.
//
// The periodic trigger only increments a counting signal; all sensor I/O and
// bus publication happen on a dedicated worker that blocks on that signal.
// Stopping the engine while a tick is already pending is safe: the next
// worker wake re-checks the active flag and discards stale work.
package sampling

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"motionsense-go/bus"
	"motionsense-go/errcode"
	"motionsense-go/sensors"
	"motionsense-go/types"
	"motionsense-go/x/timex"
)

// Engine owns the sampling lifecycle. Lifecycle calls (Init, SetFrequency,
// Start, Stop) are serialized by an internal guard; the worker reads only
// the atomic flags.
type Engine struct {
	dev  sensors.Device
	out  *bus.Channel[types.InertialSample]
	sink io.Writer

	mu          sync.Mutex
	initialized bool
	freqHz      int
	cancelTick  context.CancelFunc

	active       atomic.Bool
	printEnabled atomic.Bool

	// Counting signal from the trigger to the worker. Capacity 1: at most
	// one wake is ever pending, the bus never buffers a backlog of ticks.
	sem chan struct{}
}

// New creates an engine reading dev and publishing on out. Diagnostic rows
// go to sink (os.Stdout when nil).
func New(dev sensors.Device, out *bus.Channel[types.InertialSample], sink io.Writer) *Engine {
	if sink == nil {
		sink = os.Stdout
	}
	return &Engine{
		dev:    dev,
		out:    out,
		sink:   sink,
		freqHz: 100,
		sem:    make(chan struct{}, 1),
	}
}

// Init validates the inertial device is ready.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.dev.Ready() {
		return errcode.DeviceUnavailable
	}
	e.initialized = true
	log.Print("sampling: IMU initialized")
	return nil
}

// SetFrequency programs both the accelerometer and gyroscope output data
// rate. On failure the applied rate is not guaranteed consistent (the accel
// write may have succeeded alone); callers may retry both.
func (e *Engine) SetFrequency(hz int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return errcode.DeviceUnavailable
	}
	if hz <= 0 {
		return errcode.InvalidParams
	}
	if err := e.dev.SetAccelRate(hz); err != nil {
		return fmt.Errorf("set accel rate: %w", err)
	}
	if err := e.dev.SetGyroRate(hz); err != nil {
		return fmt.Errorf("set gyro rate: %w", err)
	}
	e.freqHz = hz
	log.Printf("sampling: frequency set to %d Hz", hz)
	return nil
}

// GetSample fetches and converts one reading synchronously. It does not
// require the periodic engine to be running.
func (e *Engine) GetSample() (types.InertialSample, error) {
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()

	if !initialized {
		return types.InertialSample{}, errcode.DeviceUnavailable
	}
	s, err := e.dev.Read()
	if err != nil {
		return types.InertialSample{}, &errcode.E{C: errcode.ReadFailed, Op: "sampling", Err: err}
	}
	return s, nil
}

// Start arms the periodic trigger at the configured frequency.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active.Load() {
		log.Print("sampling: already active")
		return errcode.AlreadyActive
	}
	if !e.initialized {
		return errcode.DeviceUnavailable
	}

	period := timex.PeriodFromHz(e.freqHz)
	log.Printf("sampling: starting continuous sampling at %d Hz", e.freqHz)
	e.active.Store(true)

	tctx, cancel := context.WithCancel(context.Background())
	e.cancelTick = cancel
	go e.tickLoop(tctx, period)
	return nil
}

// Stop disarms the trigger. A wake already pending on the counting signal is
// discarded by the worker.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active.Load() {
		log.Print("sampling: not active")
		return errcode.NotActive
	}
	log.Print("sampling: stopping continuous sampling")
	e.active.Store(false)
	e.cancelTick()
	e.cancelTick = nil
	return nil
}

// SetPrintEnabled toggles the diagnostic row output. It has no effect on
// publishing.
func (e *Engine) SetPrintEnabled(enabled bool) {
	e.printEnabled.Store(enabled)
}

// Active reports whether the periodic engine is running.
func (e *Engine) Active() bool { return e.active.Load() }

// tickLoop is the trigger context: minimal, non-blocking, no I/O. Each tick
// merely gives the counting signal.
func (e *Engine) tickLoop(ctx context.Context, period time.Duration) {
	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			select {
			case e.sem <- struct{}{}:
			default: // a wake is already pending
			}
		}
	}
}

// Run is the dedicated sampling worker. It blocks on the counting signal,
// performs the sensor I/O and publishes the sample.
func (e *Engine) Run(ctx context.Context) {
	log.Print("sampling: worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.sem:
		}

		if !e.active.Load() {
			continue // stale wake from a stop race
		}

		s, err := e.GetSample()
		if err != nil {
			log.Printf("sampling: failed to get sample: %v", err)
			continue
		}

		if err := e.out.Publish(s); err != nil {
			log.Printf("sampling: publish dropped: %v", err)
		}

		if e.printEnabled.Load() {
			fmt.Fprintf(e.sink, "%f,%f,%f,%f,%f,%f\n",
				s.AccelX, s.AccelY, s.AccelZ,
				s.GyroX, s.GyroY, s.GyroZ)
		}
	}
}
