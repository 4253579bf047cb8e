// Package app owns the device-level mode arbitration: a flat state machine
// over Idle, Detecting and RawSampling, driven exclusively by button
// gestures from the bus. State entry/exit actions arm and disarm the
// sampling engine and the detection bridge.
package app

import (
	"context"
	"log"
	"sync"
	"time"

	"motionsense-go/bus"
	"motionsense-go/types"
)

// State is the current device mode.
type State uint8

const (
	Idle State = iota
	Detecting
	RawSampling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Detecting:
		return "detecting"
	case RawSampling:
		return "raw_sampling"
	}
	return "unknown"
}

// Sampler is the sampling engine surface the machine drives.
type Sampler interface {
	Start() error
	Stop() error
	SetFrequency(hz int) error
	SetPrintEnabled(enabled bool)
}

// SessionResetter is the detection bridge surface the machine drives.
type SessionResetter interface {
	ResetState()
}

type stateSpec struct {
	entry        func(m *Machine)
	exit         func(m *Machine)
	stepInterval time.Duration
}

// Machine arbitrates device modes. Transitions run in the context of the
// triggering bus listener; the guard serializes them against the control
// loop and any console-driven transition.
type Machine struct {
	engine   Sampler
	bridge   SessionResetter
	detectHz int

	mu      sync.Mutex
	current State

	states [3]stateSpec
}

// New creates a machine in Idle. detectHz is the sampling rate armed on
// entry to Detecting.
func New(engine Sampler, bridge SessionResetter, detectHz int) *Machine {
	m := &Machine{
		engine:   engine,
		bridge:   bridge,
		detectHz: detectHz,
		current:  Idle,
	}
	m.states = [3]stateSpec{
		Idle: {
			entry:        func(m *Machine) { log.Print("app: idle") },
			stepInterval: time.Second,
		},
		Detecting: {
			entry:        (*Machine).enterDetecting,
			exit:         (*Machine).exitDetecting,
			stepInterval: 100 * time.Millisecond,
		},
		RawSampling: {
			entry:        (*Machine).enterRawSampling,
			exit:         (*Machine).exitRawSampling,
			stepInterval: 100 * time.Millisecond,
		},
	}
	return m
}

// Current returns the active state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Attach subscribes the machine to the button channel. The transition table
// is independent of the current state; an event naming the active state
// re-runs exit then entry as a deliberate re-arm.
func (m *Machine) Attach(buttons *bus.Channel[types.ButtonEvent]) {
	buttons.AddListener(m.onButton)
}

func (m *Machine) onButton(ev *types.ButtonEvent) {
	switch *ev {
	case types.SinglePress:
		m.SetState(Detecting)
	case types.DoublePress:
		m.SetState(RawSampling)
	case types.LongPress:
		m.SetState(Idle)
	}
}

// SetState runs exit of the current state, then entry of the next.
func (m *Machine) SetState(next State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStateLocked(next)
}

func (m *Machine) setStateLocked(next State) {
	if exit := m.states[m.current].exit; exit != nil {
		exit(m)
	}
	m.current = next
	if entry := m.states[next].entry; entry != nil {
		entry(m)
	}
}

// Run executes the cooperative control loop until ctx is cancelled. Each
// iteration is one step of the current state: the per-state interval cedes
// the processor so the workers and callback queues run.
func (m *Machine) Run(ctx context.Context) {
	m.mu.Lock()
	if entry := m.states[m.current].entry; entry != nil {
		entry(m)
	}
	m.mu.Unlock()

	for {
		m.mu.Lock()
		interval := m.states[m.current].stepInterval
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (m *Machine) enterDetecting() {
	log.Print("app: detection started")

	m.bridge.ResetState()
	m.engine.SetPrintEnabled(false)

	if err := m.engine.SetFrequency(m.detectHz); err != nil {
		log.Printf("app: set frequency failed: %v", err)
		m.setStateLocked(Idle)
		return
	}
	if err := m.engine.Start(); err != nil {
		log.Printf("app: sampling start failed: %v", err)
		m.setStateLocked(Idle)
	}
}

func (m *Machine) exitDetecting() {
	log.Print("app: detection stopped")
	if err := m.engine.Stop(); err != nil {
		log.Printf("app: sampling stop failed: %v", err)
	}
}

func (m *Machine) enterRawSampling() {
	log.Print("app: raw sampling started")

	m.engine.SetPrintEnabled(true)

	if err := m.engine.Start(); err != nil {
		log.Printf("app: sampling start failed: %v", err)
		m.setStateLocked(Idle)
	}
}

func (m *Machine) exitRawSampling() {
	log.Print("app: raw sampling stopped")
	if err := m.engine.Stop(); err != nil {
		log.Printf("app: sampling stop failed: %v", err)
	}
}
