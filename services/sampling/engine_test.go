package sampling

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"motionsense-go/bus"
	"motionsense-go/errcode"
	"motionsense-go/types"
)

// fakeDevice is a controllable sensors.Device for engine tests.
type fakeDevice struct {
	mu       sync.Mutex
	ready    bool
	accelErr error
	gyroErr  error
	readErr  error
	accelHz  int
	gyroHz   int
	reads    int
}

func (f *fakeDevice) Ready() bool { return f.ready }

func (f *fakeDevice) SetAccelRate(hz int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accelErr != nil {
		return f.accelErr
	}
	f.accelHz = hz
	return nil
}

func (f *fakeDevice) SetGyroRate(hz int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gyroErr != nil {
		return f.gyroErr
	}
	f.gyroHz = hz
	return nil
}

func (f *fakeDevice) Read() (types.InertialSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return types.InertialSample{}, f.readErr
	}
	f.reads++
	return types.InertialSample{AccelX: 1, AccelY: 2, AccelZ: 3, GyroX: 4, GyroY: 5, GyroZ: 6}, nil
}

// syncBuffer makes bytes.Buffer safe for the worker goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestEngine(t *testing.T, dev *fakeDevice, sink *syncBuffer) (*Engine, *bus.Subscription[types.InertialSample]) {
	t.Helper()
	out := bus.NewChannel[types.InertialSample]("imu")
	sub := out.Subscribe(32)

	var w *syncBuffer
	if sink != nil {
		w = sink
	} else {
		w = &syncBuffer{}
	}
	e := New(dev, out, w)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(func() {
		if e.Active() {
			_ = e.Stop()
		}
	})
	go e.Run(ctx)
	return e, sub
}

func TestInitFailsWhenDeviceNotReady(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{ready: false}, nil)
	if err := e.Init(); errcode.Of(err) != errcode.DeviceUnavailable {
		t.Fatalf("expected device_unavailable, got %v", err)
	}
}

func TestSetFrequencyProgramsBothChannels(t *testing.T) {
	dev := &fakeDevice{ready: true}
	e, _ := newTestEngine(t, dev, nil)
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	if err := e.SetFrequency(100); err != nil {
		t.Fatalf("set frequency: %v", err)
	}
	if dev.accelHz != 100 || dev.gyroHz != 100 {
		t.Fatalf("rates not applied: accel=%d gyro=%d", dev.accelHz, dev.gyroHz)
	}
}

func TestSetFrequencyPartialFailure(t *testing.T) {
	dev := &fakeDevice{ready: true, gyroErr: errors.New("nack")}
	e, _ := newTestEngine(t, dev, nil)
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}

	err := e.SetFrequency(200)
	if err == nil {
		t.Fatal("expected error when gyro write fails")
	}
	// The accel write went through: rate is not guaranteed consistent.
	if dev.accelHz != 200 {
		t.Fatalf("accel write should have been applied first, got %d", dev.accelHz)
	}
}

func TestGetSampleRequiresInit(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{ready: true}, nil)
	if _, err := e.GetSample(); errcode.Of(err) != errcode.DeviceUnavailable {
		t.Fatalf("expected device_unavailable, got %v", err)
	}
}

func TestGetSampleWithoutRunning(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{ready: true}, nil)
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}

	s, err := e.GetSample()
	if err != nil {
		t.Fatalf("get sample: %v", err)
	}
	if s.AccelX != 1 || s.GyroZ != 6 {
		t.Fatalf("unexpected sample: %+v", s)
	}
}

func TestStartStopIdempotency(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDevice{ready: true}, nil)
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}

	if err := e.Stop(); errcode.Of(err) != errcode.NotActive {
		t.Fatalf("stop while inactive: expected not_active, got %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(); errcode.Of(err) != errcode.AlreadyActive {
		t.Fatalf("second start: expected already_active, got %v", err)
	}
	if !e.Active() {
		t.Fatal("engine lost active state after rejected start")
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := e.Stop(); errcode.Of(err) != errcode.NotActive {
		t.Fatalf("second stop: expected not_active, got %v", err)
	}
}

func TestPeriodicPublishAndStopHalts(t *testing.T) {
	dev := &fakeDevice{ready: true}
	e, sub := newTestEngine(t, dev, nil)
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	if err := e.SetFrequency(100); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}

	// At 100 Hz a handful of samples lands well inside 200ms.
	var got int
	deadline := time.After(500 * time.Millisecond)
	for got < 5 {
		select {
		case <-sub.Channel():
			got++
		case <-deadline:
			t.Fatalf("only %d samples before deadline", got)
		}
	}

	if err := e.Stop(); err != nil {
		t.Fatal(err)
	}

	// Allow at most one in-flight tick to drain, then demand silence.
	time.Sleep(30 * time.Millisecond)
	for {
		select {
		case <-sub.Channel():
		default:
			goto drained
		}
	}
drained:
	select {
	case s := <-sub.Channel():
		t.Fatalf("sample published after stop: %+v", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReadFailureSkipsTick(t *testing.T) {
	dev := &fakeDevice{ready: true, readErr: errors.New("bus glitch")}
	e, sub := newTestEngine(t, dev, nil)
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-sub.Channel():
		t.Fatalf("sample published despite read failure: %+v", s)
	case <-time.After(80 * time.Millisecond):
	}

	// Clearing the fault resumes publication without a restart.
	dev.mu.Lock()
	dev.readErr = nil
	dev.mu.Unlock()

	select {
	case <-sub.Channel():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("no sample after fault cleared")
	}
}

func TestPrintFlagEmitsRows(t *testing.T) {
	sink := &syncBuffer{}
	e, sub := newTestEngine(t, &fakeDevice{ready: true}, sink)
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	e.SetPrintEnabled(true)
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-sub.Channel():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("no sample")
	}
	_ = e.Stop()
	time.Sleep(30 * time.Millisecond)

	row := sink.String()
	if !strings.Contains(row, ",") || strings.Count(strings.Split(row, "\n")[0], ",") != 5 {
		t.Fatalf("expected six comma-separated values, got %q", row)
	}

	// Disabling the flag stops rows but not publishing.
	e.SetPrintEnabled(false)
	before := len(sink.String())
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-sub.Channel():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("no sample with print disabled")
	}
	_ = e.Stop()
	time.Sleep(30 * time.Millisecond)
	if len(sink.String()) != before {
		t.Fatal("diagnostic rows written while print disabled")
	}
}
