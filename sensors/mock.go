package sensors

import (
	"math"
	"sync"
	"time"

	"motionsense-go/types"
)

// MockDevice generates smooth synthetic motion for bench runs without
// hardware. It accepts any rate and never fails unless told to.
type MockDevice struct {
	start time.Time

	mu       sync.Mutex
	accelHz  int
	gyroHz   int
	failRead error
}

func NewMockDevice() *MockDevice {
	return &MockDevice{start: time.Now(), accelHz: 100, gyroHz: 100}
}

func (m *MockDevice) Ready() bool { return true }

func (m *MockDevice) SetAccelRate(hz int) error {
	m.mu.Lock()
	m.accelHz = hz
	m.mu.Unlock()
	return nil
}

func (m *MockDevice) SetGyroRate(hz int) error {
	m.mu.Lock()
	m.gyroHz = hz
	m.mu.Unlock()
	return nil
}

// FailReads makes subsequent Read calls return err (nil restores normal
// operation).
func (m *MockDevice) FailReads(err error) {
	m.mu.Lock()
	m.failRead = err
	m.mu.Unlock()
}

func (m *MockDevice) Read() (types.InertialSample, error) {
	m.mu.Lock()
	err := m.failRead
	m.mu.Unlock()
	if err != nil {
		return types.InertialSample{}, err
	}

	t := time.Since(m.start).Seconds()
	return types.InertialSample{
		AccelX: 0.6 * math.Sin(t*2.1),
		AccelY: 0.4 * math.Cos(t*1.3),
		AccelZ: 9.81 + 0.2*math.Sin(t*0.7),
		GyroX:  0.05 * math.Sin(t),
		GyroY:  0.03 * math.Cos(t*0.9),
		GyroZ:  0.02 * math.Sin(t*1.7),
	}, nil
}
