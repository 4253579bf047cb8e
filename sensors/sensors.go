// Package sensors holds the hardware boundary of the control plane: the
// inertial device consumed by the sampling engine and the button pin watcher
// feeding the gesture detector.
package sensors

import "motionsense-go/types"

// Device is the inertial sensor boundary. The sampling engine owns unit
// conversion policy but delegates raw access and rate programming here.
type Device interface {
	// Ready reports whether the device answered probing at init time.
	Ready() bool
	// SetAccelRate programs the accelerometer output data rate.
	SetAccelRate(hz int) error
	// SetGyroRate programs the gyroscope output data rate. Callers must treat
	// a failure after a successful SetAccelRate as "rate not guaranteed
	// consistent" and may retry both.
	SetGyroRate(hz int) error
	// Read fetches one raw 6-axis reading and converts it to physical units
	// (m/s^2, rad/s).
	Read() (types.InertialSample, error)
}
