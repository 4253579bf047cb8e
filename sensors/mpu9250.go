package sensors

import (
	"fmt"
	"log"
	"math"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"motionsense-go/errcode"
	"motionsense-go/types"
)

// Scale factors at the ranges programmed below (±2g, ±250°/s).
const (
	accelLSBPerG   = 16384.0
	gyroLSBPerDps  = 131.0
	gravity        = 9.80665
	degToRad       = math.Pi / 180.0
	internalRateHz = 1000 // MPU-9250 internal rate with DLPF enabled
)

// InitHost initialises the periph.io host drivers. Must be called once
// before NewMPU9250.
func InitHost() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	return nil
}

// MPU9250 implements Device on top of the periph.io MPU-9250 driver over SPI.
type MPU9250 struct {
	imu   *mpu9250.MPU9250
	ready bool
}

// NewMPU9250 opens and configures the IMU on the given SPI device with the
// given chip-select pin.
func NewMPU9250(spiDev, csPin string) (*MPU9250, error) {
	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, &errcode.E{C: errcode.DeviceUnavailable, Op: "mpu9250", Msg: "CS pin " + csPin + " not found"}
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, &errcode.E{C: errcode.DeviceUnavailable, Op: "mpu9250", Msg: "SPI transport", Err: err}
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, &errcode.E{C: errcode.DeviceUnavailable, Op: "mpu9250", Msg: "device creation", Err: err}
	}
	if err := imu.Init(); err != nil {
		return nil, &errcode.E{C: errcode.DeviceUnavailable, Op: "mpu9250", Msg: "initialization", Err: err}
	}

	// Fixed full-scale ranges; the conversion constants above assume these.
	if err := imu.SetAccelRange(0); err != nil { // ±2g
		return nil, fmt.Errorf("mpu9250: set accel range: %w", err)
	}
	if err := imu.SetGyroRange(0); err != nil { // ±250°/s
		return nil, fmt.Errorf("mpu9250: set gyro range: %w", err)
	}

	log.Printf("sensors: MPU-9250 ready on %s (cs=%s)", spiDev, csPin)
	return &MPU9250{imu: imu, ready: true}, nil
}

func (d *MPU9250) Ready() bool { return d.ready }

// SetAccelRate programs the accelerometer DLPF and the shared sample rate
// divider for the requested output rate.
func (d *MPU9250) SetAccelRate(hz int) error {
	if err := d.imu.SetAccelDLPF(dlpfFor(hz)); err != nil {
		return &errcode.E{C: errcode.RateRejected, Op: "accel", Err: err}
	}
	if err := d.imu.SetSampleRateDivider(dividerFor(hz)); err != nil {
		return &errcode.E{C: errcode.RateRejected, Op: "accel", Err: err}
	}
	return nil
}

// SetGyroRate programs the gyroscope DLPF and the shared sample rate divider.
func (d *MPU9250) SetGyroRate(hz int) error {
	if err := d.imu.SetDLPFMode(dlpfFor(hz)); err != nil {
		return &errcode.E{C: errcode.RateRejected, Op: "gyro", Err: err}
	}
	if err := d.imu.SetSampleRateDivider(dividerFor(hz)); err != nil {
		return &errcode.E{C: errcode.RateRejected, Op: "gyro", Err: err}
	}
	return nil
}

// Read fetches all six axes and converts raw counts to physical units.
func (d *MPU9250) Read() (types.InertialSample, error) {
	ax, err := d.imu.GetAccelerationX()
	if err != nil {
		return types.InertialSample{}, fmt.Errorf("mpu9250 accel X: %w", err)
	}
	ay, err := d.imu.GetAccelerationY()
	if err != nil {
		return types.InertialSample{}, fmt.Errorf("mpu9250 accel Y: %w", err)
	}
	az, err := d.imu.GetAccelerationZ()
	if err != nil {
		return types.InertialSample{}, fmt.Errorf("mpu9250 accel Z: %w", err)
	}
	gx, err := d.imu.GetRotationX()
	if err != nil {
		return types.InertialSample{}, fmt.Errorf("mpu9250 gyro X: %w", err)
	}
	gy, err := d.imu.GetRotationY()
	if err != nil {
		return types.InertialSample{}, fmt.Errorf("mpu9250 gyro Y: %w", err)
	}
	gz, err := d.imu.GetRotationZ()
	if err != nil {
		return types.InertialSample{}, fmt.Errorf("mpu9250 gyro Z: %w", err)
	}

	return types.InertialSample{
		AccelX: float64(ax) / accelLSBPerG * gravity,
		AccelY: float64(ay) / accelLSBPerG * gravity,
		AccelZ: float64(az) / accelLSBPerG * gravity,
		GyroX:  float64(gx) / gyroLSBPerDps * degToRad,
		GyroY:  float64(gy) / gyroLSBPerDps * degToRad,
		GyroZ:  float64(gz) / gyroLSBPerDps * degToRad,
	}, nil
}

// dividerFor maps an output rate to the MPU sample-rate divider
// (output = internal / (1 + div)).
func dividerFor(hz int) byte {
	if hz <= 0 {
		hz = 1
	}
	div := internalRateHz/hz - 1
	if div < 0 {
		div = 0
	}
	if div > 255 {
		div = 255
	}
	return byte(div)
}

// dlpfFor picks a low-pass bandwidth below the Nyquist rate of the
// requested output rate.
func dlpfFor(hz int) byte {
	switch {
	case hz >= 400:
		return 1 // ~184 Hz
	case hz >= 200:
		return 2 // ~92 Hz
	case hz >= 100:
		return 3 // ~41 Hz
	case hz >= 50:
		return 4 // ~20 Hz
	default:
		return 5 // ~10 Hz
	}
}
