package types

import "math"

// -----------------------------------------------------------------------------
// Button events
// -----------------------------------------------------------------------------

// ButtonEvent is a disambiguated button gesture. Values are copied onto the
// bus at publish time and live only for one delivery.
type ButtonEvent uint8

const (
	SinglePress ButtonEvent = iota
	DoublePress
	LongPress
)

func (e ButtonEvent) String() string {
	switch e {
	case SinglePress:
		return "single_press"
	case DoublePress:
		return "double_press"
	case LongPress:
		return "long_press"
	}
	return "unknown"
}

// -----------------------------------------------------------------------------
// Inertial samples
// -----------------------------------------------------------------------------

// InertialSample is one 6-axis reading in physical units. Immutable after
// construction; the bus copies it to each observer.
type InertialSample struct {
	AccelX float64 `json:"ax"` // m/s^2
	AccelY float64 `json:"ay"`
	AccelZ float64 `json:"az"`
	GyroX  float64 `json:"gx"` // rad/s
	GyroY  float64 `json:"gy"`
	GyroZ  float64 `json:"gz"`
}

// -----------------------------------------------------------------------------
// Classification results
// -----------------------------------------------------------------------------

// InvalidClass is the sentinel "no class published yet" value.
const InvalidClass uint16 = math.MaxUint16

// ClassificationResult is published on class change only.
type ClassificationResult struct {
	PredictedClass uint16  `json:"class"`
	Confidence     float64 `json:"confidence"` // probability in [0,1]
	TimestampMS    int64   `json:"ts_ms"`
}

// ClassNames maps model class ids to display names.
var ClassNames = [...]string{
	"Idle", "Shaking", "Impact", "Free Fall", "Carrying", "in Car", "Placed",
}

// ClassName returns a display name for a class id, or "?" when out of range.
func ClassName(id uint16) string {
	if int(id) >= len(ClassNames) {
		return "?"
	}
	return ClassNames[id]
}
