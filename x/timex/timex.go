package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// PeriodFromHz returns the sampling period for a requested frequency,
// truncated to whole milliseconds. freqHz==0 is coerced to 1 to avoid
// division by zero.
func PeriodFromHz(freqHz int) time.Duration {
	if freqHz <= 0 {
		freqHz = 1
	}
	ms := 1000 / freqHz
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}
