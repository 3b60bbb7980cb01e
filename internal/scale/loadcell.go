// Package scale implements the ScaleActor: a dedicated worker goroutine
// that owns four blocking load-cell driver handles and answers weight
// queries — instantaneous, median-over-a-window, and per-cell median —
// without ever letting a caller block on the underlying hardware read
// directly.
package scale

import "time"

// LoadCellDriver is the blocking hardware interface this package
// consumes. A real implementation talks to an amplifier over serial;
// tests substitute a scripted fake.
type LoadCellDriver interface {
	SetSerialNumber(serial int32)
	SetChannel(channel int32)
	OpenWait(timeout time.Duration) error
	MinDataInterval() time.Duration
	SetDataInterval(d time.Duration)
	VoltageRatio() (float64, error)
}
