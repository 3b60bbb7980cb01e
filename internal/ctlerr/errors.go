// Package ctlerr defines the error taxonomy shared by every device-control
// component: transport disconnection, controller-level rejections, motor
// faults, unknown status digits, load-cell unavailability, and a lost bag.
package ctlerr

import "errors"

var (
	// ErrDisconnected is returned to every outstanding caller of a
	// MotionClient when its serve loop exits, and to any caller who
	// submits a request after the loop has already exited.
	ErrDisconnected = errors.New("motion client disconnected")

	// ErrMotorFaulted is returned by Enable when the motor's terminal
	// status is Faulted.
	ErrMotorFaulted = errors.New("motor faulted")

	// ErrUnknownStatus is returned when a GS reply carries a status
	// digit outside '0'..'4'.
	ErrUnknownStatus = errors.New("unknown motor status")

	// ErrHardwareUnavailable is returned when a load-cell driver fails
	// to open; it aborts the owning ScaleActor.
	ErrHardwareUnavailable = errors.New("hardware unavailable")

	// ErrLostBag is an application-level sensor event: a photoeye
	// reports bag-absent while a dispense is in progress.
	ErrLostBag = errors.New("bag lost during dispense")
)

// ControllerRejected wraps the raw reply bytes of a command the motion
// controller refused (status byte '?').
type ControllerRejected struct {
	Reply []byte
}

func (e *ControllerRejected) Error() string {
	return "controller rejected command: " + formatReply(e.Reply)
}

func formatReply(b []byte) string {
	out := make([]byte, 0, len(b)*4)
	for _, c := range b {
		if c >= 0x20 && c < 0x7f {
			out = append(out, c)
		} else {
			out = append(out, '\\', 'x', hexDigit(c>>4), hexDigit(c&0xf))
		}
	}
	return string(out)
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + (n - 10)
}

// IsControllerRejected reports whether err is (or wraps) a
// ControllerRejected.
func IsControllerRejected(err error) bool {
	var cr *ControllerRejected
	return errors.As(err, &cr)
}
