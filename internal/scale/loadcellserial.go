package scale

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	goserial "github.com/daedaluz/goserial"
)

// SerialLoadCell is a LoadCellDriver backed by a load-cell amplifier
// reachable over a serial line. The amplifier streams ASCII lines of the
// form "<serial>:<channel>:<ratio>\n"; only lines addressed to this
// driver's configured serial/channel are consumed.
type SerialLoadCell struct {
	path     string
	serial   int32
	channel  int32
	interval time.Duration

	port   *goserial.Port
	reader *bufio.Reader
}

// NewSerialLoadCell builds a driver for the amplifier reachable at path
// (e.g. "/dev/ttyUSB0"). SetSerialNumber/SetChannel must be called before
// OpenWait.
func NewSerialLoadCell(path string) *SerialLoadCell {
	return &SerialLoadCell{path: path, interval: minDriverInterval}
}

// minDriverInterval is the amplifier's fastest supported sample rate.
const minDriverInterval = 10 * time.Millisecond

func (s *SerialLoadCell) SetSerialNumber(serial int32)   { s.serial = serial }
func (s *SerialLoadCell) SetChannel(channel int32)       { s.channel = channel }
func (s *SerialLoadCell) MinDataInterval() time.Duration { return minDriverInterval }

func (s *SerialLoadCell) SetDataInterval(d time.Duration) {
	if d < minDriverInterval {
		d = minDriverInterval
	}
	s.interval = d
}

// OpenWait opens the serial line and blocks until the first frame
// addressed to this driver's serial/channel arrives, or timeout elapses.
func (s *SerialLoadCell) OpenWait(timeout time.Duration) error {
	opts := goserial.NewOptions().SetReadTimeout(timeout)
	port, err := goserial.Open(s.path, opts)
	if err != nil {
		return fmt.Errorf("open serial load cell %s: %w", s.path, err)
	}
	s.port = port
	s.reader = bufio.NewReader(port)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := s.VoltageRatio(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("serial load cell %s: no frame for serial=%d channel=%d within %s", s.path, s.serial, s.channel, timeout)
}

// VoltageRatio reads and parses the next frame addressed to this
// driver's configured serial/channel, skipping frames for other cells on
// the same line.
func (s *SerialLoadCell) VoltageRatio() (float64, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("read serial load cell %s: %w", s.path, err)
		}
		parts := strings.Split(strings.TrimSpace(line), ":")
		if len(parts) != 3 {
			continue
		}
		serial, err := strconv.ParseInt(parts[0], 10, 32)
		if err != nil {
			continue
		}
		channel, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil {
			continue
		}
		if int32(serial) != s.serial || int32(channel) != s.channel {
			continue
		}
		ratio, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, fmt.Errorf("parse voltage ratio from %q: %w", line, err)
		}
		return ratio, nil
	}
}

// Close releases the underlying serial port.
func (s *SerialLoadCell) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
