// Package codec implements the pure, total byte-level functions for the
// motion controller's wire protocol: frame prefixes, signed-decimal ASCII
// encoding, and a tolerant reply parser. Nothing here touches the network.
package codec

// Frame type bytes.
const (
	TypeMotor   byte = 'M'
	TypeInput   byte = 'I'
	TypeOutput  byte = 'O'
	STX         byte = 0x02
	CR          byte = 0x0D
	StatusOK    byte = '_'
	StatusError byte = '?'
)

// EncodeID converts a single-digit sub-device id (0..9) into its ASCII
// digit byte.
func EncodeID(id uint8) byte {
	return id + 0x30
}

// EncodeSigned renders i as standard signed decimal ASCII: a leading '-'
// for negative values, no leading zeros, no leading '+'.
func EncodeSigned(i int64) []byte {
	if i == 0 {
		return []byte{'0'}
	}
	neg := i < 0
	u := uint64(i)
	if neg {
		u = uint64(-i)
	}
	var buf [20]byte
	pos := len(buf)
	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	out := make([]byte, len(buf)-pos)
	copy(out, buf[pos:])
	return out
}

// ParseSigned reads an optional leading '-' followed by the maximal run of
// ASCII digits, ignoring any trailing non-digit bytes (e.g. a terminating
// CR). An empty digit run yields 0. ParseSigned never fails.
func ParseSigned(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	i := 0
	neg := false
	if b[0] == '-' {
		neg = true
		i++
	}
	var v int64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			break
		}
		v = v*10 + int64(b[i]-'0')
	}
	if neg {
		v = -v
	}
	return v
}

// MakePrefix builds the 3-byte command prefix shared by every frame:
// [STX, typ, EncodeID(id)].
func MakePrefix(typ byte, id uint8) [3]byte {
	return [3]byte{STX, typ, EncodeID(id)}
}

// BuildFrame appends payload and a terminating CR to prefix, returning a
// complete command frame ready to write to the wire.
func BuildFrame(prefix [3]byte, payload []byte) []byte {
	frame := make([]byte, 0, len(prefix)+len(payload)+1)
	frame = append(frame, prefix[:]...)
	frame = append(frame, payload...)
	frame = append(frame, CR)
	return frame
}

// ReplyStatus returns the status byte at index 3 of a reply frame, or 0 if
// the reply is too short to carry one.
func ReplyStatus(reply []byte) byte {
	if len(reply) < 4 {
		return 0
	}
	return reply[3]
}

// ReplyPayload returns the bytes of reply starting at index 3 (the first
// payload byte for queries), suitable for ParseSigned.
func ReplyPayload(reply []byte) []byte {
	if len(reply) <= 3 {
		return nil
	}
	return reply[3:]
}
