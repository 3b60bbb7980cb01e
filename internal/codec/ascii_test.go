package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeID(t *testing.T) {
	require.Equal(t, byte('0'), EncodeID(0))
	require.Equal(t, byte('9'), EncodeID(9))
}

func TestEncodeSignedRoundTrip(t *testing.T) {
	cases := []int64{0, 1, 9, 10, 2300, 32760, -1, -3400, -32760}
	for _, c := range cases {
		encoded := EncodeSigned(c)
		got := ParseSigned(encoded)
		assert.Equalf(t, c, got, "round trip for %d via %q", c, encoded)
	}
}

func TestParseSignedIgnoresTrailingGarbage(t *testing.T) {
	assert.Equal(t, int64(-3400), ParseSigned([]byte("-3400\r")))
	assert.Equal(t, int64(2300), ParseSigned([]byte("2300")))
	assert.Equal(t, int64(0), ParseSigned([]byte("\r")))
	assert.Equal(t, int64(0), ParseSigned(nil))
}

func TestMakePrefix(t *testing.T) {
	p := MakePrefix(TypeMotor, 3)
	assert.Equal(t, [3]byte{STX, 'M', '3'}, p)
}

func TestBuildFrame(t *testing.T) {
	prefix := MakePrefix(TypeOutput, 1)
	frame := BuildFrame(prefix, EncodeSigned(-120))
	require.Equal(t, []byte{STX, 'O', '1', '-', '1', '2', '0', CR}, frame)
}

func TestReplyStatusAndPayload(t *testing.T) {
	reply := []byte{STX, 'M', '0', '_'}
	assert.Equal(t, StatusOK, ReplyStatus(reply))
	assert.Equal(t, []byte{StatusOK}, ReplyPayload(reply))

	query := []byte{STX, 'M', '0', '-', '4', '2', CR}
	assert.Equal(t, int64(-42), ParseSigned(ReplyPayload(query)))
}

func TestReplyStatusShortBuffer(t *testing.T) {
	assert.Equal(t, byte(0), ReplyStatus([]byte{STX, 'M'}))
}
