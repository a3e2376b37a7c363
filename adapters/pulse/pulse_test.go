package pulse

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func pcmBytes(values ...int16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func TestRingWrapsAndConvertsSamples(t *testing.T) {
	r := newRing(4)

	n, err := r.onPCM(pcmBytes(32767, -32767, 0, 16384, 32767, 0))
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.Equal(t, 2, r.Position())

	dst := make([]float32, 8)
	require.Equal(t, 4, r.ReadAt(dst, 0))
	require.InDelta(t, 1.0, dst[0], 1e-6)
	require.InDelta(t, 0.0, dst[1], 1e-6)
	require.InDelta(t, 0.0, dst[2], 1e-6)
	require.InDelta(t, 0.5, dst[3], 1e-3)

	require.Equal(t, 2, r.ReadAt(dst, 2))
	require.Equal(t, 0, r.ReadAt(dst, 4))
	require.Equal(t, 0, r.ReadAt(dst, -1))
}

func TestRingKeepsSplitFrame(t *testing.T) {
	r := newRing(4)
	data := pcmBytes(-32767, 32767)

	_, err := r.onPCM(data[:3])
	require.NoError(t, err)
	require.Equal(t, 1, r.Position())

	_, err = r.onPCM(data[3:])
	require.NoError(t, err)
	require.Equal(t, 2, r.Position())

	dst := make([]float32, 2)
	r.ReadAt(dst, 0)
	require.InDelta(t, -1.0, dst[0], 1e-6)
	require.InDelta(t, 1.0, dst[1], 1e-6)
}

func TestRingStopsAfterClose(t *testing.T) {
	r := newRing(4)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err := r.onPCM(pcmBytes(1))
	require.Error(t, err)
	require.Equal(t, 0, r.Position())
}

func TestSampleReaderEndsWithData(t *testing.T) {
	r := newSampleReader([]float32{1, -1, 0.5})
	buf := make([]int16, 2)

	n, err := r.read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []int16{32767, -32767}, buf)

	n, err = r.read(buf)
	require.Equal(t, pulse.EndOfData, err)
	require.Equal(t, 1, n)
	require.Equal(t, int16(16384), buf[0])

	n, err = r.read(buf)
	require.Equal(t, pulse.EndOfData, err)
	require.Equal(t, 0, n)
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	plugged := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, plugged, []sourcePort{{name: "line", available: 1}, {name: "mic", available: 2}})
	require.True(t, sourceAvailable(plugged))

	unplugged := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, unplugged, []sourcePort{{name: "mic", available: 1}})
	require.False(t, sourceAvailable(unplugged))
}

type sourcePort struct {
	name      string
	available uint32
}

// setSourcePorts fills the anonymous port struct slice of a reply
func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	sliceValue := reflect.MakeSlice(reflect.TypeOf(reply.Ports), len(ports), len(ports))
	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}
	reflect.ValueOf(reply).Elem().FieldByName("Ports").Set(sliceValue)
}
