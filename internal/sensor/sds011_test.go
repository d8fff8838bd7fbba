package sensor_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/aqimon/internal/errors"
	"codeberg.org/mutker/aqimon/internal/logger"
	"codeberg.org/mutker/aqimon/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort replays canned response bytes and records every write. A read
// on an empty buffer returns 0 bytes, the way a serial read timeout does.
type fakePort struct {
	in       bytes.Buffer
	writes   [][]byte
	maxChunk int
	closed   bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.in.Len() == 0 {
		return 0, nil
	}
	if p.maxChunk > 0 && len(b) > p.maxChunk {
		b = b[:p.maxChunk]
	}
	return p.in.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (*fakePort) SetReadTimeout(time.Duration) error {
	return nil
}

func (p *fakePort) respond(frames ...[]byte) *fakePort {
	for _, f := range frames {
		p.in.Write(f)
	}
	return p
}

func generalFrame(cmd byte) []byte {
	f := []byte{0xAA, 0xC5, cmd, 0x01, 0x01, 0x00, 0xA1, 0x60, 0x00, 0xAB}
	f[8] = sum(f[2:8])
	return f
}

func queryFrame(pm25, pm10 uint16) []byte {
	f := []byte{0xAA, 0xC0, byte(pm25), byte(pm25 >> 8), byte(pm10), byte(pm10 >> 8), 0xA1, 0x60, 0x00, 0xAB}
	f[8] = sum(f[2:8])
	return f
}

func sum(b []byte) byte {
	var s byte
	for _, v := range b {
		s += v
	}
	return s
}

func connected(p *fakePort) *fakePort {
	return p.respond(generalFrame(0x06), generalFrame(0x02))
}

func newSource(ports ...*fakePort) (*sensor.SDS011Source, *int) {
	opens := 0
	opener := func(string) (sensor.Port, error) {
		if opens >= len(ports) {
			return nil, assert.AnError
		}
		p := ports[opens]
		opens++
		return p, nil
	}

	src := sensor.NewSDS011(sensor.SDS011Config{Path: "/dev/ttyUSB0"}, logger.Nop(),
		sensor.WithPortOpener(opener))

	return src, &opens
}

func TestSDS011Read(t *testing.T) {
	port := connected(&fakePort{}).respond(queryFrame(123, 456))
	src, opens := newSource(port)

	sample, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 12.3, sample.PM25, 1e-9)
	assert.InDelta(t, 45.6, sample.PM10, 1e-9)
	assert.Equal(t, 1, *opens)
	assert.Equal(t, 1, src.Precision())

	require.Len(t, port.writes, 3)
	assert.Equal(t, byte(0x06), port.writes[0][2], "wake first")
	assert.Equal(t, byte(0x02), port.writes[1][2], "then query mode")
	assert.Equal(t, byte(0x04), port.writes[2][2], "then query")
}

func TestSDS011CommandFrame(t *testing.T) {
	port := connected(&fakePort{}).respond(queryFrame(0, 0))
	src, _ := newSource(port)

	_, err := src.Read(context.Background())
	require.NoError(t, err)

	want := []byte{
		0xAA, 0xB4,
		0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF,
		0x02, 0xAB,
	}
	assert.Equal(t, want, port.writes[2])

	wantMode := []byte{
		0xAA, 0xB4,
		0x02, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF,
		0x02, 0xAB,
	}
	assert.Equal(t, wantMode, port.writes[1])
}

func TestSDS011KeepsPortOpen(t *testing.T) {
	port := connected(&fakePort{}).respond(queryFrame(100, 200), queryFrame(110, 210))
	src, opens := newSource(port)

	_, err := src.Read(context.Background())
	require.NoError(t, err)

	sample, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 11.0, sample.PM25, 1e-9)
	assert.Equal(t, 1, *opens)
	assert.Len(t, port.writes, 4)
}

func TestSDS011ChunkedFrames(t *testing.T) {
	port := connected(&fakePort{maxChunk: 3}).respond(queryFrame(55, 77))
	src, _ := newSource(port)

	sample, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 5.5, sample.PM25, 1e-9)
	assert.InDelta(t, 7.7, sample.PM10, 1e-9)
}

func TestSDS011Faults(t *testing.T) {
	badChecksum := queryFrame(10, 20)
	badChecksum[8]++

	badTail := queryFrame(10, 20)
	badTail[9] = 0x00

	tests := []struct {
		name     string
		response []byte
		code     errors.ErrorCode
	}{
		{"checksum mismatch", badChecksum, sensor.ErrChecksumMismatch},
		{"wrong wrapper", badTail, sensor.ErrIncorrectWrapper},
		{"wrong response type", generalFrame(0x04), sensor.ErrIncorrectCommand},
		{"no response", nil, sensor.ErrIncompleteRead},
		{"short response", queryFrame(10, 20)[:6], sensor.ErrIncompleteRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := connected(&fakePort{}).respond(tt.response)
			src, _ := newSource(port)

			_, err := src.Read(context.Background())
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrHardwareFault))
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
			assert.True(t, port.closed, "port must be dropped after a fault")
		})
	}
}

func TestSDS011ReconnectsAfterFault(t *testing.T) {
	first := connected(&fakePort{})
	second := connected(&fakePort{}).respond(queryFrame(80, 90))
	src, opens := newSource(first, second)

	_, err := src.Read(context.Background())
	require.Error(t, err)

	sample, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 8.0, sample.PM25, 1e-9)
	assert.Equal(t, 2, *opens)
}

func TestSDS011OpenFailure(t *testing.T) {
	src, _ := newSource()

	_, err := src.Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrHardwareFault))
	assert.True(t, errors.HasCode(err, sensor.ErrPortOpenFailed))
}

func TestSDS011Close(t *testing.T) {
	port := connected(&fakePort{}).respond(queryFrame(1, 2))
	src, _ := newSource(port)

	require.NoError(t, src.Close(), "closing an unopened source is a no-op")

	_, err := src.Read(context.Background())
	require.NoError(t, err)
	require.NoError(t, src.Close())
	assert.True(t, port.closed)
}
