package sensor

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"codeberg.org/mutker/aqimon/internal/clock"
	"codeberg.org/mutker/aqimon/internal/errors"
	"codeberg.org/mutker/aqimon/internal/logger"
	"go.bug.st/serial"
)

// SDS011 wire protocol
const (
	frameHead  byte = 0xAA
	frameTail  byte = 0xAB
	submitType byte = 0xB4

	cmdReportingMode byte = 0x02
	cmdQuery         byte = 0x04
	cmdSleepWork     byte = 0x06

	respGeneral byte = 0xC5
	respQuery   byte = 0xC0

	opSet        byte = 0x01
	modeQuerying byte = 0x01
	stateWork    byte = 0x01

	commandDataLen = 15
	commandLen     = commandDataLen + 4
	responseLen    = 10

	sds011Precision    = 1
	defaultBaudRate    = 9600
	defaultReadTimeout = 2 * time.Second
)

// Port is the subset of a serial port the SDS011 driver needs.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// PortOpener opens the serial device at path.
type PortOpener func(path string) (Port, error)

// OpenSerial opens path as an 8N1 serial port at the SDS011's 9600 baud.
func OpenSerial(path string) (Port, error) {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: defaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}

	return port, nil
}

type SDS011Config struct {
	Path        string
	CommandWait time.Duration
	ReadTimeout time.Duration
}

// SDS011Source reads a Nova PM SDS011 sensor in query mode. The port is
// opened lazily and dropped after any failure, because the USB device goes
// away whenever the hub port is power cycled.
type SDS011Source struct {
	cfg    SDS011Config
	open   PortOpener
	sleep  clock.SleepFunc
	logger logger.Logger

	mu   sync.Mutex
	port Port
}

type SDS011Option func(*SDS011Source)

// WithPortOpener replaces the serial port implementation.
func WithPortOpener(open PortOpener) SDS011Option {
	return func(s *SDS011Source) {
		s.open = open
	}
}

func NewSDS011(cfg SDS011Config, log logger.Logger, opts ...SDS011Option) *SDS011Source {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}

	s := &SDS011Source{
		cfg:    cfg,
		open:   OpenSerial,
		sleep:  clock.Sleep,
		logger: log.WithComponent("sds011"),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *SDS011Source) Read(ctx context.Context) (RawSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		if err := s.connect(ctx); err != nil {
			s.reset()
			return RawSample{}, hardwareFault(err)
		}
	}

	sample, err := s.query(ctx)
	if err != nil {
		s.reset()
		return RawSample{}, hardwareFault(err)
	}

	return sample, nil
}

func (*SDS011Source) Precision() int {
	return sds011Precision
}

func (s *SDS011Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}

	err := s.port.Close()
	s.port = nil
	if err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

func (s *SDS011Source) connect(ctx context.Context) error {
	errFactory := errors.New()

	port, err := s.open(s.cfg.Path)
	if err != nil {
		return errFactory.Wrap(ErrPortOpenFailed, err).WithData(s.cfg.Path)
	}
	s.port = port

	if err := port.SetReadTimeout(s.cfg.ReadTimeout); err != nil {
		return errFactory.Wrap(ErrPortOpenFailed, err)
	}

	// Wake is fire-and-forget: in query mode the device answers, in active
	// mode it streams a data frame. Either way one frame is drained.
	if err := s.send(ctx, workCommand(true)); err != nil {
		return err
	}
	if _, err := s.readFrame(); err != nil {
		s.logger.Debug().Err(err).Msg("No response to wake command")
	}

	if err := s.send(ctx, queryModeCommand()); err != nil {
		return err
	}
	frame, err := s.readFrame()
	if err == nil {
		err = frame.verify(respGeneral, cmdReportingMode)
	}
	if err != nil {
		s.logger.Debug().Err(err).Msg("Reporting mode not confirmed")
	}

	s.logger.Debug().Str("path", s.cfg.Path).Msg("Sensor connected in query mode")

	return nil
}

func (s *SDS011Source) query(ctx context.Context) (RawSample, error) {
	if err := s.send(ctx, queryCommand()); err != nil {
		return RawSample{}, err
	}

	frame, err := s.readFrame()
	if err != nil {
		return RawSample{}, err
	}

	if err := frame.verify(respQuery, cmdQuery); err != nil {
		return RawSample{}, err
	}

	sample := frame.sample()
	s.logger.Debug().
		Float64("pm25", sample.PM25).
		Float64("pm10", sample.PM10).
		Msg("Sample read")

	return sample, nil
}

func (s *SDS011Source) send(ctx context.Context, data [commandDataLen]byte) error {
	if _, err := s.port.Write(commandFrame(data)); err != nil {
		return errors.New().Wrap(ErrPortWriteFailed, err)
	}

	return s.sleep(ctx, s.cfg.CommandWait)
}

func (s *SDS011Source) readFrame() (response, error) {
	errFactory := errors.New()

	var frame response
	n := 0
	for n < responseLen {
		m, err := s.port.Read(frame[n:])
		if err != nil {
			return frame, errFactory.Wrap(ErrPortReadFailed, err)
		}
		if m == 0 {
			return frame, errFactory.WithData(ErrIncompleteRead, n)
		}
		n += m
	}

	return frame, nil
}

func (s *SDS011Source) reset() {
	if s.port == nil {
		return
	}
	if err := s.port.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to close serial port")
	}
	s.port = nil
}

func commandFrame(data [commandDataLen]byte) []byte {
	frame := make([]byte, 0, commandLen)
	frame = append(frame, frameHead, submitType)
	frame = append(frame, data[:]...)
	frame = append(frame, checksum(data[:]), frameTail)

	return frame
}

func broadcast(cmd byte, args ...byte) [commandDataLen]byte {
	var data [commandDataLen]byte
	data[0] = cmd
	copy(data[1:], args)
	data[commandDataLen-2] = 0xFF
	data[commandDataLen-1] = 0xFF

	return data
}

func queryCommand() [commandDataLen]byte {
	return broadcast(cmdQuery)
}

func queryModeCommand() [commandDataLen]byte {
	return broadcast(cmdReportingMode, opSet, modeQuerying)
}

func workCommand(work bool) [commandDataLen]byte {
	state := byte(0)
	if work {
		state = stateWork
	}

	return broadcast(cmdSleepWork, opSet, state)
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}

	return sum
}

type response [responseLen]byte

func (r response) verify(respType, cmd byte) error {
	errFactory := errors.New()

	if r[0] != frameHead || r[responseLen-1] != frameTail {
		return errFactory.WithData(ErrIncorrectWrapper, r[:])
	}
	if want := checksum(r[2:8]); r[8] != want {
		return errFactory.WithData(ErrChecksumMismatch, struct{ Expected, Actual byte }{want, r[8]})
	}
	if r[1] != respType {
		return errFactory.WithData(ErrIncorrectCommand, struct{ Expected, Actual byte }{respType, r[1]})
	}
	// query responses carry data where other responses echo the command
	if respType != respQuery && r[2] != cmd {
		return errFactory.WithData(ErrIncorrectCmdCode, struct{ Expected, Actual byte }{cmd, r[2]})
	}

	return nil
}

func (r response) sample() RawSample {
	return RawSample{
		PM25: float64(binary.LittleEndian.Uint16(r[2:4])) / 10,
		PM10: float64(binary.LittleEndian.Uint16(r[4:6])) / 10,
	}
}
