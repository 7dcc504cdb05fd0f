// Package rplidar reads scans from a Slamtec RPLIDAR over its serial protocol.
package rplidar

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/eurobot-nav/navcore/lidar"
	"github.com/eurobot-nav/navcore/serial"
)

const (
	syncByte   = 0xA5
	cmdScan    = 0x20
	cmdStop    = 0x25
	packetSize = 5

	defaultBaudRate    = 115200
	defaultReadTimeout = time.Second
	// a rotation is about 360 packets at the usual rate; anything past this means
	// the start flag is never arriving
	maxPacketsPerScan = 8192
)

var scanDescriptor = []byte{syncByte, 0x5A, 0x05, 0x00, 0x00, 0x40, 0x81}

// ErrBadDescriptor means the device did not acknowledge the scan request.
var ErrBadDescriptor = errors.New("unexpected scan response descriptor")

// dtrSetter is implemented by real serial ports. On the usual USB adapter DTR low
// powers the motor.
type dtrSetter interface {
	SetDTR(bool) error
}

// Device is a scanning RPLIDAR.
type Device struct {
	mu       sync.Mutex
	port     io.ReadWriteCloser
	reader   *bufio.Reader
	scanning bool
	// set once a rotation start flag has been seen
	inRotation bool
	// the first beam of the next rotation, read while finishing the previous one
	pending *lidar.Measurement
	logger  golog.Logger
}

// Open connects to the scanner at path and spins up its motor.
func Open(path string, baudRate int, logger golog.Logger) (*Device, error) {
	if baudRate == 0 {
		baudRate = defaultBaudRate
	}
	port, err := serial.Open(path, serial.Options{BaudRate: baudRate, ReadTimeout: defaultReadTimeout})
	if err != nil {
		return nil, err
	}
	if d, ok := port.(dtrSetter); ok {
		if err := d.SetDTR(false); err != nil {
			return nil, multierr.Combine(errors.Wrap(err, "failed to start lidar motor"), port.Close())
		}
	}
	return NewDevice(port, logger), nil
}

// NewDevice wraps an already open port.
func NewDevice(port io.ReadWriteCloser, logger golog.Logger) *Device {
	return &Device{port: port, reader: bufio.NewReader(port), logger: logger}
}

func (d *Device) startScan() error {
	if _, err := d.port.Write([]byte{syncByte, cmdScan}); err != nil {
		return errors.Wrap(err, "failed to request scan")
	}
	desc := make([]byte, len(scanDescriptor))
	if _, err := io.ReadFull(d.reader, desc); err != nil {
		return errors.Wrap(err, "failed to read scan descriptor")
	}
	if !bytes.Equal(desc, scanDescriptor) {
		return errors.Wrapf(ErrBadDescriptor, "% x", desc)
	}
	d.scanning = true
	return nil
}

// Scan returns the next full rotation.
func (d *Device) Scan(ctx context.Context) (lidar.Measurements, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.scanning {
		if err := d.startScan(); err != nil {
			return nil, err
		}
	}

	var out lidar.Measurements
	if d.pending != nil {
		out = append(out, d.pending)
		d.pending = nil
	}
	for i := 0; i < maxPacketsPerScan; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, start, err := d.readPacket()
		if err != nil {
			d.scanning = false
			d.inRotation = false
			return nil, err
		}
		if start {
			if d.inRotation {
				d.pending = m
				return out, nil
			}
			d.inRotation = true
		}
		if d.inRotation && m != nil {
			out = append(out, m)
		}
	}
	return nil, errors.New("no rotation start seen")
}

// readPacket returns the packet's beam, or nil for an invalid reading, and whether it
// starts a new rotation. It resynchronizes on malformed packets.
func (d *Device) readPacket() (*lidar.Measurement, bool, error) {
	for {
		b, err := d.reader.Peek(packetSize)
		if err != nil {
			return nil, false, errors.Wrap(err, "failed to read scan packet")
		}
		start, ok := checkPacket(b)
		if !ok {
			if _, err := d.reader.Discard(1); err != nil {
				return nil, false, err
			}
			continue
		}
		m := DecodePacket(b)
		if _, err := d.reader.Discard(packetSize); err != nil {
			return nil, false, err
		}
		return m, start, nil
	}
}

func checkPacket(b []byte) (bool, bool) {
	start := b[0]&0x1 == 1
	inverse := b[0]&0x2 == 2
	if start == inverse || b[1]&0x1 != 1 {
		return false, false
	}
	return start, true
}

// DecodePacket decodes one 5 byte scan packet. Beams with zero quality or range are nil.
func DecodePacket(b []byte) *lidar.Measurement {
	quality := b[0] >> 2
	angleQ6 := binary.LittleEndian.Uint16(b[1:3]) >> 1
	distQ2 := binary.LittleEndian.Uint16(b[3:5])
	if quality == 0 || distQ2 == 0 {
		return nil
	}
	return lidar.NewMeasurement(float64(angleQ6)/64, float64(distQ2)/4)
}

// Close stops scanning, stops the motor and closes the port.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if _, werr := d.port.Write([]byte{syncByte, cmdStop}); werr != nil {
		err = multierr.Append(err, werr)
	}
	if ds, ok := d.port.(dtrSetter); ok {
		err = multierr.Append(err, ds.SetDTR(true))
	}
	return multierr.Append(err, d.port.Close())
}
