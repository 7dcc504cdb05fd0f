// Package serial opens serial devices such as the drive board.
package serial

import (
	"io"
	"time"

	"github.com/pkg/errors"
	ser "go.bug.st/serial"
	goutils "go.viam.com/utils"
)

// Options to be passed to Open().
type Options struct {
	BaudRate    int
	DataBits    int
	StopBits    StopBits
	Parity      Parity
	ReadTimeout time.Duration
	// ResetOnOpen pulses DTR after opening, which reboots most Arduino boards,
	// and drops whatever the board buffered while it was starting.
	ResetOnOpen bool
}

// Parity describes a serial port parity setting.
type Parity int

const (
	// NoParity disable parity control (default).
	NoParity Parity = iota
	// OddParity enable odd-parity check.
	OddParity
	// EvenParity enable even-parity check.
	EvenParity
)

// StopBits describe a serial port stop bits setting.
type StopBits int

const (
	// OneStopBit sets 1 stop bit (default).
	OneStopBit StopBits = iota
	// OnePointFiveStopBits sets 1.5 stop bits.
	OnePointFiveStopBits
	// TwoStopBits sets 2 stop bits.
	TwoStopBits
)

// How long the board needs around a DTR reset.
var (
	resetLowTime  = time.Second
	resetBootTime = 2 * time.Second
)

// Open attempts to open a serial device on the given path. It's a variable
// in case you need to override it during tests.
var Open = func(devicePath string, options Options) (io.ReadWriteCloser, error) {
	dataBits := options.DataBits
	if dataBits == 0 {
		dataBits = 8
	}
	mode := &ser.Mode{
		BaudRate: options.BaudRate,
		Parity:   ser.Parity(options.Parity),
		DataBits: dataBits,
		StopBits: ser.StopBits(options.StopBits),
	}

	device, err := ser.Open(devicePath, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial device %q", devicePath)
	}
	if options.ReadTimeout > 0 {
		if err := device.SetReadTimeout(options.ReadTimeout); err != nil {
			goutils.UncheckedError(device.Close())
			return nil, err
		}
	}
	if options.ResetOnOpen {
		if err := resetBoard(device); err != nil {
			goutils.UncheckedError(device.Close())
			return nil, errors.Wrap(err, "failed to reset board")
		}
	}
	return device, nil
}

func resetBoard(port ser.Port) error {
	if err := port.SetDTR(false); err != nil {
		return err
	}
	time.Sleep(resetLowTime)
	if err := port.ResetInputBuffer(); err != nil {
		return err
	}
	if err := port.SetDTR(true); err != nil {
		return err
	}
	time.Sleep(resetBootTime)
	return nil
}
