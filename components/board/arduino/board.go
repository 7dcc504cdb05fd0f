// Package arduino talks to the drive board over its serial line protocol.
//
// The board streams telemetry lines of the form
//
//	l<encL>r<encR>x<x>y<y>t<theta>
//
// and accepts `fwdL;revL;fwdR;revR` PWM lines, `r` to zero the encoder counters and
// `s<x>;<y>;<theta>` to set its odometry pose.
package arduino

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/eurobot-nav/navcore/components/board"
	"github.com/eurobot-nav/navcore/serial"
)

// Config describes how to reach the board.
type Config struct {
	Path          string `json:"path"`
	BaudRate      int    `json:"baud_rate,omitempty"`
	ReadTimeoutMS int    `json:"read_timeout_ms,omitempty"`
	ResetOnOpen   bool   `json:"reset_on_open,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.Path == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "path")
	}
	if c.BaudRate < 0 {
		return goutils.NewConfigValidationError(path, errors.New("baud_rate must not be negative"))
	}
	return nil
}

const (
	defaultBaudRate    = 115200
	defaultReadTimeout = 3 * time.Second
	// lines to read past before giving up on finding a pose line
	maxSkippedLines = 32
)

var poseLine = regexp.MustCompile(`^l(-?\d+)r(-?\d+)x(-?\d+)y(-?\d+)t(-?\d*\.?\d*)$`)

// flusher is implemented by real serial ports.
type flusher interface {
	ResetInputBuffer() error
}

// Board is a board.Transport over a serial line.
type Board struct {
	mu     sync.Mutex
	port   io.ReadWriteCloser
	reader *bufio.Reader
	logger golog.Logger
}

var _ board.Transport = (*Board)(nil)

// NewBoard opens the serial device described by cfg.
func NewBoard(ctx context.Context, cfg Config, logger golog.Logger) (*Board, error) {
	opts := serial.Options{
		BaudRate:    cfg.BaudRate,
		ReadTimeout: time.Duration(cfg.ReadTimeoutMS) * time.Millisecond,
		ResetOnOpen: cfg.ResetOnOpen,
	}
	if opts.BaudRate == 0 {
		opts.BaudRate = defaultBaudRate
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	port, err := serial.Open(cfg.Path, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, multierrClose(port, err)
	}
	logger.Infow("opened drive board", "path", cfg.Path, "baud", opts.BaudRate)
	return NewBoardFromPort(port, logger), nil
}

// NewBoardFromPort wraps an already open port.
func NewBoardFromPort(port io.ReadWriteCloser, logger golog.Logger) *Board {
	return &Board{port: port, reader: bufio.NewReader(port), logger: logger}
}

// GetPose drops stale input and returns the next complete pose line.
func (b *Board) GetPose(ctx context.Context) (board.PoseReading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if f, ok := b.port.(flusher); ok {
		if err := f.ResetInputBuffer(); err != nil {
			return board.PoseReading{}, board.NewTransportError("get pose", err)
		}
		b.reader.Reset(b.port)
	}

	for i := 0; i < maxSkippedLines; i++ {
		if err := ctx.Err(); err != nil {
			return board.PoseReading{}, err
		}
		line, err := b.reader.ReadString('\n')
		if err != nil {
			return board.PoseReading{}, board.NewTransportError("get pose", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || line[0] != 'l' {
			continue
		}
		reading, err := ParsePoseLine(line)
		if err != nil {
			b.logger.Debugw("skipping malformed pose line", "line", line, "error", err)
			continue
		}
		return reading, nil
	}
	return board.PoseReading{}, board.NewTransportError("get pose",
		errors.Errorf("no pose line in %d lines", maxSkippedLines))
}

// SendPWM writes one PWM command line.
func (b *Board) SendPWM(ctx context.Context, pwm [2]uint8, dir [2]int) error {
	return b.write(ctx, "send pwm", EncodePWM(pwm, dir))
}

// ResetPose zeroes the encoder counters.
func (b *Board) ResetPose(ctx context.Context) error {
	return b.write(ctx, "reset pose", "r\n")
}

// SetPose overwrites the board's odometry.
func (b *Board) SetPose(ctx context.Context, x, y, theta float64) error {
	cmd := fmt.Sprintf("s%d;%d;%s\n", int64(x), int64(y), strconv.FormatFloat(theta, 'f', -1, 64))
	return b.write(ctx, "set pose", cmd)
}

// Close stops the wheels and closes the port.
func (b *Board) Close(ctx context.Context) error {
	err := b.SendPWM(ctx, [2]uint8{}, [2]int{})
	b.mu.Lock()
	defer b.mu.Unlock()
	return multierrClose(b.port, err)
}

func (b *Board) write(ctx context.Context, op, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := io.WriteString(b.port, line); err != nil {
		return board.NewTransportError(op, err)
	}
	return nil
}

// EncodePWM renders a command as the four per-direction duty values the board expects.
func EncodePWM(pwm [2]uint8, dir [2]int) string {
	var vals [2][2]uint8
	for k := range pwm {
		switch dir[k] {
		case 1:
			vals[k] = [2]uint8{pwm[k], 0}
		case -1:
			vals[k] = [2]uint8{0, pwm[k]}
		}
	}
	return fmt.Sprintf("%d;%d;%d;%d\n", vals[0][0], vals[0][1], vals[1][0], vals[1][1])
}

// ParsePoseLine parses one telemetry line.
func ParsePoseLine(line string) (board.PoseReading, error) {
	m := poseLine.FindStringSubmatch(line)
	if m == nil {
		return board.PoseReading{}, errors.Errorf("could not parse pose line %q", line)
	}
	ints := make([]int64, 4)
	for i := range ints {
		v, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return board.PoseReading{}, errors.Wrapf(err, "could not parse pose line %q", line)
		}
		ints[i] = v
	}
	theta, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return board.PoseReading{}, errors.Wrapf(err, "could not parse pose line %q", line)
	}
	return board.PoseReading{
		EncLeft:  ints[0],
		EncRight: ints[1],
		X:        float64(ints[2]),
		Y:        float64(ints[3]),
		Theta:    theta,
	}, nil
}

func multierrClose(c io.Closer, err error) error {
	return multierr.Combine(err, c.Close())
}
