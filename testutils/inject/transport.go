package inject

import (
	"context"

	"github.com/eurobot-nav/navcore/components/board"
)

// Transport is an injected board.Transport.
type Transport struct {
	board.Transport
	GetPoseFunc   func(ctx context.Context) (board.PoseReading, error)
	SendPWMFunc   func(ctx context.Context, pwm [2]uint8, dir [2]int) error
	ResetPoseFunc func(ctx context.Context) error
	SetPoseFunc   func(ctx context.Context, x, y, theta float64) error
}

// GetPose calls the injected GetPose or the real version.
func (t *Transport) GetPose(ctx context.Context) (board.PoseReading, error) {
	if t.GetPoseFunc == nil {
		return t.Transport.GetPose(ctx)
	}
	return t.GetPoseFunc(ctx)
}

// SendPWM calls the injected SendPWM or the real version.
func (t *Transport) SendPWM(ctx context.Context, pwm [2]uint8, dir [2]int) error {
	if t.SendPWMFunc == nil {
		return t.Transport.SendPWM(ctx, pwm, dir)
	}
	return t.SendPWMFunc(ctx, pwm, dir)
}

// ResetPose calls the injected ResetPose or the real version.
func (t *Transport) ResetPose(ctx context.Context) error {
	if t.ResetPoseFunc == nil {
		return t.Transport.ResetPose(ctx)
	}
	return t.ResetPoseFunc(ctx)
}

// SetPose calls the injected SetPose or the real version.
func (t *Transport) SetPose(ctx context.Context, x, y, theta float64) error {
	if t.SetPoseFunc == nil {
		return t.Transport.SetPose(ctx, x, y, theta)
	}
	return t.SetPoseFunc(ctx, x, y, theta)
}
