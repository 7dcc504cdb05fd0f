package control

import (
	"testing"
	"time"

	"go.viam.com/test"
)

func TestPIDAtTarget(t *testing.T) {
	p := NewPID(GainConfig{Kp: 0.45, Ki: 0.1, Kd: 0.005})
	for _, tc := range []struct {
		pos float64
		dt  time.Duration
	}{
		{0, time.Millisecond},
		{1000, 50 * time.Millisecond},
		{-3820, time.Second},
		{12, 3 * time.Microsecond},
	} {
		power, dir := p.Evaluate(tc.pos, tc.pos, tc.pos, tc.pos, tc.dt)
		test.That(t, power, test.ShouldEqual, uint8(0))
		test.That(t, dir, test.ShouldEqual, 0)
	}
}

func TestPIDProportional(t *testing.T) {
	p := NewPID(GainConfig{Kp: 0.45})
	power, dir := p.Evaluate(0, 0, 100, 100, 50*time.Millisecond)
	test.That(t, power, test.ShouldEqual, uint8(45))
	test.That(t, dir, test.ShouldEqual, 1)

	power, dir = p.Evaluate(0, 0, -100, -100, 50*time.Millisecond)
	test.That(t, power, test.ShouldEqual, uint8(45))
	test.That(t, dir, test.ShouldEqual, -1)

	power, _ = p.Evaluate(0, 0, 10000, 10000, 50*time.Millisecond)
	test.That(t, power, test.ShouldEqual, uint8(255))
}

func TestPIDCrossDerivative(t *testing.T) {
	// both axes far from target: derivative follows the other wheel
	p := NewPID(GainConfig{Kp: 1, Kd: 1})
	power, dir := p.Evaluate(1000, 1100, 2000, 2000, time.Second)
	test.That(t, dir, test.ShouldEqual, 1)
	test.That(t, power, test.ShouldEqual, uint8(255))

	p = NewPID(GainConfig{Kp: 1, Kd: 0.5})
	power, _ = p.Evaluate(0, 100, 400, 400, time.Second)
	// 1*400 + 0.5*100 clipped
	test.That(t, power, test.ShouldEqual, uint8(255))

	// near target the derivative is dropped
	p = NewPID(GainConfig{Kp: 1, Kd: 100})
	power, dir = p.Evaluate(0, 50, 100, 100, time.Second)
	test.That(t, power, test.ShouldEqual, uint8(100))
	test.That(t, dir, test.ShouldEqual, 1)
}

func TestPIDIntegral(t *testing.T) {
	p := NewPID(GainConfig{Ki: 1})
	p.Evaluate(0, 0, 10, 10, time.Second)
	p.Evaluate(0, 0, 10, 10, time.Second)
	test.That(t, p.Integral(), test.ShouldAlmostEqual, 20.0)
	power, dir := p.Evaluate(0, 0, 10, 10, time.Second)
	test.That(t, power, test.ShouldEqual, uint8(30))
	test.That(t, dir, test.ShouldEqual, 1)
	p.Reset()
	test.That(t, p.Integral(), test.ShouldEqual, 0.0)
}

func TestGainConfigValidate(t *testing.T) {
	cfg := GainConfig{}
	err := cfg.Validate("drive.pid")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "at least one")

	cfg = GainConfig{Kp: -1}
	test.That(t, cfg.Validate("drive.pid"), test.ShouldNotBeNil)

	cfg = DefaultGains
	test.That(t, cfg.Validate("drive.pid"), test.ShouldBeNil)
}
