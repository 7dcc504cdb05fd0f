package lidar_test

import (
	"context"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/test"

	"github.com/eurobot-nav/navcore/lidar"
	"github.com/eurobot-nav/navcore/testutils/inject"
)

func TestMonitor(t *testing.T) {
	logger := golog.NewTestLogger(t)
	scan := lidar.Measurements{lidar.NewMeasurement(0, 250)}

	var calls atomic.Int64
	closed := false
	dev := &inject.LidarDevice{
		ScanFunc: func(ctx context.Context) (lidar.Measurements, error) {
			switch calls.Inc() {
			case 1:
				return nil, errors.New("timeout")
			case 2:
				return scan, nil
			default:
				<-ctx.Done()
				return nil, ctx.Err()
			}
		},
		CloseFunc: func() error {
			closed = true
			return nil
		},
	}

	published := make(chan lidar.Measurements, 4)
	m := lidar.NewMonitor(dev, func(ms lidar.Measurements) { published <- ms }, logger)
	m.Start(context.Background())

	for _, expected := range []lidar.Measurements{nil, scan} {
		select {
		case got := <-published:
			test.That(t, got, test.ShouldResemble, expected)
		case <-time.After(5 * time.Second):
			t.Fatal("monitor did not publish")
		}
	}

	test.That(t, m.Stop(), test.ShouldBeNil)
	test.That(t, closed, test.ShouldBeTrue)
	test.That(t, m.Failures(), test.ShouldEqual, int64(1))
	test.That(t, m.Scans(), test.ShouldEqual, int64(1))
	test.That(t, len(published), test.ShouldEqual, 0)
}

func TestMonitorThrottlesFailureLogs(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	dev := &inject.LidarDevice{
		ScanFunc: func(ctx context.Context) (lidar.Measurements, error) {
			return nil, errors.New("no data")
		},
		CloseFunc: func() error { return nil },
	}

	m := lidar.NewMonitor(dev, func(lidar.Measurements) {}, logger)
	m.Start(context.Background())
	for m.Failures() < 3 {
		time.Sleep(10 * time.Millisecond)
	}
	test.That(t, m.Stop(), test.ShouldBeNil)
	test.That(t, logs.FilterMessage("lidar scan failed").Len(), test.ShouldEqual, 1)
}
