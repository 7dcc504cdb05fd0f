package inject

import (
	"context"

	"github.com/eurobot-nav/navcore/lidar"
)

// LidarDevice is an injected lidar.Device.
type LidarDevice struct {
	lidar.Device
	ScanFunc  func(ctx context.Context) (lidar.Measurements, error)
	CloseFunc func() error
}

// Scan calls the injected Scan or the real version.
func (ld *LidarDevice) Scan(ctx context.Context) (lidar.Measurements, error) {
	if ld.ScanFunc == nil {
		return ld.Device.Scan(ctx)
	}
	return ld.ScanFunc(ctx)
}

// Close calls the injected Close or the real version.
func (ld *LidarDevice) Close() error {
	if ld.CloseFunc == nil {
		return ld.Device.Close()
	}
	return ld.CloseFunc()
}
