// Package lidar turns range scans into the obstacle-ahead advisory used by the drive loop.
package lidar

import "context"

// A Device produces one full rotation of measurements per Scan.
type Device interface {
	Scan(ctx context.Context) (Measurements, error)
	Close() error
}
