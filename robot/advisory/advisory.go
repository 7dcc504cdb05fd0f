// Package advisory carries sensor and operator signals into the control loop without
// ever blocking it.
package advisory

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/eurobot-nav/navcore/lidar"
	"github.com/eurobot-nav/navcore/spatialmath"
)

// Latest is a one slot mailbox. Publishing never blocks and replaces an unread value;
// polling never blocks and keeps returning the newest value seen.
type Latest[T any] struct {
	ch chan T

	mu   sync.Mutex
	last T
	have bool
}

// NewLatest returns an empty mailbox.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{ch: make(chan T, 1)}
}

// Publish stores v, dropping the unread value if there is one.
func (l *Latest[T]) Publish(v T) {
	for {
		select {
		case l.ch <- v:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

// Poll returns the newest value and whether anything was ever published.
func (l *Latest[T]) Poll() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case v := <-l.ch:
		l.last, l.have = v, true
	default:
	}
	return l.last, l.have
}

// Inputs combines the operator stop flag with the lidar obstacle advisory.
type Inputs struct {
	stop     atomic.Bool
	obstacle atomic.Bool
	scans    *Latest[lidar.Measurements]
	lidarCfg lidar.Config
}

// NewInputs evaluates scans with cfg.
func NewInputs(cfg lidar.Config) *Inputs {
	return &Inputs{scans: NewLatest[lidar.Measurements](), lidarCfg: cfg}
}

// SetStop raises or clears the operator stop flag.
func (in *Inputs) SetStop(stop bool) {
	in.stop.Store(stop)
}

// StopRequested reports the operator stop flag.
func (in *Inputs) StopRequested() bool {
	return in.stop.Load()
}

// PublishScan hands a rotation to the control loop. It is safe to call from any goroutine.
func (in *Inputs) PublishScan(ms lidar.Measurements) {
	in.scans.Publish(ms)
}

// ObstacleAhead evaluates the newest scan for a robot at pose moving in direction.
func (in *Inputs) ObstacleAhead(pose spatialmath.Position, direction int) bool {
	ms, ok := in.scans.Poll()
	blocked := ok && lidar.ObstacleAhead(ms, pose, direction, in.lidarCfg)
	in.obstacle.Store(blocked)
	return blocked
}

// LastObstacle is the result of the most recent ObstacleAhead.
func (in *Inputs) LastObstacle() bool {
	return in.obstacle.Load()
}

// Held reports an operator hold.
func (in *Inputs) Held() bool {
	return in.StopRequested()
}

// Stopped is true while the operator holds the robot or something is in the way.
func (in *Inputs) Stopped(pose spatialmath.Position, direction int) bool {
	if in.StopRequested() {
		return true
	}
	return in.ObstacleAhead(pose, direction)
}
