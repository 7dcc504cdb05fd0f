// Package actions defines the primitive actions a mission is made of and the
// two-letter token language they are written in.
package actions

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Tags of the mission language.
const (
	TagDriveDistance  = "dd"
	TagTurnRelative   = "ta"
	TagTurnToHeading  = "tt"
	TagPathTo         = "dp"
	TagGripEngageLock = "gl"
	TagGripRelease    = "gr"
)

// An Action is one primitive step of a Task. The set of implementations is closed.
type Action interface {
	// String renders the action as a mission token.
	String() string
	isAction()
}

// DriveDistance drives straight for MM millimeters; negative drives backwards.
type DriveDistance struct {
	MM float64
}

// TurnRelative rotates in place by Deg degrees, counter-clockwise positive.
type TurnRelative struct {
	Deg float64
}

// TurnToHeading rotates in place to an absolute heading.
type TurnToHeading struct {
	Deg float64
}

// PathTo asks the planner for a route to (X, Y), optionally ending at heading Theta.
type PathTo struct {
	X, Y  float64
	Theta *float64
}

// GripEngageLock marks the start of a gripper operation that must not be retried.
type GripEngageLock struct{}

// GripRelease ends a GripEngageLock section.
type GripRelease struct{}

func (DriveDistance) isAction()  {}
func (TurnRelative) isAction()   {}
func (TurnToHeading) isAction()  {}
func (PathTo) isAction()         {}
func (GripEngageLock) isAction() {}
func (GripRelease) isAction()    {}

func (a DriveDistance) String() string { return TagDriveDistance + formatNum(a.MM) }
func (a TurnRelative) String() string  { return TagTurnRelative + formatNum(a.Deg) }
func (a TurnToHeading) String() string { return TagTurnToHeading + formatNum(a.Deg) }
func (GripEngageLock) String() string  { return TagGripEngageLock }
func (GripRelease) String() string     { return TagGripRelease }

func (a PathTo) String() string {
	parts := []string{formatNum(a.X), formatNum(a.Y)}
	if a.Theta != nil {
		parts = append(parts, formatNum(*a.Theta))
	}
	return TagPathTo + strings.Join(parts, ";")
}

// NewPathTo is a convenience for building a PathTo with a final heading.
func NewPathTo(x, y, theta float64) PathTo {
	return PathTo{X: x, Y: y, Theta: &theta}
}

// Strings renders a list of actions as tokens.
func Strings(as []Action) []string {
	return lo.Map(as, func(a Action, _ int) string { return a.String() })
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
