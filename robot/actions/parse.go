package actions

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// UnknownActionError is returned for a token whose tag is not part of the language,
// or for an Action value the dispatcher does not know.
type UnknownActionError struct {
	Token string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Token)
}

// NewUnknownActionError returns an UnknownActionError for token.
func NewUnknownActionError(token string) error {
	return &UnknownActionError{Token: token}
}

// IsUnknownAction reports whether err is, or wraps, an UnknownActionError.
func IsUnknownAction(err error) bool {
	var target *UnknownActionError
	return errors.As(err, &target)
}

// Parse turns one mission token into an Action.
func Parse(token string) (Action, error) {
	token = strings.TrimSpace(token)
	if len(token) < 2 {
		return nil, NewUnknownActionError(token)
	}
	tag, payload := token[:2], token[2:]
	switch tag {
	case TagDriveDistance:
		v, err := parseNums(token, payload, 1, 1)
		if err != nil {
			return nil, err
		}
		return DriveDistance{MM: v[0]}, nil
	case TagTurnRelative:
		v, err := parseNums(token, payload, 1, 1)
		if err != nil {
			return nil, err
		}
		return TurnRelative{Deg: v[0]}, nil
	case TagTurnToHeading:
		v, err := parseNums(token, payload, 1, 1)
		if err != nil {
			return nil, err
		}
		return TurnToHeading{Deg: v[0]}, nil
	case TagPathTo:
		v, err := parseNums(token, payload, 2, 3)
		if err != nil {
			return nil, err
		}
		a := PathTo{X: v[0], Y: v[1]}
		if len(v) == 3 {
			a.Theta = &v[2]
		}
		return a, nil
	case TagGripEngageLock:
		if payload != "" {
			return nil, errors.Errorf("action %q takes no payload", token)
		}
		return GripEngageLock{}, nil
	case TagGripRelease:
		if payload != "" {
			return nil, errors.Errorf("action %q takes no payload", token)
		}
		return GripRelease{}, nil
	default:
		return nil, NewUnknownActionError(token)
	}
}

// ParseAll parses every token, stopping at the first error.
func ParseAll(tokens []string) ([]Action, error) {
	out := make([]Action, 0, len(tokens))
	for i, tok := range tokens {
		a, err := Parse(tok)
		if err != nil {
			return nil, errors.Wrapf(err, "token %d", i)
		}
		out = append(out, a)
	}
	return out, nil
}

func parseNums(token, payload string, minN, maxN int) ([]float64, error) {
	if payload == "" {
		return nil, errors.Errorf("action %q is missing its payload", token)
	}
	fields := strings.Split(payload, ";")
	if len(fields) < minN || len(fields) > maxN {
		return nil, errors.Errorf("action %q expects %d to %d values, got %d", token, minN, maxN, len(fields))
	}
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad number in action %q", token)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Errorf("action %q has a non-finite value", token)
		}
		out = append(out, v)
	}
	return out, nil
}
