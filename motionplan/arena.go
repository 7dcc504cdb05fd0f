package motionplan

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/eurobot-nav/navcore/spatialmath"
)

// CellKind is the content of one occupancy cell.
type CellKind uint8

// Cell contents. A HardObstacle takes precedence over a SoftStack where they overlap.
const (
	Free CellKind = iota
	SoftStack
	HardObstacle
)

func (k CellKind) String() string {
	switch k {
	case Free:
		return "free"
	case SoftStack:
		return "stack"
	case HardObstacle:
		return "hard"
	default:
		return fmt.Sprintf("CellKind(%d)", uint8(k))
	}
}

// MarshalText renders the kind as used in arena files.
func (k CellKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses "free", "stack" or "hard".
func (k *CellKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "free":
		*k = Free
	case "stack":
		*k = SoftStack
	case "hard":
		*k = HardObstacle
	default:
		return errors.Errorf("unknown cell kind %q", string(b))
	}
	return nil
}

// Obstacle is an axis aligned rectangle in millimeters, min inclusive and max exclusive.
type Obstacle struct {
	MinX float64  `json:"min_x"`
	MinY float64  `json:"min_y"`
	MaxX float64  `json:"max_x"`
	MaxY float64  `json:"max_y"`
	Kind CellKind `json:"kind"`
}

// Validate ensures all parts of the config are valid.
func (o *Obstacle) Validate(path string) error {
	if o.MaxX < o.MinX || o.MaxY < o.MinY {
		return goutils.NewConfigValidationError(path, errors.New("obstacle max must not be below min"))
	}
	if o.Kind == Free {
		return goutils.NewConfigValidationFieldRequiredError(path, "kind")
	}
	return nil
}

// Arena is the static description of the table.
type Arena struct {
	WidthMM   float64    `json:"width_mm"`
	HeightMM  float64    `json:"height_mm"`
	Obstacles []Obstacle `json:"obstacles"`
}

// Validate ensures all parts of the config are valid.
func (a *Arena) Validate(path string) error {
	if a.WidthMM <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "width_mm")
	}
	if a.HeightMM <= 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "height_mm")
	}
	for i := range a.Obstacles {
		if err := a.Obstacles[i].Validate(fmt.Sprintf("%s.obstacles.%d", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// String prints out a table of the obstacles, one row each.
func (a Arena) String() string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("arena %.0f x %.0f mm", a.WidthMM, a.HeightMM))
	t.AppendHeader(table.Row{"#", "Kind", "Min", "Max"})
	for i, o := range a.Obstacles {
		t.AppendRow(table.Row{
			i,
			o.Kind,
			fmt.Sprintf("X:%.0f, Y:%.0f", o.MinX, o.MinY),
			fmt.Sprintf("X:%.0f, Y:%.0f", o.MaxX, o.MaxY),
		})
	}
	return t.Render()
}

func stack(x0, y0, x1, y1 float64) Obstacle {
	return Obstacle{MinX: x0, MinY: y0, MaxX: x1, MaxY: y1, Kind: SoftStack}
}

func hard(x0, y0, x1, y1 float64) Obstacle {
	return Obstacle{MinX: x0, MinY: y0, MaxX: x1, MaxY: y1, Kind: HardObstacle}
}

// DefaultArena is the competition table: ten material stacks, the stage with its ramp,
// and the two pit areas.
func DefaultArena() Arena {
	return Arena{
		WidthMM:  spatialmath.ArenaWidthMM,
		HeightMM: spatialmath.ArenaHeightMM,
		Obstacles: []Obstacle{
			stack(900, 900, 1300, 1000),
			stack(1700, 900, 2100, 1000),
			stack(1950, 1700, 2350, 1800),
			stack(650, 1700, 1050, 1800),
			stack(550, 0, 950, 100),
			stack(2050, 0, 2450, 100),
			stack(2600, 450, 3000, 550),
			stack(0, 450, 400, 550),
			stack(2600, 1000, 3000, 1100),
			stack(0, 1000, 400, 1100),

			hard(650, 1800, 2350, 2000),
			hard(1050, 1500, 1950, 1800),
			hard(0, 1550, 150, 2000),
			hard(2850, 1550, 3000, 2000),
		},
	}
}
