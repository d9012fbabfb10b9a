package scene

import (
	"fmt"
	"math/big"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/sightline/pkg/geom"
)

// Coord is a point as it appears in a scene document: a two-element array
// whose elements are numbers or exact coordinate strings.
//
// JSON decoding is inherited from geom.Point.
type Coord struct {
	geom.Point
}

// C wraps a point.
func C(p geom.Point) Coord { return Coord{Point: p} }

func (c Coord) valid() bool { return c.X != nil && c.Y != nil }

// UnmarshalTOML implements toml.Unmarshaler. TOML floats are converted via
// their shortest decimal form, so 0.1 means exactly 1/10.
func (c *Coord) UnmarshalTOML(v any) error {
	arr, ok := v.([]any)
	if !ok {
		return fmt.Errorf("point must be an array [x, y], got %T", v)
	}
	if len(arr) != 2 {
		return fmt.Errorf("point must have exactly 2 coordinates, got %d", len(arr))
	}
	var xy [2]*big.Rat
	for i, e := range arr {
		r, err := tomlCoord(e)
		if err != nil {
			return err
		}
		xy[i] = r
	}
	c.Point = geom.Point{X: xy[0], Y: xy[1]}
	return nil
}

func tomlCoord(v any) (*big.Rat, error) {
	switch x := v.(type) {
	case int64:
		return big.NewRat(x, 1), nil
	case float64:
		return geom.RatFromFloat(x)
	case string:
		return geom.ParseRat(x)
	default:
		return nil, fmt.Errorf("invalid coordinate %v (%T)", v, v)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler. Scalars are parsed from their
// literal text, so no float rounding happens.
func (c *Coord) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: point must be a sequence [x, y]", node.Line)
	}
	if len(node.Content) != 2 {
		return fmt.Errorf("line %d: point must have exactly 2 coordinates, got %d", node.Line, len(node.Content))
	}
	var xy [2]*big.Rat
	for i, n := range node.Content {
		if n.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: coordinate must be a scalar", n.Line)
		}
		r, err := geom.ParseRat(n.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		xy[i] = r
	}
	c.Point = geom.Point{X: xy[0], Y: xy[1]}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c Coord) MarshalYAML() (any, error) {
	return []string{c.X.RatString(), c.Y.RatString()}, nil
}
