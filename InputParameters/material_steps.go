package InputParameters

import (
	"fmt"
	"strings"

	"github.com/notargets/golbm/functors/indicator"
	"github.com/notargets/golbm/geometry"
	"github.com/notargets/golbm/types"
)

// GeometryStep is a prepared material operation on a super geometry
type GeometryStep struct {
	Name  string
	Apply func(sg *geometry.SuperGeometry) error
}

// Indicator builds the shape in dim dimensions
func (s *Shape) Indicator(dim int) (ind indicator.Indicator, err error) {
	vec := func(name string, v []float64) (r types.Vector, err error) {
		if len(v) != dim {
			return r, fmt.Errorf("%s shape: %s %v needs %d components", s.Type, name, v, dim)
		}
		copy(r[:], v)
		return
	}
	var (
		a, b types.Vector
		sdf  *indicator.SDF
	)
	switch strings.ToLower(s.Type) {
	case "everywhere", "all":
		return indicator.Everywhere(), nil
	case "cuboid", "box":
		if a, err = vec("extent", s.Extent); err != nil {
			return
		}
		if b, err = vec("origin", s.Origin); err != nil {
			return
		}
		if dim == 2 {
			sdf, err = indicator.Cuboid2D(a, b)
		} else {
			sdf, err = indicator.Cuboid3D(a, b)
		}
	case "circle":
		if dim != 2 {
			return nil, fmt.Errorf("circle shape in %d dimensions", dim)
		}
		if a, err = vec("center", s.Center); err != nil {
			return
		}
		sdf, err = indicator.Circle2D(a, s.Radius)
	case "sphere":
		if dim != 3 {
			return nil, fmt.Errorf("sphere shape in %d dimensions", dim)
		}
		if a, err = vec("center", s.Center); err != nil {
			return
		}
		sdf, err = indicator.Sphere3D(a, s.Radius)
	case "cylinder":
		if dim != 3 {
			return nil, fmt.Errorf("cylinder shape in %d dimensions", dim)
		}
		if a, err = vec("center", s.Center); err != nil {
			return
		}
		sdf, err = indicator.Cylinder3D(a, s.Height, s.Radius)
	default:
		return nil, fmt.Errorf("unknown shape %q", s.Type)
	}
	if err != nil {
		return nil, err
	}
	return sdf, nil
}

// GeometrySteps turns the material section into operations, in file order
func (ip *InputParameters) GeometrySteps() (steps []GeometryStep, err error) {
	for i, ms := range ip.Materials {
		var step GeometryStep
		if step, err = ms.compile(ip.Dimension); err != nil {
			return nil, fmt.Errorf("Materials[%d]: %w", i, err)
		}
		steps = append(steps, step)
	}
	return
}

func (ms MaterialStep) compile(dim int) (step GeometryStep, err error) {
	var (
		from, to, next int
		ind            indicator.Indicator
		op             = strings.ToLower(ms.Op)
	)
	material := func(name, token string) (m int) {
		if err != nil {
			return
		}
		if token == "" {
			err = fmt.Errorf("%s needs %s", ms.Op, name)
			return
		}
		m, err = types.ParseMaterial(token)
		return
	}
	shape := func() indicator.Indicator {
		if err != nil {
			return nil
		}
		if ms.Shape == nil {
			err = fmt.Errorf("%s needs a shape", ms.Op)
			return nil
		}
		var ind indicator.Indicator
		ind, err = ms.Shape.Indicator(dim)
		return ind
	}
	step.Name = op
	switch op {
	case "rename":
		from, to = material("from", ms.From), material("to", ms.To)
		if ms.Shape == nil {
			step.Apply = func(sg *geometry.SuperGeometry) error { sg.Rename(from, to); return nil }
			break
		}
		ind = shape()
		step.Apply = func(sg *geometry.SuperGeometry) error { sg.RenameIn(from, to, ind); return nil }
	case "renamenextto":
		from, to, next = material("from", ms.From), material("to", ms.To), material("next", ms.Next)
		ind = indicator.Everywhere()
		if ms.Shape != nil {
			ind = shape()
		}
		step.Apply = func(sg *geometry.SuperGeometry) error {
			sg.RenameNextTo(from, to, next, ind)
			return nil
		}
	case "renameoffset":
		from, to = material("from", ms.From), material("to", ms.To)
		var offset types.LatticeR
		if len(ms.Offset) != dim && err == nil {
			err = fmt.Errorf("offset %v needs %d components", ms.Offset, dim)
		}
		copy(offset[:], ms.Offset)
		step.Apply = func(sg *geometry.SuperGeometry) error { return sg.RenameOffset(from, to, offset) }
	case "clean":
		step.Apply = func(sg *geometry.SuperGeometry) error { sg.Clean(true); return nil }
	case "innerclean":
		if ms.From == "" {
			step.Apply = func(sg *geometry.SuperGeometry) error { sg.InnerClean(true); return nil }
			break
		}
		from = material("from", ms.From)
		step.Apply = func(sg *geometry.SuperGeometry) error { sg.InnerCleanMaterial(from, true); return nil }
	case "outerclean":
		step.Apply = func(sg *geometry.SuperGeometry) error { sg.OuterClean(true); return nil }
	case "checkforerrors":
		step.Apply = func(sg *geometry.SuperGeometry) error { sg.CheckForErrors(true); return nil }
	default:
		err = fmt.Errorf("unknown operation %q", ms.Op)
	}
	return
}
