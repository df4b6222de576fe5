// Package indicator provides geometric predicates over physical coordinates,
// used to tag materials and to fit cuboids around a region of interest.
package indicator

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/notargets/golbm/types"
)

// Indicator reports whether a physical point lies inside a region. Min and
// Max bound the region.
type Indicator interface {
	Contains(x types.Vector) bool
	Min() types.Vector
	Max() types.Vector
}

// Tolerance added to the signed distance, so that points on the surface count
// as inside.
const DefaultTolerance = 1.e-10

// SDF is an indicator backed by a signed distance function: a point is inside
// when the distance is not positive. Two dimensional shapes are extruded
// along z and evaluated in the plane z = 0.
type SDF struct {
	s         sdf.SDF3
	twoD      bool
	Tolerance float64
}

func NewSDF(s sdf.SDF3, twoD bool) *SDF {
	return &SDF{s: s, twoD: twoD, Tolerance: DefaultTolerance}
}

func (ind *SDF) Contains(x types.Vector) bool {
	p := v3.Vec{X: x[0], Y: x[1], Z: x[2]}
	if ind.twoD {
		p.Z = 0
	}
	return ind.s.Evaluate(p) <= ind.Tolerance
}

func (ind *SDF) Min() types.Vector {
	bb := ind.s.BoundingBox()
	if ind.twoD {
		return types.Vector{bb.Min.X, bb.Min.Y, 0}
	}
	return types.Vector{bb.Min.X, bb.Min.Y, bb.Min.Z}
}

func (ind *SDF) Max() types.Vector {
	bb := ind.s.BoundingBox()
	if ind.twoD {
		return types.Vector{bb.Max.X, bb.Max.Y, 0}
	}
	return types.Vector{bb.Max.X, bb.Max.Y, bb.Max.Z}
}

// SDF3 exposes the distance function for composition
func (ind *SDF) SDF3() sdf.SDF3 { return ind.s }

// Cuboid3D is the box [origin, origin+extent]
func Cuboid3D(extent, origin types.Vector) (ind *SDF, err error) {
	var s sdf.SDF3
	if s, err = sdf.Box3D(v3.Vec{X: extent[0], Y: extent[1], Z: extent[2]}, 0); err != nil {
		err = fmt.Errorf("cuboid indicator: %w", err)
		return
	}
	// Box3D is centred on zero
	m := sdf.Translate3d(v3.Vec{
		X: origin[0] + extent[0]/2,
		Y: origin[1] + extent[1]/2,
		Z: origin[2] + extent[2]/2,
	})
	ind = NewSDF(sdf.Transform3D(s, m), false)
	return
}

// Cuboid2D is the rectangle [origin, origin+extent] in the xy plane
func Cuboid2D(extent, origin types.Vector) (ind *SDF, err error) {
	var s sdf.SDF3
	if s, err = sdf.Box3D(v3.Vec{X: extent[0], Y: extent[1], Z: 1}, 0); err != nil {
		err = fmt.Errorf("cuboid indicator: %w", err)
		return
	}
	m := sdf.Translate3d(v3.Vec{X: origin[0] + extent[0]/2, Y: origin[1] + extent[1]/2})
	ind = NewSDF(sdf.Transform3D(s, m), true)
	return
}

// Circle2D is the disc of the given radius in the xy plane
func Circle2D(center types.Vector, radius float64) (ind *SDF, err error) {
	var s sdf.SDF3
	if s, err = sdf.Cylinder3D(1, radius, 0); err != nil {
		err = fmt.Errorf("circle indicator: %w", err)
		return
	}
	m := sdf.Translate3d(v3.Vec{X: center[0], Y: center[1]})
	ind = NewSDF(sdf.Transform3D(s, m), true)
	return
}

func Sphere3D(center types.Vector, radius float64) (ind *SDF, err error) {
	var s sdf.SDF3
	if s, err = sdf.Sphere3D(radius); err != nil {
		err = fmt.Errorf("sphere indicator: %w", err)
		return
	}
	m := sdf.Translate3d(v3.Vec{X: center[0], Y: center[1], Z: center[2]})
	ind = NewSDF(sdf.Transform3D(s, m), false)
	return
}

// Cylinder3D is the cylinder of the given radius between the centres of its
// two end caps, aligned with the z axis
func Cylinder3D(center types.Vector, height, radius float64) (ind *SDF, err error) {
	var s sdf.SDF3
	if s, err = sdf.Cylinder3D(height, radius, 0); err != nil {
		err = fmt.Errorf("cylinder indicator: %w", err)
		return
	}
	m := sdf.Translate3d(v3.Vec{X: center[0], Y: center[1], Z: center[2]})
	ind = NewSDF(sdf.Transform3D(s, m), false)
	return
}

func sdfPair(a, b *SDF) error {
	if a.twoD != b.twoD {
		return fmt.Errorf("cannot combine 2D and 3D indicators")
	}
	return nil
}

func Union(a, b *SDF) (*SDF, error) {
	if err := sdfPair(a, b); err != nil {
		return nil, err
	}
	return NewSDF(sdf.Union3D(a.s, b.s), a.twoD), nil
}

func Intersection(a, b *SDF) (*SDF, error) {
	if err := sdfPair(a, b); err != nil {
		return nil, err
	}
	return NewSDF(sdf.Intersect3D(a.s, b.s), a.twoD), nil
}

// Difference is a without b
func Difference(a, b *SDF) (*SDF, error) {
	if err := sdfPair(a, b); err != nil {
		return nil, err
	}
	return NewSDF(sdf.Difference3D(a.s, b.s), a.twoD), nil
}

// Func adapts an arbitrary predicate with explicit bounds
type Func struct {
	F          func(x types.Vector) bool
	MinR, MaxR types.Vector
}

func (f *Func) Contains(x types.Vector) bool { return f.F(x) }
func (f *Func) Min() types.Vector            { return f.MinR }
func (f *Func) Max() types.Vector            { return f.MaxR }

// Everywhere is true for every point
func Everywhere() *Func {
	return &Func{F: func(types.Vector) bool { return true }}
}
