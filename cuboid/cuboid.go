// Package cuboid models the decomposition of a regular lattice into
// axis-aligned rectangular blocks.
package cuboid

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/notargets/golbm/functors/indicator"
	"github.com/notargets/golbm/serializer"
	"github.com/notargets/golbm/types"
)

var (
	ErrInvalidRefinement = errors.New("refinement factor must be >= 1")
	ErrNonPositiveCount  = errors.New("number of children must be positive")
	ErrTooManyChildren   = errors.New("more children than lattice cells")
	ErrInvalidDimension  = errors.New("dimension must be 2 or 3")
	ErrInvalidExtent     = errors.New("extent must be non-negative and spacing positive")
)

const unsetWeight = -1

/*
Cuboid is a block of nX*nY*nZ lattice cells with spacing Delta. Origin is the
physical position of cell (0,0,0), so cell centres sit on Origin + i*Delta.
In two dimensions nZ is 1 and the z coordinate is ignored.
*/
type Cuboid struct {
	Dim    int
	Origin types.Vector
	Delta  float64
	Extent types.LatticeR
	weight int
}

func NewCuboid(dim int, origin types.Vector, delta float64, extent types.LatticeR) (c *Cuboid, err error) {
	if dim != 2 && dim != 3 {
		err = fmt.Errorf("%w: have %d", ErrInvalidDimension, dim)
		return
	}
	if dim == 2 {
		origin[2] = 0
		extent[2] = 1
	}
	if delta <= 0 || extent[0] < 0 || extent[1] < 0 || extent[2] < 0 {
		err = fmt.Errorf("%w: delta %g extent %v", ErrInvalidExtent, delta, extent)
		return
	}
	c = &Cuboid{Dim: dim, Origin: origin, Delta: delta, Extent: extent, weight: unsetWeight}
	return
}

// NewCuboidFromIndicator fits a cuboid with spacing voxelSize around the
// bounding box of ind
func NewCuboidFromIndicator(ind indicator.Indicator, voxelSize float64, dim int) (*Cuboid, error) {
	var (
		lo, hi = ind.Min(), ind.Max()
		extent types.LatticeR
	)
	for d := 0; d < 3; d++ {
		extent[d] = int((hi[d]-lo[d])/voxelSize + 1.5)
	}
	return NewCuboid(dim, lo, voxelSize, extent)
}

func (c *Cuboid) Copy() *Cuboid {
	cc := *c
	return &cc
}

// Inflate returns a copy grown by overlap cells on every side, keeping the
// weight
func (c *Cuboid) Inflate(overlap int) *Cuboid {
	cc := c.Copy()
	for d := 0; d < c.Dim; d++ {
		cc.Origin[d] -= float64(overlap) * c.Delta
		cc.Extent[d] += 2 * overlap
	}
	return cc
}

func (c *Cuboid) NX() int { return c.Extent[0] }
func (c *Cuboid) NY() int { return c.Extent[1] }
func (c *Cuboid) NZ() int { return c.Extent[2] }

func (c *Cuboid) LatticeVolume() int {
	return c.Extent[0] * c.Extent[1] * c.Extent[2]
}

func (c *Cuboid) PhysVolume() float64 {
	return float64(c.LatticeVolume()) * math.Pow(c.Delta, float64(c.Dim))
}

// LatticePerimeter counts the cells on the surface of the cuboid
func (c *Cuboid) LatticePerimeter() int {
	nX, nY, nZ := c.Extent[0], c.Extent[1], c.Extent[2]
	if c.Dim == 2 {
		return 2*nX + 2*nY - 4
	}
	return 2 * ((nX-1)*(nY-1) + (nY-1)*(nZ-1) + (nZ-1)*(nX-1))
}

func (c *Cuboid) PhysPerimeter() float64 {
	nX, nY, nZ := float64(c.Extent[0]), float64(c.Extent[1]), float64(c.Extent[2])
	if c.Dim == 2 {
		return 2 * c.Delta * (nX + nY)
	}
	return 2 * c.Delta * c.Delta * (nX*nY + nY*nZ + nZ*nX)
}

// Weight is the estimated cost of the cuboid, the lattice volume unless set
func (c *Cuboid) Weight() int {
	if c.weight == unsetWeight {
		return c.LatticeVolume()
	}
	return c.weight
}

// WeightValue is the stored weight, -1 if it was never set
func (c *Cuboid) WeightValue() int { return c.weight }

func (c *Cuboid) SetWeight(w int) { c.weight = w }

// WeightIn counts the cells whose centre lies inside ind
func (c *Cuboid) WeightIn(ind indicator.Indicator) (weight int) {
	c.ForEach(func(l types.LatticeR) {
		if ind.Contains(c.PhysR(l)) {
			weight++
		}
	})
	return
}

// ForEach visits every cell in x, y, z nesting order
func (c *Cuboid) ForEach(fn func(l types.LatticeR)) {
	var l types.LatticeR
	for l[0] = 0; l[0] < c.Extent[0]; l[0]++ {
		for l[1] = 0; l[1] < c.Extent[1]; l[1]++ {
			for l[2] = 0; l[2] < c.Extent[2]; l[2]++ {
				fn(l)
			}
		}
	}
}

func (c *Cuboid) PhysR(l types.LatticeR) (x types.Vector) {
	for d := 0; d < c.Dim; d++ {
		x[d] = c.Origin[d] + float64(l[d])*c.Delta
	}
	return
}

// LatticeR rounds a physical position to the nearest cell
func (c *Cuboid) LatticeR(x types.Vector) (l types.LatticeR) {
	for d := 0; d < c.Dim; d++ {
		l[d] = int(math.Floor((x[d]-c.Origin[d])/c.Delta + .5))
	}
	return
}

// FloorLatticeR returns the cell at or below x on every axis
func (c *Cuboid) FloorLatticeR(x types.Vector) (l types.LatticeR) {
	for d := 0; d < c.Dim; d++ {
		l[d] = int(math.Floor((x[d] - c.Origin[d]) / c.Delta))
	}
	return
}

/*
CheckPoint reports whether x lies in the cuboid grown by overlap cells. The
test is half open with a half cell shift, so a point on the face shared by two
adjacent cuboids belongs to exactly one of them.
*/
func (c *Cuboid) CheckPoint(x types.Vector, overlap int) bool {
	ov := float64(overlap)
	for d := 0; d < c.Dim; d++ {
		if !(c.Origin[d] <= x[d]+ov*c.Delta+c.Delta/2 &&
			c.Origin[d]+float64(c.Extent[d]+overlap)*c.Delta > x[d]+c.Delta/2) {
			return false
		}
	}
	return true
}

// PhysCheckPoint is CheckPoint with a fractional overlap
func (c *Cuboid) PhysCheckPoint(x types.Vector, overlap float64) bool {
	for d := 0; d < c.Dim; d++ {
		if !(c.Origin[d] <= x[d]+(0.5+overlap)*c.Delta &&
			c.Origin[d]+(float64(c.Extent[d])+overlap)*c.Delta > x[d]+c.Delta/2) {
			return false
		}
	}
	return true
}

// CheckPointLocal is CheckPoint that also returns the cell of x, counted from
// the corner of the cuboid grown by overlap
func (c *Cuboid) CheckPointLocal(x types.Vector, overlap int) (l types.LatticeR, ok bool) {
	if overlap != 0 {
		return c.Inflate(overlap).CheckPointLocal(x, 0)
	}
	if !c.CheckPoint(x, 0) {
		return
	}
	return c.LatticeR(x), true
}

// CheckInters reports whether the closed range [x0,x1] meets the cell centres
// of the cuboid grown by overlap
func (c *Cuboid) CheckInters(x0, x1 types.Vector, overlap int) bool {
	ov := float64(overlap)
	for d := 0; d < c.Dim; d++ {
		lo := math.Max(c.Origin[d]-ov*c.Delta, x0[d])
		hi := math.Min(c.Origin[d]+(float64(c.Extent[d]+overlap)-1)*c.Delta, x1[d])
		if hi < lo {
			return false
		}
	}
	return true
}

// CheckIntersCuboid reports whether the cell centres of o fall inside c
func (c *Cuboid) CheckIntersCuboid(o *Cuboid, overlap int) bool {
	var x1 types.Vector
	for d := 0; d < c.Dim; d++ {
		x1[d] = o.Origin[d] + o.Delta*float64(o.Extent[d]-1)
	}
	return c.CheckInters(o.Origin, x1, overlap)
}

/*
IntersectLocal returns the inclusive range of cells, local to the cuboid grown
by overlap, that lie inside [x0,x1]. An empty intersection returns lo > hi and
false.
*/
func (c *Cuboid) IntersectLocal(x0, x1 types.Vector, overlap int) (lo, hi types.LatticeR, ok bool) {
	if overlap != 0 {
		return c.Inflate(overlap).IntersectLocal(x0, x1, 0)
	}
	if !c.CheckInters(x0, x1, 0) {
		return types.LatticeR{1, 1, 1}, types.LatticeR{}, false
	}
	const eps = 1.e-8
	for d := 0; d < c.Dim; d++ {
		lo[d] = max(0, int(math.Ceil((x0[d]-c.Origin[d])/c.Delta-eps)))
		hi[d] = min(c.Extent[d]-1, int(math.Floor((x1[d]-c.Origin[d])/c.Delta+eps)))
	}
	return lo, hi, true
}

// Refine multiplies the resolution by factor. The explicit weight, if any,
// scales with the number of cells.
func (c *Cuboid) Refine(factor int) error {
	if factor < 1 {
		return fmt.Errorf("%w: have %d", ErrInvalidRefinement, factor)
	}
	if factor == 1 {
		return nil
	}
	c.Delta /= float64(factor)
	for d := 0; d < c.Dim; d++ {
		c.Extent[d] *= factor
	}
	if c.weight != unsetWeight {
		for d := 0; d < c.Dim; d++ {
			c.weight *= factor
		}
	}
	return nil
}

// Resize moves the origin by i cells and sets the extent to n
func (c *Cuboid) Resize(i, n types.LatticeR) {
	for d := 0; d < c.Dim; d++ {
		c.Origin[d] += float64(i[d]) * c.Delta
		c.Extent[d] = n[d]
	}
}

func nearZero(x float64) bool {
	return math.Abs(x) < 1.e-12
}

func (c *Cuboid) Equal(o *Cuboid) bool {
	return nearZero(c.Origin[0]-o.Origin[0]) &&
		nearZero(c.Origin[1]-o.Origin[1]) &&
		nearZero(c.Origin[2]-o.Origin[2]) &&
		nearZero(c.Delta-o.Delta) &&
		c.Extent == o.Extent &&
		c.weight == o.weight
}

// Schema lists the checkpoint fields in their on-disk order
func (c *Cuboid) Schema() []serializer.Field {
	return []serializer.Field{
		{Name: "OriginX", Value: &c.Origin[0]},
		{Name: "OriginY", Value: &c.Origin[1]},
		{Name: "OriginZ", Value: &c.Origin[2]},
		{Name: "Delta", Value: &c.Delta},
		{Name: "NX", Value: &c.Extent[0]},
		{Name: "NY", Value: &c.Extent[1]},
		{Name: "NZ", Value: &c.Extent[2]},
		{Name: "Weight", Value: &c.weight},
	}
}

func (c *Cuboid) Print(logger *log.Logger) {
	var corner, other types.Vector
	for d := 0; d < c.Dim; d++ {
		corner[d] = c.Origin[d] - c.Delta/2
		other[d] = c.Origin[d] + (float64(c.Extent[d])-0.5)*c.Delta
	}
	logger.Printf("--------Cuboid Details----------")
	logger.Printf(" Corner:             %v", corner[:c.Dim])
	logger.Printf(" Delta:              %g", c.Delta)
	logger.Printf(" Perimeter:          %g", c.PhysPerimeter())
	logger.Printf(" Volume:             %g", c.PhysVolume())
	logger.Printf(" Extent:             %v", c.Extent[:c.Dim])
	logger.Printf(" Nodes at Perimeter: %d", c.LatticePerimeter())
	logger.Printf(" Nodes in Volume:    %d", c.LatticeVolume())
	logger.Printf(" Nodes in Indicator: %d", c.Weight())
	logger.Printf(" Other Corner:       %v", other[:c.Dim])
	logger.Printf("--------------------------------")
}
