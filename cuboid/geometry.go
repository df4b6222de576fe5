package cuboid

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/james-bowman/sparse"

	"github.com/notargets/golbm/functors/indicator"
	"github.com/notargets/golbm/serializer"
	"github.com/notargets/golbm/types"
)

var ErrNoCuboids = errors.New("cuboid geometry is empty")

/*
CuboidGeometry is the ordered list of cuboids covering a domain. The index
of a cuboid in the list is its global id. The mother cuboid is the undivided
domain and defines the canonical spacing and the periodic wrap.
*/
type CuboidGeometry struct {
	Dim      int
	mother   *Cuboid
	cuboids  []*Cuboid
	periodic [3]bool
}

// NewCuboidGeometry divides mother into nC cuboids
func NewCuboidGeometry(mother *Cuboid, nC int) (cg *CuboidGeometry, err error) {
	cg = &CuboidGeometry{Dim: mother.Dim, mother: mother.Copy()}
	if cg.cuboids, err = mother.DivideP(nC); err != nil {
		err = fmt.Errorf("unable to build cuboid geometry: %w", err)
		cg = nil
	}
	return
}

/*
NewCuboidGeometryFromIndicator fits a mother cuboid around ind, divides it
into nC cuboids, then shrinks every cuboid to the cells inside ind and drops
the empty ones. Weights are set to the number of cells inside ind.
*/
func NewCuboidGeometryFromIndicator(ind indicator.Indicator, voxelSize float64, nC, dim int) (cg *CuboidGeometry, err error) {
	var mother *Cuboid
	if mother, err = NewCuboidFromIndicator(ind, voxelSize, dim); err != nil {
		return
	}
	if cg, err = NewCuboidGeometry(mother, nC); err != nil {
		return
	}
	cg.Shrink(ind)
	if cg.Nc() == 0 {
		err = fmt.Errorf("%w: no cell inside the indicator", ErrNoCuboids)
		cg = nil
	}
	return
}

// NewEmptyCuboidGeometry starts a geometry that is filled with Add
func NewEmptyCuboidGeometry(mother *Cuboid) *CuboidGeometry {
	return &CuboidGeometry{Dim: mother.Dim, mother: mother.Copy()}
}

func (cg *CuboidGeometry) Nc() int            { return len(cg.cuboids) }
func (cg *CuboidGeometry) Get(iC int) *Cuboid { return cg.cuboids[iC] }
func (cg *CuboidGeometry) Mother() *Cuboid    { return cg.mother }
func (cg *CuboidGeometry) Cuboids() []*Cuboid { return cg.cuboids }

func (cg *CuboidGeometry) Add(c *Cuboid) {
	cg.cuboids = append(cg.cuboids, c)
}

// Remove deletes cuboid iC, shifting the ids of the cuboids after it
func (cg *CuboidGeometry) Remove(iC int) {
	cg.cuboids = append(cg.cuboids[:iC], cg.cuboids[iC+1:]...)
}

func (cg *CuboidGeometry) SetPeriodicity(x, y, z bool) {
	cg.periodic = [3]bool{x, y, z}
	if cg.Dim == 2 {
		cg.periodic[2] = false
	}
}

func (cg *CuboidGeometry) Periodic() [3]bool { return cg.periodic }

// Split replaces cuboid iC by p children appended at the end
func (cg *CuboidGeometry) Split(iC, p int) (err error) {
	var children []*Cuboid
	if children, err = cg.cuboids[iC].DivideP(p); err != nil {
		return
	}
	cg.Remove(iC)
	cg.cuboids = append(cg.cuboids, children...)
	return
}

// Refine refines the mother and every cuboid
func (cg *CuboidGeometry) Refine(factor int) (err error) {
	if err = cg.mother.Refine(factor); err != nil {
		return
	}
	for _, c := range cg.cuboids {
		if err = c.Refine(factor); err != nil {
			return
		}
	}
	return
}

// ShrinkCuboid reduces cuboid iC to the bounding box of its cells inside ind
// and sets its weight to the number of those cells. A cuboid with no cell
// inside gets a zero extent.
func (cg *CuboidGeometry) ShrinkCuboid(iC int, ind indicator.Indicator) {
	var (
		c      = cg.cuboids[iC]
		lo     = types.LatticeR{math.MaxInt, math.MaxInt, math.MaxInt}
		hi     = types.LatticeR{-1, -1, -1}
		weight int
	)
	c.ForEach(func(l types.LatticeR) {
		if ind.Contains(c.PhysR(l)) {
			weight++
			for d := 0; d < 3; d++ {
				lo[d] = min(lo[d], l[d])
				hi[d] = max(hi[d], l[d])
			}
		}
	})
	if weight == 0 {
		c.Resize(types.LatticeR{}, types.LatticeR{0, 0, 0})
		c.SetWeight(0)
		return
	}
	c.Resize(lo, hi.Sub(lo).Add(types.LatticeR{1, 1, 1}))
	c.SetWeight(weight)
}

// Shrink shrinks every cuboid to ind and removes the empty ones
func (cg *CuboidGeometry) Shrink(ind indicator.Indicator) {
	for iC := range cg.cuboids {
		cg.ShrinkCuboid(iC, ind)
	}
	cg.RemoveEmpty()
}

// RemoveEmpty drops cuboids without cells or with zero weight
func (cg *CuboidGeometry) RemoveEmpty() {
	kept := cg.cuboids[:0]
	for _, c := range cg.cuboids {
		if c.LatticeVolume() > 0 && c.Weight() > 0 {
			kept = append(kept, c)
		}
	}
	cg.cuboids = kept
}

// SetWeights sets every weight to the number of cells inside ind
func (cg *CuboidGeometry) SetWeights(ind indicator.Indicator) {
	for _, c := range cg.cuboids {
		c.SetWeight(c.WeightIn(ind))
	}
}

// C returns the first cuboid whose extent grown by overlap holds x
func (cg *CuboidGeometry) C(x types.Vector, overlap int) (iC int, ok bool) {
	x = cg.wrapPhys(x)
	for iC = range cg.cuboids {
		if cg.cuboids[iC].CheckPoint(x, overlap) {
			return iC, true
		}
	}
	return -1, false
}

// LatticeR locates the owning cuboid and local cell of x
func (cg *CuboidGeometry) LatticeR(x types.Vector) (iC int, l types.LatticeR, ok bool) {
	if iC, ok = cg.C(x, 0); !ok {
		return
	}
	l = cg.cuboids[iC].LatticeR(cg.wrapPhys(x))
	return
}

// PhysR is the position of a local cell, wrapped into the mother cuboid on
// periodic axes
func (cg *CuboidGeometry) PhysR(iC int, l types.LatticeR) types.Vector {
	return cg.wrapPhys(cg.cuboids[iC].PhysR(l))
}

func (cg *CuboidGeometry) wrapPhys(x types.Vector) types.Vector {
	m := cg.mother
	for d := 0; d < cg.Dim; d++ {
		if !cg.periodic[d] {
			continue
		}
		length := float64(m.Extent[d]) * m.Delta
		lo := m.Origin[d] - m.Delta/2
		x[d] = lo + math.Mod(math.Mod(x[d]-lo, length)+length, length)
	}
	return x
}

// GlobalOffset is the lattice position of the origin of cuboid iC relative to
// the mother cuboid
func (cg *CuboidGeometry) GlobalOffset(iC int) (g types.LatticeR) {
	c := cg.cuboids[iC]
	for d := 0; d < cg.Dim; d++ {
		g[d] = int(math.Floor((c.Origin[d]-cg.mother.Origin[d])/cg.mother.Delta + .5))
	}
	return
}

// WrapGlobal maps a global lattice position into the mother extent on
// periodic axes
func (cg *CuboidGeometry) WrapGlobal(g types.LatticeR) types.LatticeR {
	for d := 0; d < cg.Dim; d++ {
		if cg.periodic[d] {
			n := cg.mother.Extent[d]
			g[d] = ((g[d] % n) + n) % n
		}
	}
	return g
}

// Owner finds the cuboid holding the global lattice position g, after the
// periodic wrap, and the local cell within it
func (cg *CuboidGeometry) Owner(g types.LatticeR) (iC int, l types.LatticeR, ok bool) {
	g = cg.WrapGlobal(g)
	for iC = range cg.cuboids {
		c := cg.cuboids[iC]
		off := cg.GlobalOffset(iC)
		l = g.Sub(off)
		inside := true
		for d := 0; d < cg.Dim; d++ {
			if l[d] < 0 || l[d] >= c.Extent[d] {
				inside = false
				break
			}
		}
		if inside {
			return iC, l, true
		}
	}
	return -1, types.LatticeR{}, false
}

// ForEachGhost visits the cells of cuboid iC in the overlap layer with the
// owner of each, skipping cells no cuboid owns
func (cg *CuboidGeometry) ForEachGhost(iC, overlap int, fn func(local types.LatticeR, owner int, ownerLocal types.LatticeR)) {
	var (
		c   = cg.cuboids[iC]
		off = cg.GlobalOffset(iC)
		lo  types.LatticeR
		hi  = c.Extent
	)
	for d := 0; d < cg.Dim; d++ {
		lo[d] = -overlap
		hi[d] = c.Extent[d] + overlap
	}
	var l types.LatticeR
	for l[0] = lo[0]; l[0] < hi[0]; l[0]++ {
		for l[1] = lo[1]; l[1] < hi[1]; l[1]++ {
			for l[2] = lo[2]; l[2] < hi[2]; l[2]++ {
				core := true
				for d := 0; d < cg.Dim; d++ {
					if l[d] < 0 || l[d] >= c.Extent[d] {
						core = false
					}
				}
				if core {
					continue
				}
				if owner, ol, ok := cg.Owner(off.Add(l)); ok {
					fn(l, owner, ol)
				}
			}
		}
	}
}

// Neighbourhood lists the other cuboids that own a cell within overlap of
// cuboid iC, periodic images included, in ascending order
func (cg *CuboidGeometry) Neighbourhood(iC, overlap int) (nbrs []int) {
	seen := make(map[int]bool)
	cg.ForEachGhost(iC, overlap, func(_ types.LatticeR, owner int, _ types.LatticeR) {
		if owner != iC {
			seen[owner] = true
		}
	})
	for jC := 0; jC < cg.Nc(); jC++ {
		if seen[jC] {
			nbrs = append(nbrs, jC)
		}
	}
	return
}

/*
Adjacency is the symmetric cuboid connectivity matrix. Entry (i,j) counts the
ghost cells of i owned by j plus those of j owned by i within overlap, the
volume of data exchanged between the two cuboids.
*/
func (cg *CuboidGeometry) Adjacency(overlap int) *sparse.CSR {
	var (
		nC  = cg.Nc()
		dok = sparse.NewDOK(nC, nC)
	)
	for iC := 0; iC < nC; iC++ {
		cg.ForEachGhost(iC, overlap, func(_ types.LatticeR, owner int, _ types.LatticeR) {
			if owner == iC {
				return
			}
			dok.Set(iC, owner, dok.At(iC, owner)+1)
			dok.Set(owner, iC, dok.At(owner, iC)+1)
		})
	}
	return dok.ToCSR()
}

// CheckTiling verifies that no two cuboids share a cell and that together
// they cover the mother cuboid
func (cg *CuboidGeometry) CheckTiling() error {
	if cg.Nc() == 0 {
		return ErrNoCuboids
	}
	total := 0
	for iC, c := range cg.cuboids {
		total += c.LatticeVolume()
		for jC := iC + 1; jC < cg.Nc(); jC++ {
			if c.CheckIntersCuboid(cg.cuboids[jC], 0) {
				return fmt.Errorf("cuboids %d and %d overlap", iC, jC)
			}
		}
	}
	if total != cg.mother.LatticeVolume() {
		return fmt.Errorf("cuboids hold %d cells, mother cuboid has %d",
			total, cg.mother.LatticeVolume())
	}
	return nil
}

func (cg *CuboidGeometry) MinLatticeVolume() (v int) {
	v = math.MaxInt
	for _, c := range cg.cuboids {
		v = min(v, c.LatticeVolume())
	}
	return
}

func (cg *CuboidGeometry) MaxLatticeVolume() (v int) {
	for _, c := range cg.cuboids {
		v = max(v, c.LatticeVolume())
	}
	return
}

func (cg *CuboidGeometry) TotalWeight() (w int) {
	for _, c := range cg.cuboids {
		w += c.Weight()
	}
	return
}

// Schema serializes the mother cuboid followed by every cuboid. Loading
// requires a geometry with the same number of cuboids.
func (cg *CuboidGeometry) Schema() (fields []serializer.Field) {
	fields = append(fields, cg.mother.Schema()...)
	for _, c := range cg.cuboids {
		fields = append(fields, c.Schema()...)
	}
	return
}

func (cg *CuboidGeometry) Print(logger *log.Logger) {
	logger.Printf("---Cuboid Structure Statistics---")
	logger.Printf(" Number of Cuboids:  %d", cg.Nc())
	logger.Printf(" Delta:              %g", cg.mother.Delta)
	logger.Printf(" Mother extent:      %v", cg.mother.Extent[:cg.Dim])
	logger.Printf(" Periodic:           %v", cg.periodic[:cg.Dim])
	if cg.Nc() > 0 {
		logger.Printf(" Min/Max nodes:      %d / %d", cg.MinLatticeVolume(), cg.MaxLatticeVolume())
	}
	logger.Printf(" Total weight:       %d", cg.TotalWeight())
	logger.Printf("--------------------------------")
}

// PrintExtended lists every cuboid
func (cg *CuboidGeometry) PrintExtended(logger *log.Logger) {
	logger.Printf("Index\tOrigin\tExtent\tWeight")
	for iC, c := range cg.cuboids {
		logger.Printf("%d\t%v\t%v\t%d", iC, c.Origin[:cg.Dim], c.Extent[:cg.Dim], c.Weight())
	}
}
