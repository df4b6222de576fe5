package geometry

import (
	"log"
	"math"
	"sort"

	"github.com/notargets/golbm/types"
	"gonum.org/v1/gonum/floats"
)

// Boundary cell classes returned in the first entry of Type
const (
	TypeNone = iota
	TypeFlat
	TypeExternalCorner
	TypeInternalCorner
)

type materialStats struct {
	n          int
	minL, maxL types.LatticeR
	minR, maxR types.Vector
}

/*
BlockGeometryStatistics caches per material counts and bounds of the core
cells of one block. It is dirty after any mutation of the block and Update
rescans only then.
*/
type BlockGeometryStatistics struct {
	bg             *BlockGeometry
	dirty          bool
	recomputations int
	materials      map[int]*materialStats
}

func newBlockGeometryStatistics(bg *BlockGeometry) *BlockGeometryStatistics {
	return &BlockGeometryStatistics{bg: bg, dirty: true}
}

func (st *BlockGeometryStatistics) SetDirty()   { st.dirty = true }
func (st *BlockGeometryStatistics) Dirty() bool { return st.dirty }

// Recomputations counts the full scans done so far
func (st *BlockGeometryStatistics) Recomputations() int { return st.recomputations }

// Update rescans the block if it is dirty and reports whether it did
func (st *BlockGeometryStatistics) Update() bool {
	if !st.dirty {
		return false
	}
	var (
		bg = st.bg
		bl = bg.layout
	)
	st.materials = make(map[int]*materialStats)
	bl.ForCore(func(l types.LatticeR) {
		m := bg.materials[bl.Index(l)]
		x := bg.PhysR(l)
		ms, ok := st.materials[m]
		if !ok {
			st.materials[m] = &materialStats{n: 1, minL: l, maxL: l, minR: x, maxR: x}
			return
		}
		ms.n++
		for d := 0; d < 3; d++ {
			ms.minL[d] = min(ms.minL[d], l[d])
			ms.maxL[d] = max(ms.maxL[d], l[d])
		}
		ms.minR = ms.minR.Min(x)
		ms.maxR = ms.maxR.Max(x)
	})
	st.dirty = false
	st.recomputations++
	return true
}

func (st *BlockGeometryStatistics) lookup(m int) (ms *materialStats, ok bool) {
	st.Update()
	ms, ok = st.materials[m]
	return
}

// Materials lists the material ids present, ascending
func (st *BlockGeometryStatistics) Materials() (ids []int) {
	st.Update()
	for m := range st.materials {
		ids = append(ids, m)
	}
	sort.Ints(ids)
	return
}

func (st *BlockGeometryStatistics) NMaterials() int { return len(st.Materials()) }

func (st *BlockGeometryStatistics) NVoxel(m int) int {
	if ms, ok := st.lookup(m); ok {
		return ms.n
	}
	return 0
}

// NVoxelTotal counts all non empty cells
func (st *BlockGeometryStatistics) NVoxelTotal() (n int) {
	st.Update()
	for m, ms := range st.materials {
		if m != types.MaterialEmpty {
			n += ms.n
		}
	}
	return
}

func (st *BlockGeometryStatistics) MinLatticeR(m int) types.LatticeR {
	if ms, ok := st.lookup(m); ok {
		return ms.minL
	}
	return types.LatticeR{}
}

func (st *BlockGeometryStatistics) MaxLatticeR(m int) types.LatticeR {
	if ms, ok := st.lookup(m); ok {
		return ms.maxL
	}
	return types.LatticeR{}
}

func (st *BlockGeometryStatistics) MinPhysR(m int) types.Vector {
	if ms, ok := st.lookup(m); ok {
		return ms.minR
	}
	return types.Vector{}
}

func (st *BlockGeometryStatistics) MaxPhysR(m int) types.Vector {
	if ms, ok := st.lookup(m); ok {
		return ms.maxR
	}
	return types.Vector{}
}

func (st *BlockGeometryStatistics) LatticeExtent(m int) (e types.LatticeR) {
	if ms, ok := st.lookup(m); ok {
		e = ms.maxL.Sub(ms.minL).Add(types.LatticeR{1, 1, 1})
	}
	return
}

func (st *BlockGeometryStatistics) PhysExtent(m int) types.Vector {
	return st.MaxPhysR(m).Sub(st.MinPhysR(m))
}

func (st *BlockGeometryStatistics) PhysRadius(m int) types.Vector {
	return st.PhysExtent(m).Scale(.5)
}

func (st *BlockGeometryStatistics) CenterPhysR(m int) types.Vector {
	return st.MinPhysR(m).Add(st.PhysRadius(m))
}

/*
ComputeNormal sums, over all cells of material m, the axis directions in
which a fluid neighbour lies and returns the normalised sum. A fluid cell on
the plus side outweighs one on the minus side. Without cells of m the result
is the zero vector.
*/
func (st *BlockGeometryStatistics) ComputeNormal(m int) (normal types.Vector) {
	var (
		bg  = st.bg
		dim = bg.Dim()
	)
	if st.NVoxel(m) == 0 {
		return
	}
	bg.layout.ForCore(func(l types.LatticeR) {
		if bg.Get(l) != m {
			return
		}
		for d := 0; d < dim; d++ {
			var e types.LatticeR
			e[d] = 1
			v := 0.
			if bg.Get(l.Sub(e)) == types.MaterialFluid {
				v = -1
			}
			if bg.Get(l.Add(e)) == types.MaterialFluid {
				v = 1
			}
			normal[d] += v
		}
	})
	normalize(normal[:dim])
	return
}

func normalize(v []float64) {
	if n := floats.Norm(v, 2); n > 0 {
		floats.Scale(1/n, v)
	}
}

// ComputeDiscreteNormal quantizes ComputeNormal(m) onto the lattice
func (st *BlockGeometryStatistics) ComputeDiscreteNormal(m int, maxNorm float64) types.LatticeR {
	return discreteNormal(st.ComputeNormal(m), st.bg.Dim(), maxNorm)
}

/*
discreteNormal picks the lattice offset with components in {-1,0,1} and
length below maxNorm closest in angle to normal. Offsets are scanned x
outermost from -1 to 1; on equal scores the later offset wins.
*/
func discreteNormal(normal types.Vector, dim int, maxNorm float64) (dn types.LatticeR) {
	zLo, zHi := 0, 0
	if dim == 3 {
		zLo, zHi = -1, 1
	}
	best := 0.
	var o types.LatticeR
	for o[0] = -1; o[0] <= 1; o[0]++ {
		for o[1] = -1; o[1] <= 1; o[1]++ {
			for o[2] = zLo; o[2] <= zHi; o[2]++ {
				norm := math.Sqrt(float64(o[0]*o[0] + o[1]*o[1] + o[2]*o[2]))
				if norm <= 0 || norm >= maxNorm {
					continue
				}
				if score := normal.Dot(o.ToVector()) / norm; score >= best {
					best = score
					dn = o
				}
			}
		}
	}
	return
}

/*
Type classifies a boundary cell from the fluid around it and returns
[class, nx, ny] in 2D and [class, nx, ny, nz] in 3D. The normal points away
from the fluid. Fluid and empty cells, cells without fluid around them and
cells whose normal cancels out are TypeNone with a zero normal; the last
case is logged.
*/
func (st *BlockGeometryStatistics) Type(l types.LatticeR) []int {
	var (
		bg     = st.bg
		dim    = bg.Dim()
		result = make([]int, dim+1)
		m      = bg.Get(l)
	)
	if m == types.MaterialEmpty || m == types.MaterialFluid {
		return result
	}
	var (
		sum   types.LatticeR
		faces int
		class int
	)
	for d := 0; d < dim; d++ {
		for _, s := range []int{-1, 1} {
			var e types.LatticeR
			e[d] = s
			if bg.Get(l.Add(e)) == types.MaterialFluid {
				sum = sum.Add(e)
				faces++
			}
		}
	}
	switch {
	case faces == 1:
		class = TypeFlat
	case faces > 1:
		class = TypeInternalCorner
	default:
		for _, o := range types.Neighbourhood(dim) {
			if bg.Get(l.Add(o)) == types.MaterialFluid {
				sum = sum.Add(o)
				class = TypeExternalCorner
			}
		}
	}
	if class == TypeNone {
		return result
	}
	zero := true
	for d := 0; d < dim; d++ {
		n := -sum[d]
		n = max(-1, min(1, n))
		result[d+1] = n
		if n != 0 {
			zero = false
		}
	}
	if zero {
		bg.logger.Printf("cuboid %d: no valid discrete normal at %v", bg.iC, l)
		return make([]int, dim+1)
	}
	result[0] = class
	return result
}

func (st *BlockGeometryStatistics) Print(logger *log.Logger) {
	for _, m := range st.Materials() {
		ms := st.materials[m]
		logger.Printf("materialNumber=%d; count=%d; minLatticeR=%v; maxLatticeR=%v",
			m, ms.n, ms.minL, ms.maxL)
	}
}
