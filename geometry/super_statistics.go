package geometry

import (
	"fmt"
	"log"
	"sort"

	"github.com/notargets/golbm/parallel"
	"github.com/notargets/golbm/types"
)

/*
SuperGeometryStatistics aggregates the block statistics of all ranks. Every
query first runs Update, which is collective: the dirty flag is united over
all ranks, dirty blocks are rescanned and the per material counts and bounds
are reduced. Queries therefore have to be issued on every rank in the same
order.
*/
type SuperGeometryStatistics struct {
	sg             *SuperGeometry
	dirty          bool
	recomputations int
	seen           []int // Block recomputation counters at the last reduction
	counts         map[int]int
	minR, maxR     map[int]types.Vector
	logger         *log.Logger
}

func newSuperGeometryStatistics(sg *SuperGeometry) *SuperGeometryStatistics {
	return &SuperGeometryStatistics{
		sg:     sg,
		dirty:  true,
		seen:   make([]int, len(sg.blocks)),
		logger: sg.ctx.Logger("SuperGeometryStatistics"),
	}
}

func (st *SuperGeometryStatistics) SetDirty() { st.dirty = true }

// Recomputations counts the global reductions done so far
func (st *SuperGeometryStatistics) Recomputations() int { return st.recomputations }

func (st *SuperGeometryStatistics) localDirty() bool {
	if st.dirty {
		return true
	}
	// A block rescanned by a block level query is clean but not yet reduced
	for iCloc, bg := range st.sg.blocks {
		if bg.stats.Dirty() || bg.stats.Recomputations() != st.seen[iCloc] {
			return true
		}
	}
	return false
}

// Update is collective and reports whether a reduction took place
func (st *SuperGeometryStatistics) Update() bool {
	comm := st.sg.ctx.Comm
	flag := 0
	if st.localDirty() {
		flag = 1
	}
	if comm.AllreduceInt(parallel.OpLor, flag) == 0 {
		return false
	}
	updated := 0
	for iCloc, bg := range st.sg.blocks {
		bg.stats.Update()
		if r := bg.stats.Recomputations(); r != st.seen[iCloc] {
			st.seen[iCloc] = r
			updated++
		}
	}
	if comm.AllreduceInt(parallel.OpSum, updated) == 0 && st.counts != nil {
		st.dirty = false
		return false
	}
	st.reduce()
	st.dirty = false
	st.recomputations++
	return true
}

// reduce gathers [material, count] pairs and the matching bounds of every
// rank and folds them in rank order
func (st *SuperGeometryStatistics) reduce() {
	var (
		comm   = st.sg.ctx.Comm
		counts = make(map[int]int)
		minR   = make(map[int]types.Vector)
		maxR   = make(map[int]types.Vector)
	)
	for _, bg := range st.sg.blocks {
		for _, m := range bg.stats.Materials() {
			fold(counts, minR, maxR, m, bg.stats.NVoxel(m), bg.stats.MinPhysR(m), bg.stats.MaxPhysR(m))
		}
	}
	var (
		ids    = sortedKeys(counts)
		ints   = make([]int, 0, 2*len(ids))
		bounds = make([]float64, 0, 6*len(ids))
	)
	for _, m := range ids {
		lo, hi := minR[m], maxR[m]
		ints = append(ints, m, counts[m])
		bounds = append(bounds, lo[:]...)
		bounds = append(bounds, hi[:]...)
	}
	var (
		allInts   = comm.AllgatherInts(ints)
		allBounds = comm.AllgatherFloats(bounds)
	)
	st.counts = make(map[int]int)
	st.minR = make(map[int]types.Vector)
	st.maxR = make(map[int]types.Vector)
	for r := range allInts {
		for k := 0; k < len(allInts[r])/2; k++ {
			var lo, hi types.Vector
			copy(lo[:], allBounds[r][6*k:6*k+3])
			copy(hi[:], allBounds[r][6*k+3:6*k+6])
			fold(st.counts, st.minR, st.maxR, allInts[r][2*k], allInts[r][2*k+1], lo, hi)
		}
	}
}

func fold(counts map[int]int, minR, maxR map[int]types.Vector, m, n int, lo, hi types.Vector) {
	if n == 0 {
		return
	}
	if _, ok := counts[m]; !ok {
		counts[m], minR[m], maxR[m] = n, lo, hi
		return
	}
	counts[m] += n
	minR[m] = minR[m].Min(lo)
	maxR[m] = maxR[m].Max(hi)
}

func sortedKeys(m map[int]int) (keys []int) {
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return
}

// Materials lists the material ids present on any rank, ascending
func (st *SuperGeometryStatistics) Materials() []int {
	st.Update()
	return sortedKeys(st.counts)
}

func (st *SuperGeometryStatistics) NMaterials() int {
	return len(st.Materials())
}

// NVoxel is the global count of material m, 0 for unknown materials
func (st *SuperGeometryStatistics) NVoxel(m int) int {
	st.Update()
	return st.counts[m]
}

// NVoxelTotal is the global count of non empty cells
func (st *SuperGeometryStatistics) NVoxelTotal() (n int) {
	st.Update()
	for m, c := range st.counts {
		if m != types.MaterialEmpty {
			n += c
		}
	}
	return
}

func (st *SuperGeometryStatistics) MinPhysR(m int) types.Vector {
	st.Update()
	return st.minR[m]
}

func (st *SuperGeometryStatistics) MaxPhysR(m int) types.Vector {
	st.Update()
	return st.maxR[m]
}

func (st *SuperGeometryStatistics) PhysExtent(m int) types.Vector {
	return st.MaxPhysR(m).Sub(st.MinPhysR(m))
}

func (st *SuperGeometryStatistics) PhysRadius(m int) types.Vector {
	return st.PhysExtent(m).Scale(.5)
}

func (st *SuperGeometryStatistics) CenterPhysR(m int) types.Vector {
	return st.MinPhysR(m).Add(st.PhysRadius(m))
}

/*
ComputeNormal averages the block normals of material m weighted by the
number of cells each block holds and normalises the result. Without cells
of m it returns the zero vector exactly.
*/
func (st *SuperGeometryStatistics) ComputeNormal(m int) (normal types.Vector) {
	var (
		dim   = st.sg.Dim()
		local = make([]float64, dim)
	)
	nVoxel := st.NVoxel(m)
	for _, bg := range st.sg.blocks {
		if n := bg.stats.NVoxel(m); n != 0 {
			bn := bg.stats.ComputeNormal(m)
			for d := 0; d < dim; d++ {
				local[d] += bn[d] * float64(n)
			}
		}
	}
	sum := st.sg.ctx.Comm.AllreduceFloats(parallel.OpSum, local)
	copy(normal[:], sum)
	if nVoxel != 0 {
		normal = normal.Scale(1 / float64(nVoxel))
	} else if normal != (types.Vector{}) {
		panic(fmt.Errorf("material %d has no cells but a normal %v", m, normal))
	}
	if n := normal.Norm(); n > 0 {
		normal = normal.Scale(1 / n)
	}
	return
}

func (st *SuperGeometryStatistics) ComputeDiscreteNormal(m int, maxNorm float64) types.LatticeR {
	return discreteNormal(st.ComputeNormal(m), st.sg.Dim(), maxNorm)
}

// Type classifies cell l of cuboid iC, which must be local
func (st *SuperGeometryStatistics) Type(iC int, l types.LatticeR) []int {
	sg := st.sg
	if !sg.lb.IsLocal(iC) {
		return make([]int, sg.Dim()+1)
	}
	return sg.blocks[sg.lb.Loc(iC)].stats.Type(l)
}

func (st *SuperGeometryStatistics) Print(logger *log.Logger) {
	for _, m := range st.Materials() {
		lo, hi := st.minR[m], st.maxR[m]
		if st.sg.Dim() == 2 {
			logger.Printf("materialNumber=%d; count=%d; minPhysR=(%g,%g); maxPhysR=(%g,%g)",
				m, st.counts[m], lo[0], lo[1], hi[0], hi[1])
			continue
		}
		logger.Printf("materialNumber=%d; count=%d; minPhysR=(%g,%g,%g); maxPhysR=(%g,%g,%g)",
			m, st.counts[m], lo[0], lo[1], lo[2], hi[0], hi[1], hi[2])
	}
}
