// Package geometry holds the material tag of every lattice cell, per cuboid
// and across all ranks, and the statistics derived from it.
package geometry

import (
	"log"

	"github.com/notargets/golbm/cuboid"
	"github.com/notargets/golbm/functors/indicator"
	"github.com/notargets/golbm/serializer"
	"github.com/notargets/golbm/types"
)

/*
BlockGeometry stores one material id per cell of a cuboid and its ghost
layer. Mutations only touch core cells; ghosts are refreshed by the owning
SuperGeometry. Every mutation marks the statistics dirty.
*/
type BlockGeometry struct {
	iC        int // Global cuboid id
	cuboid    *cuboid.Cuboid
	layout    cuboid.BlockLayout
	materials []int
	stats     *BlockGeometryStatistics
	logger    *log.Logger
}

func NewBlockGeometry(iC int, c *cuboid.Cuboid, padding int, logger *log.Logger) (bg *BlockGeometry) {
	bg = &BlockGeometry{
		iC:     iC,
		cuboid: c,
		layout: cuboid.NewBlockLayout(c, padding),
		logger: logger,
	}
	bg.materials = make([]int, bg.layout.CellCount())
	bg.stats = newBlockGeometryStatistics(bg)
	return
}

func (bg *BlockGeometry) Cuboid() *cuboid.Cuboid     { return bg.cuboid }
func (bg *BlockGeometry) Layout() cuboid.BlockLayout { return bg.layout }
func (bg *BlockGeometry) GlobalID() int              { return bg.iC }
func (bg *BlockGeometry) Materials() []int           { return bg.materials }
func (bg *BlockGeometry) Dim() int                   { return bg.cuboid.Dim }

func (bg *BlockGeometry) PhysR(l types.LatticeR) types.Vector {
	return bg.cuboid.PhysR(l)
}

func (bg *BlockGeometry) Statistics() *BlockGeometryStatistics { return bg.stats }

// Get returns the material at l, 0 outside the stored cells
func (bg *BlockGeometry) Get(l types.LatticeR) int {
	if !bg.layout.Contains(l) {
		return types.MaterialEmpty
	}
	return bg.materials[bg.layout.Index(l)]
}

func (bg *BlockGeometry) Set(l types.LatticeR, m int) {
	i := bg.layout.Index(l)
	if bg.materials[i] != m {
		bg.materials[i] = m
		bg.stats.SetDirty()
	}
}

// apply sets every cell in cells to m and reports how many changed
func (bg *BlockGeometry) apply(cells []types.LatticeR, m int) int {
	for _, l := range cells {
		bg.materials[bg.layout.Index(l)] = m
	}
	if len(cells) > 0 {
		bg.stats.SetDirty()
	}
	return len(cells)
}

// selectCore collects the core cells of material from passing pred. All
// decisions are taken before anything changes, so the result does not
// depend on the scan order.
func (bg *BlockGeometry) selectCore(from int, pred func(l types.LatticeR) bool) (cells []types.LatticeR) {
	bg.layout.ForCore(func(l types.LatticeR) {
		if bg.materials[bg.layout.Index(l)] == from && (pred == nil || pred(l)) {
			cells = append(cells, l)
		}
	})
	return
}

// anyNeighbour tests the 3^dim stencil around l
func (bg *BlockGeometry) anyNeighbour(l types.LatticeR, fn func(m int) bool) bool {
	for _, o := range types.Neighbourhood(bg.Dim()) {
		if fn(bg.Get(l.Add(o))) {
			return true
		}
	}
	return false
}

// Rename replaces material from by to
func (bg *BlockGeometry) Rename(from, to int) int {
	return bg.apply(bg.selectCore(from, nil), to)
}

// RenameIn replaces material from by to where ind contains the cell centre
func (bg *BlockGeometry) RenameIn(from, to int, ind indicator.Indicator) int {
	return bg.apply(bg.selectCore(from, func(l types.LatticeR) bool {
		return ind.Contains(bg.PhysR(l))
	}), to)
}

// RenameOffset replaces material from by to where every cell within offset
// along each axis is of material from as well
func (bg *BlockGeometry) RenameOffset(from, to int, offset types.LatticeR) int {
	return bg.apply(bg.selectCore(from, func(l types.LatticeR) bool {
		var o types.LatticeR
		for o[0] = -offset[0]; o[0] <= offset[0]; o[0]++ {
			for o[1] = -offset[1]; o[1] <= offset[1]; o[1]++ {
				for o[2] = -offset[2]; o[2] <= offset[2]; o[2]++ {
					n := l.Add(o)
					if !bg.layout.Contains(n) || bg.Get(n) != from {
						return false
					}
				}
			}
		}
		return true
	}), to)
}

// RenameNextTo replaces material from by to where ind contains the cell and
// a neighbour carries material next
func (bg *BlockGeometry) RenameNextTo(from, to, next int, ind indicator.Indicator) int {
	return bg.apply(bg.selectCore(from, func(l types.LatticeR) bool {
		return ind.Contains(bg.PhysR(l)) &&
			bg.anyNeighbour(l, func(m int) bool { return m == next })
	}), to)
}

// Clean empties boundary cells without a fluid neighbour
func (bg *BlockGeometry) Clean() (n int) {
	var cells []types.LatticeR
	bg.layout.ForCore(func(l types.LatticeR) {
		m := bg.Get(l)
		if m == types.MaterialEmpty || m == types.MaterialFluid {
			return
		}
		if !bg.anyNeighbour(l, func(m int) bool { return m == types.MaterialFluid }) {
			cells = append(cells, l)
		}
	})
	return bg.apply(cells, types.MaterialEmpty)
}

// OuterClean empties fluid cells touching empty cells
func (bg *BlockGeometry) OuterClean() int {
	return bg.apply(bg.selectCore(types.MaterialFluid, func(l types.LatticeR) bool {
		return bg.anyNeighbour(l, func(m int) bool { return m == types.MaterialEmpty })
	}), types.MaterialEmpty)
}

// InnerClean turns boundary cells surrounded by fluid on all sides into
// fluid
func (bg *BlockGeometry) InnerClean() int {
	var cells []types.LatticeR
	bg.layout.ForCore(func(l types.LatticeR) {
		m := bg.Get(l)
		if m == types.MaterialEmpty || m == types.MaterialFluid {
			return
		}
		if bg.surroundedByFluid(l) {
			cells = append(cells, l)
		}
	})
	return bg.apply(cells, types.MaterialFluid)
}

// InnerCleanMaterial is InnerClean restricted to cells of material from
func (bg *BlockGeometry) InnerCleanMaterial(from int) int {
	if from == types.MaterialFluid {
		return 0
	}
	return bg.apply(bg.selectCore(from, bg.surroundedByFluid), types.MaterialFluid)
}

func (bg *BlockGeometry) surroundedByFluid(l types.LatticeR) bool {
	return !bg.anyNeighbour(l, func(m int) bool { return m != types.MaterialFluid })
}

// CheckForErrors reports empty cells next to fluid, which leave the fluid
// without a boundary. It only logs.
func (bg *BlockGeometry) CheckForErrors(verbose bool) (errs int) {
	bg.layout.ForCore(func(l types.LatticeR) {
		if bg.Get(l) != types.MaterialEmpty {
			return
		}
		if bg.anyNeighbour(l, func(m int) bool { return m == types.MaterialFluid }) {
			errs++
			if verbose {
				bg.logger.Printf("cuboid %d: empty cell %v next to fluid", bg.iC, l)
			}
		}
	})
	return
}

func (bg *BlockGeometry) Schema() []serializer.Field {
	return []serializer.Field{{Name: "materials", Value: bg.materials}}
}

func (bg *BlockGeometry) PostLoad() error {
	bg.stats.SetDirty()
	return nil
}
