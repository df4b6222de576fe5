package lattice

import (
	"fmt"
	"sort"

	"github.com/notargets/golbm/cuboid"
	"github.com/notargets/golbm/geometry"
	"github.com/notargets/golbm/types"
)

type auxField struct {
	components int
	data       []float64
}

/*
BlockLattice holds Q populations per stored cell of one block, the dynamics
of every core cell and any number of named per cell fields. Streaming pulls
from the neighbours and relies on fresh ghost cells.
*/
type BlockLattice struct {
	desc     *Descriptor
	bg       *geometry.BlockGeometry
	layout   cuboid.BlockLayout
	f, fTmp  []float64
	dynamics []Dynamics
	fields   map[string]*auxField
	shifts   []int // Storage offset of the source cell of every direction
}

func NewBlockLattice(desc *Descriptor, bg *geometry.BlockGeometry) (bl *BlockLattice) {
	layout := bg.Layout()
	n := layout.CellCount()
	bl = &BlockLattice{
		desc:     desc,
		bg:       bg,
		layout:   layout,
		f:        make([]float64, n*desc.Q),
		fTmp:     make([]float64, n*desc.Q),
		dynamics: make([]Dynamics, n),
		fields:   make(map[string]*auxField),
		shifts:   make([]int, desc.Q),
	}
	for i := range bl.dynamics {
		bl.dynamics[i] = NoDynamics{}
	}
	origin := layout.Index(types.LatticeR{})
	for i, c := range desc.C {
		bl.shifts[i] = layout.Index(types.LatticeR{-c[0], -c[1], -c[2]}) - origin
	}
	return
}

func (bl *BlockLattice) Descriptor() *Descriptor           { return bl.desc }
func (bl *BlockLattice) Geometry() *geometry.BlockGeometry { return bl.bg }
func (bl *BlockLattice) Layout() cuboid.BlockLayout        { return bl.layout }
func (bl *BlockLattice) Populations() []float64            { return bl.f }

// Cell returns the populations of l
func (bl *BlockLattice) Cell(l types.LatticeR) []float64 {
	q := bl.desc.Q
	i := bl.layout.Index(l)
	return bl.f[i*q : (i+1)*q]
}

func (bl *BlockLattice) Dynamics(l types.LatticeR) Dynamics {
	return bl.dynamics[bl.layout.Index(l)]
}

func (bl *BlockLattice) DefineDynamics(l types.LatticeR, dyn Dynamics) {
	bl.dynamics[bl.layout.Index(l)] = dyn
}

func (bl *BlockLattice) IniEquilibrium(l types.LatticeR, rho float64, u types.Vector) {
	equilibrium(bl.desc, bl.Cell(l), rho, u)
}

func (bl *BlockLattice) Moments(l types.LatticeR) (rho float64, u types.Vector) {
	return bl.desc.Moments(bl.Cell(l))
}

// AddField allocates a named field with the given number of components per
// cell; adding an existing name is a no op if the width matches
func (bl *BlockLattice) AddField(name string, components int) error {
	if af, ok := bl.fields[name]; ok {
		if af.components != components {
			return fmt.Errorf("field %s exists with %d components", name, af.components)
		}
		return nil
	}
	bl.fields[name] = &auxField{
		components: components,
		data:       make([]float64, components*bl.layout.CellCount()),
	}
	return nil
}

// Field returns the storage of a named field, nil if unknown
func (bl *BlockLattice) Field(name string) []float64 {
	if af, ok := bl.fields[name]; ok {
		return af.data
	}
	return nil
}

func (bl *BlockLattice) FieldNames() (names []string) {
	for name := range bl.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func (bl *BlockLattice) Collide() {
	q := bl.desc.Q
	bl.layout.ForCore(func(l types.LatticeR) {
		i := bl.layout.Index(l)
		bl.dynamics[i].Collide(bl.desc, bl.f[i*q:(i+1)*q])
	})
}

// Stream moves every population one step along its velocity
func (bl *BlockLattice) Stream() {
	q := bl.desc.Q
	bl.layout.ForCore(func(l types.LatticeR) {
		cell := bl.layout.Index(l)
		for i, shift := range bl.shifts {
			bl.fTmp[cell*q+i] = bl.f[(cell+shift)*q+i]
		}
	})
	bl.layout.ForCore(func(l types.LatticeR) {
		cell := bl.layout.Index(l)
		copy(bl.f[cell*q:(cell+1)*q], bl.fTmp[cell*q:(cell+1)*q])
	})
}

// Mass sums all populations of the core cells
func (bl *BlockLattice) Mass() (m float64) {
	bl.layout.ForCore(func(l types.LatticeR) {
		for _, fi := range bl.Cell(l) {
			m += fi
		}
	})
	return
}
