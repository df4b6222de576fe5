package cuboid

import "github.com/notargets/golbm/types"

/*
BlockLayout indexes the dense storage of one cuboid plus a layer of Padding
ghost cells on every side. Local coordinates run from -Padding to
Extent+Padding-1; z is never padded in two dimensions. Storage is x major.
*/
type BlockLayout struct {
	Dim     int
	Extent  types.LatticeR
	Padding int
	pad     types.LatticeR
	size    types.LatticeR
}

func NewBlockLayout(c *Cuboid, padding int) (bl BlockLayout) {
	bl = BlockLayout{Dim: c.Dim, Extent: c.Extent, Padding: padding}
	for d := 0; d < 3; d++ {
		if d < c.Dim {
			bl.pad[d] = padding
		}
		bl.size[d] = c.Extent[d] + 2*bl.pad[d]
	}
	return
}

// CellCount is the number of stored cells, ghosts included
func (bl BlockLayout) CellCount() int {
	return bl.size[0] * bl.size[1] * bl.size[2]
}

// CoreCount is the number of cells owned by the block
func (bl BlockLayout) CoreCount() int {
	return bl.Extent[0] * bl.Extent[1] * bl.Extent[2]
}

func (bl BlockLayout) Index(l types.LatticeR) int {
	return ((l[0]+bl.pad[0])*bl.size[1]+(l[1]+bl.pad[1]))*bl.size[2] + l[2] + bl.pad[2]
}

// Cell is the inverse of Index
func (bl BlockLayout) Cell(i int) (l types.LatticeR) {
	l[2] = i%bl.size[2] - bl.pad[2]
	i /= bl.size[2]
	l[1] = i%bl.size[1] - bl.pad[1]
	l[0] = i/bl.size[1] - bl.pad[0]
	return
}

// Contains is true for stored cells, ghosts included
func (bl BlockLayout) Contains(l types.LatticeR) bool {
	for d := 0; d < 3; d++ {
		if l[d] < -bl.pad[d] || l[d] >= bl.Extent[d]+bl.pad[d] {
			return false
		}
	}
	return true
}

func (bl BlockLayout) IsCore(l types.LatticeR) bool {
	for d := 0; d < 3; d++ {
		if l[d] < 0 || l[d] >= bl.Extent[d] {
			return false
		}
	}
	return true
}

func (bl BlockLayout) ForCore(fn func(l types.LatticeR)) {
	var l types.LatticeR
	for l[0] = 0; l[0] < bl.Extent[0]; l[0]++ {
		for l[1] = 0; l[1] < bl.Extent[1]; l[1]++ {
			for l[2] = 0; l[2] < bl.Extent[2]; l[2]++ {
				fn(l)
			}
		}
	}
}

func (bl BlockLayout) ForAll(fn func(l types.LatticeR)) {
	var l types.LatticeR
	for l[0] = -bl.pad[0]; l[0] < bl.Extent[0]+bl.pad[0]; l[0]++ {
		for l[1] = -bl.pad[1]; l[1] < bl.Extent[1]+bl.pad[1]; l[1]++ {
			for l[2] = -bl.pad[2]; l[2] < bl.Extent[2]+bl.pad[2]; l[2]++ {
				fn(l)
			}
		}
	}
}
