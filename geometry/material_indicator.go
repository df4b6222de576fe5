package geometry

import (
	"slices"

	"github.com/notargets/golbm/types"
)

// MaterialIndicator selects the cells carrying any of a set of materials
type MaterialIndicator struct {
	sg  *SuperGeometry
	ids []int
}

func NewMaterialIndicator(sg *SuperGeometry, ids ...int) *MaterialIndicator {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	return &MaterialIndicator{sg: sg, ids: slices.Compact(ids)}
}

func (mi *MaterialIndicator) IDs() []int { return mi.ids }

// Contains tests cell l of local block iCloc, ghosts included
func (mi *MaterialIndicator) Contains(iCloc int, l types.LatticeR) bool {
	_, found := slices.BinarySearch(mi.ids, mi.sg.blocks[iCloc].Get(l))
	return found
}

// ForEach visits the core cells of local block iCloc that are selected
func (mi *MaterialIndicator) ForEach(iCloc int, fn func(l types.LatticeR)) {
	bl := mi.sg.blocks[iCloc].layout
	bl.ForCore(func(l types.LatticeR) {
		if mi.Contains(iCloc, l) {
			fn(l)
		}
	})
}

// Empty is true when no local core cell is selected
func (mi *MaterialIndicator) Empty(iCloc int) bool {
	st := mi.sg.blocks[iCloc].stats
	for _, m := range mi.ids {
		if st.NVoxel(m) > 0 {
			return false
		}
	}
	return true
}
