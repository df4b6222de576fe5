package communication

import (
	"fmt"
	"testing"

	"github.com/notargets/golbm/cuboid"
	"github.com/notargets/golbm/loadbalancer"
	"github.com/notargets/golbm/parallel"
	"github.com/notargets/golbm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func globalID(g types.LatticeR) int { return g[0]*1000 + g[1] }

// haloRun fills the core of every local block with its global id, exchanges
// and checks every ghost cell against the id of the cell it mirrors
func haloRun(t *testing.T, np, nC, width int, periodic bool) {
	err := parallel.Run(np, parallel.Options{LogMode: parallel.Quiet}, func(ctx *parallel.RuntimeContext) error {
		mother, err := cuboid.NewCuboid(2, types.Vector{}, 1, types.LatticeR{12, 9, 1})
		if err != nil {
			return err
		}
		cg, err := cuboid.NewCuboidGeometry(mother, nC)
		if err != nil {
			return err
		}
		cg.SetPeriodicity(periodic, periodic, false)
		lb, err := loadbalancer.New(loadbalancer.RoundRobin{}, cg, ctx.Rank(), ctx.Size(), width)
		if err != nil {
			return err
		}
		var (
			layouts = make([]cuboid.BlockLayout, lb.Size())
			ids     = make([][]int, lb.Size())
			vel     = make([][]float64, lb.Size())
		)
		for iCloc := range layouts {
			iC := lb.Glob(iCloc)
			bl := cuboid.NewBlockLayout(cg.Get(iC), 2)
			layouts[iCloc] = bl
			ids[iCloc] = make([]int, bl.CellCount())
			vel[iCloc] = make([]float64, 2*bl.CellCount())
			for i := range ids[iCloc] {
				ids[iCloc][i] = -1
			}
			off := cg.GlobalOffset(iC)
			bl.ForCore(func(l types.LatticeR) {
				id := globalID(off.Add(l))
				ids[iCloc][bl.Index(l)] = id
				vel[iCloc][2*bl.Index(l)] = float64(id)
				vel[iCloc][2*bl.Index(l)+1] = -float64(id)
			})
		}
		comm := NewCommunicator(ctx, cg, lb, layouts)
		comm.RequestField(NewField("material", 1, ids))
		comm.RequestField(NewField("velocity", 2, vel))
		if err = comm.RequestOverlap(3); err == nil {
			return fmt.Errorf("overlap beyond padding accepted")
		}
		if err = comm.Communicate(); err != ErrNotReady {
			return fmt.Errorf("communicate before exchange returned %v", err)
		}
		if err = comm.RequestOverlap(width); err != nil {
			return err
		}
		if err = comm.ExchangeRequests(); err != nil {
			return err
		}
		if err = comm.Communicate(); err != nil {
			return err
		}
		for iCloc, bl := range layouts {
			iC := lb.Glob(iCloc)
			off := cg.GlobalOffset(iC)
			var failure error
			bl.ForAll(func(l types.LatticeR) {
				if failure != nil {
					return
				}
				i := bl.Index(l)
				inHalo := true
				for d := 0; d < 2; d++ {
					if l[d] < -width || l[d] >= bl.Extent[d]+width {
						inHalo = false
					}
				}
				want := -1
				if _, _, ok := cg.Owner(off.Add(l)); ok && inHalo {
					want = globalID(cg.WrapGlobal(off.Add(l)))
				}
				if ids[iCloc][i] != want {
					failure = fmt.Errorf("rank %d cuboid %d cell %v: have %d, want %d",
						ctx.Rank(), iC, l, ids[iCloc][i], want)
				}
				if want >= 0 && (vel[iCloc][2*i] != float64(want) || vel[iCloc][2*i+1] != -float64(want)) {
					failure = fmt.Errorf("rank %d cuboid %d cell %v: velocity %v",
						ctx.Rank(), iC, l, vel[iCloc][2*i:2*i+2])
				}
			})
			if failure != nil {
				return failure
			}
		}
		// A second exchange moves the same cells again
		return comm.Communicate()
	})
	require.NoError(t, err)
}

func TestCommunicatorHalo(t *testing.T) {
	for _, tc := range []struct {
		np, nC, width int
		periodic      bool
	}{
		{1, 1, 1, true},
		{1, 4, 1, false},
		{2, 4, 1, true},
		{3, 6, 2, true},
		{4, 4, 1, false},
		{2, 5, 2, false},
	} {
		t.Run(fmt.Sprintf("np%d_nc%d_w%d_p%v", tc.np, tc.nC, tc.width, tc.periodic), func(t *testing.T) {
			haloRun(t, tc.np, tc.nC, tc.width, tc.periodic)
		})
	}
}

func TestBlockField(t *testing.T) {
	f := NewField("f", 2, [][]float64{{0, 1, 2, 3, 4, 5}, make([]float64, 6)})
	assert.Equal(t, "f", f.Name())
	assert.Equal(t, 2, f.Components())
	buf := f.Gather(0, []int{2, 0})
	assert.Equal(t, []float64{4, 5, 0, 1}, buf)
	require.NoError(t, f.Scatter(1, []int{1, 2}, buf))
	assert.Equal(t, []float64{0, 0, 4, 5, 0, 1}, f.Blocks[1])
	assert.Error(t, f.Scatter(1, []int{1}, buf))
	assert.Error(t, f.Scatter(1, []int{1, 2}, []int{1, 2, 3, 4}))
	f.Copy(0, []int{1}, 1, []int{0})
	assert.Equal(t, []float64{2, 3, 4, 5, 0, 1}, f.Blocks[1])
}
