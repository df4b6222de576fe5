package lattice

import (
	"fmt"
	"math"
	"testing"

	"github.com/notargets/golbm/cuboid"
	"github.com/notargets/golbm/functors/indicator"
	"github.com/notargets/golbm/geometry"
	"github.com/notargets/golbm/loadbalancer"
	"github.com/notargets/golbm/parallel"
	"github.com/notargets/golbm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptors(t *testing.T) {
	for _, d := range []*Descriptor{D2Q9, D3Q19} {
		assert.Len(t, d.W, d.Q)
		assert.Equal(t, types.LatticeR{}, d.C[0])
		for i := range d.C {
			assert.Equal(t, i, d.Opposite[d.Opposite[i]])
		}
		var (
			rho = 1.2
			u   = types.Vector{.03, -.02, 0}
			f   = make([]float64, d.Q)
		)
		if d.D == 3 {
			u[2] = .01
		}
		equilibrium(d, f, rho, u)
		r, v := d.Moments(f)
		assert.InDelta(t, rho, r, 1e-14)
		for k := 0; k < 3; k++ {
			assert.InDelta(t, u[k], v[k], 1e-14)
		}
		// A BGK collision at equilibrium changes nothing
		g := append([]float64(nil), f...)
		BGK{Omega: 1.5}.Collide(d, g)
		assert.InDeltaSlice(t, f, g, 1e-13)
		h := append([]float64(nil), g...)
		BounceBack{}.Collide(d, h)
		for i := range g {
			assert.Equal(t, g[d.Opposite[i]], h[i])
		}
	}
	_, err := DescriptorByName("D2Q7")
	assert.Error(t, err)
	d, err := DescriptorByName("d3q19")
	require.NoError(t, err)
	assert.Equal(t, 19, d.Q)
}

// withLattice builds a periodic or closed box on np ranks
func withLattice(t *testing.T, np int, extent types.LatticeR, periodic bool, desc *Descriptor,
	fn func(sl *SuperLattice) error) {
	err := parallel.Run(np, parallel.Options{LogMode: parallel.Quiet}, func(ctx *parallel.RuntimeContext) error {
		mother, err := cuboid.NewCuboid(desc.D, types.Vector{}, 1, extent)
		if err != nil {
			return err
		}
		cg, err := cuboid.NewCuboidGeometry(mother, 2*np)
		if err != nil {
			return err
		}
		cg.SetPeriodicity(periodic, periodic, periodic)
		lb, err := loadbalancer.New(loadbalancer.Heuristic{}, cg, ctx.Rank(), ctx.Size(), 1)
		if err != nil {
			return err
		}
		sg, err := geometry.NewSuperGeometry(ctx, cg, lb, 1)
		if err != nil {
			return err
		}
		if periodic {
			sg.Rename(types.MaterialEmpty, types.MaterialFluid)
		} else {
			var inner *indicator.SDF
			e, o := types.Vector{}, types.Vector{}
			for d := 0; d < desc.D; d++ {
				e[d], o[d] = float64(extent[d]-2), .5
			}
			if desc.D == 2 {
				inner, err = indicator.Cuboid2D(e, o)
			} else {
				inner, err = indicator.Cuboid3D(e, o)
			}
			if err != nil {
				return err
			}
			sg.Rename(types.MaterialEmpty, types.MaterialWall)
			sg.RenameIn(types.MaterialWall, types.MaterialFluid, inner)
		}
		sl, err := NewSuperLattice(sg, desc)
		if err != nil {
			return err
		}
		sl.DefineDynamics(types.MaterialFluid, BGK{Omega: 1.3})
		sl.DefineDynamics(types.MaterialWall, BounceBack{})
		sl.IniEquilibriumFunc(types.MaterialFluid, func(x types.Vector) (float64, types.Vector) {
			return 1 + .05*math.Sin(x[0]) + .02*math.Cos(x[1]), types.Vector{.04 * math.Cos(x[1]), .01, 0}
		})
		if err = sl.Initialize(); err != nil {
			return err
		}
		return fn(sl)
	})
	require.NoError(t, err)
}

func TestMassConservation(t *testing.T) {
	for _, tc := range []struct {
		np       int
		extent   types.LatticeR
		periodic bool
		desc     *Descriptor
	}{
		{1, types.LatticeR{20, 12, 1}, true, D2Q9},
		{3, types.LatticeR{20, 12, 1}, true, D2Q9},
		{2, types.LatticeR{16, 10, 1}, false, D2Q9},
		{2, types.LatticeR{6, 5, 4}, true, D3Q19},
		{3, types.LatticeR{7, 6, 5}, false, D3Q19},
	} {
		name := fmt.Sprintf("%s_np%d_periodic%v", tc.desc.Name, tc.np, tc.periodic)
		t.Run(name, func(t *testing.T) {
			withLattice(t, tc.np, tc.extent, tc.periodic, tc.desc, func(sl *SuperLattice) error {
				m0 := sl.TotalMass()
				for i := 0; i < 25; i++ {
					if err := sl.CollideAndStream(); err != nil {
						return err
					}
				}
				assert.Equal(t, 25, sl.Step())
				assert.InDelta(t, m0, sl.TotalMass(), 1e-10*m0)
				ls := sl.Statistics()
				assert.Greater(t, ls.NCells, 0)
				assert.False(t, math.IsNaN(ls.MaxU))
				sl.PrintStatistics()
				return nil
			})
		})
	}
}

func TestDecompositionIndependence(t *testing.T) {
	var results []LatticeStatistics
	for _, np := range []int{1, 2, 4} {
		withLattice(t, np, types.LatticeR{24, 14, 1}, true, D2Q9, func(sl *SuperLattice) error {
			for i := 0; i < 10; i++ {
				if err := sl.CollideAndStream(); err != nil {
					return err
				}
			}
			ls := sl.Statistics()
			if sl.Geometry().Context().IsMain() {
				results = append(results, ls)
			}
			return nil
		})
	}
	require.Len(t, results, 3)
	for _, r := range results[1:] {
		assert.Equal(t, results[0].NCells, r.NCells)
		assert.InDelta(t, results[0].AvRho, r.AvRho, 1e-12)
		assert.InDelta(t, results[0].AvEnergy, r.AvEnergy, 1e-12)
		assert.InDelta(t, results[0].MaxU, r.MaxU, 1e-12)
	}
}

func TestStageCommunicator(t *testing.T) {
	withLattice(t, 3, types.LatticeR{18, 12, 1}, true, D2Q9, func(sl *SuperLattice) error {
		if err := sl.AddPostProcessor(StagePreCoupling, RhoStatistics{}); err != nil {
			return err
		}
		if err := sl.AddPostProcessor(StagePostStream, VelocityStatistics{}); err != nil {
			return err
		}
		assert.Error(t, sl.AddField("rho", 2))
		_, err := sl.Field("missing")
		if len(sl.Blocks()) > 0 {
			assert.Error(t, err)
		}
		rho, err := sl.Field("rho")
		if err != nil {
			return err
		}
		c := sl.Communicator(StagePreCoupling)
		assert.Same(t, c, sl.Communicator(StagePreCoupling))
		c.RequestField(rho)
		if err = c.RequestOverlap(sl.Overlap()); err != nil {
			return err
		}
		if err = c.ExchangeRequests(); err != nil {
			return err
		}
		if err = sl.CollideAndStream(); err != nil {
			return err
		}
		sl.ExecutePostProcessors(StagePreCoupling)
		if err = c.Communicate(); err != nil {
			return err
		}
		cg := sl.Geometry().CuboidGeometry()
		for _, bl := range sl.Blocks() {
			var (
				layout = bl.Layout()
				field  = bl.Field("rho")
				vel    = bl.Field("velocity")
				off    = cg.GlobalOffset(bl.Geometry().GlobalID())
			)
			layout.ForAll(func(l types.LatticeR) {
				i := layout.Index(l)
				if layout.IsCore(l) {
					r, u := bl.Moments(l)
					assert.Equal(t, r, field[i])
					assert.Equal(t, u[0], vel[3*i])
					return
				}
				// Periodic box, every ghost has an owner whose density is
				// known on this rank only through the exchange
				assert.Greater(t, field[i], .5, "ghost %v of cuboid at %v", l, off)
			})
		}
		return nil
	})
}

func TestSuperLatticeErrors(t *testing.T) {
	err := parallel.Run(1, parallel.Options{LogMode: parallel.Quiet}, func(ctx *parallel.RuntimeContext) error {
		mother, err := cuboid.NewCuboid(2, types.Vector{}, 1, types.LatticeR{4, 4, 1})
		if err != nil {
			return err
		}
		cg, err := cuboid.NewCuboidGeometry(mother, 1)
		if err != nil {
			return err
		}
		lb, err := loadbalancer.New(loadbalancer.Block{}, cg, 0, 1, 1)
		if err != nil {
			return err
		}
		sg, err := geometry.NewSuperGeometry(ctx, cg, lb, 1)
		if err != nil {
			return err
		}
		_, err = NewSuperLattice(sg, D3Q19)
		assert.Error(t, err)
		sl, err := NewSuperLattice(sg, D2Q9)
		if err != nil {
			return err
		}
		// Without dynamics nothing moves but streaming still conserves the
		// empty populations
		assert.Equal(t, 0., sl.TotalMass())
		assert.Equal(t, 0, sl.Statistics().NCells)
		assert.Equal(t, "PostCoupling", StagePostCoupling.String())
		return sl.CollideAndStream()
	})
	require.NoError(t, err)
}
