package cuboid

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/golbm/functors/indicator"
	"github.com/notargets/golbm/serializer"
	"github.com/notargets/golbm/types"
)

func newCuboid(t *testing.T, dim int, origin types.Vector, delta float64, extent types.LatticeR) *Cuboid {
	c, err := NewCuboid(dim, origin, delta, extent)
	require.NoError(t, err)
	return c
}

// checkPartition verifies that children tile the parent without gaps
func checkPartition(t *testing.T, parent *Cuboid, children []*Cuboid) {
	total := 0
	for i, c := range children {
		total += c.LatticeVolume()
		for d := 0; d < parent.Dim; d++ {
			assert.Greater(t, c.Extent[d], 0)
		}
		for j := i + 1; j < len(children); j++ {
			assert.False(t, c.CheckIntersCuboid(children[j], 0), "children %d and %d overlap", i, j)
		}
	}
	assert.Equal(t, parent.LatticeVolume(), total)
	// Every parent cell is claimed exactly once
	parent.ForEach(func(l types.LatticeR) {
		x := parent.PhysR(l)
		count := 0
		for _, c := range children {
			if c.CheckPoint(x, 0) {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("cell %v claimed %d times", l, count)
		}
	})
}

func TestCuboidCoordinates(t *testing.T) {
	c := newCuboid(t, 3, types.Vector{0.3, -1.2, 2}, 0.1, types.LatticeR{7, 5, 4})
	c.ForEach(func(l types.LatticeR) {
		assert.Equal(t, l, c.LatticeR(c.PhysR(l)))
		assert.True(t, c.CheckPoint(c.PhysR(l), 0))
	})
	assert.Equal(t, 140, c.LatticeVolume())
	assert.Equal(t, 140, c.Weight())
	assert.Equal(t, -1, c.WeightValue())
	assert.InDelta(t, 0.14, c.PhysVolume(), 1.e-12)
	assert.Equal(t, types.LatticeR{-1, 0, 0}, c.FloorLatticeR(types.Vector{0.29, -1.2, 2}))
	assert.Equal(t, types.LatticeR{0, 0, 0}, c.LatticeR(types.Vector{0.29, -1.2, 2}))

	c2 := newCuboid(t, 2, types.Vector{0, 0, 5}, 1, types.LatticeR{75, 50, 9})
	assert.Equal(t, types.LatticeR{75, 50, 1}, c2.Extent)
	assert.Equal(t, 0., c2.Origin[2])
	assert.Equal(t, 2*75+2*50-4, c2.LatticePerimeter())

	_, err := NewCuboid(4, types.Vector{}, 1, types.LatticeR{1, 1, 1})
	assert.ErrorIs(t, err, ErrInvalidDimension)
	_, err = NewCuboid(3, types.Vector{}, 0, types.LatticeR{1, 1, 1})
	assert.ErrorIs(t, err, ErrInvalidExtent)
}

func TestCheckPointSharedFace(t *testing.T) {
	parent := newCuboid(t, 3, types.Vector{}, 1, types.LatticeR{10, 4, 4})
	children, err := parent.Divide(types.LatticeR{2, 1, 1})
	require.NoError(t, err)
	require.Len(t, children, 2)
	a, b := children[0], children[1]
	assert.Equal(t, types.Vector{5, 0, 0}, b.Origin)
	face := types.Vector{4.5, 1, 1}
	assert.False(t, a.CheckPoint(face, 0))
	assert.True(t, b.CheckPoint(face, 0))
	assert.True(t, a.CheckPoint(types.Vector{4, 1, 1}, 0))
	assert.False(t, b.CheckPoint(types.Vector{4, 1, 1}, 0))
	// With one overlap cell each claims the first cell of the other
	assert.True(t, a.CheckPoint(types.Vector{5, 1, 1}, 1))
	assert.True(t, b.CheckPoint(types.Vector{4, 1, 1}, 1))
	assert.False(t, b.CheckPoint(types.Vector{3, 1, 1}, 1))
	assert.True(t, b.PhysCheckPoint(types.Vector{3.6, 1, 1}, 1.5))

	l, ok := b.CheckPointLocal(types.Vector{4, 1, 1}, 1)
	assert.True(t, ok)
	assert.Equal(t, types.LatticeR{0, 2, 2}, l)
	_, ok = b.CheckPointLocal(types.Vector{4, 1, 1}, 0)
	assert.False(t, ok)

	assert.False(t, a.CheckIntersCuboid(b, 0))
	assert.True(t, a.CheckIntersCuboid(b, 1))
	assert.True(t, a.CheckInters(types.Vector{4, 0, 0}, types.Vector{8, 1, 1}, 0))

	lo, hi, ok := b.IntersectLocal(types.Vector{2, 0.5, 0}, types.Vector{7.2, 2, 9}, 0)
	assert.True(t, ok)
	assert.Equal(t, types.LatticeR{0, 1, 0}, lo)
	assert.Equal(t, types.LatticeR{2, 2, 3}, hi)
	_, _, ok = b.IntersectLocal(types.Vector{20, 0, 0}, types.Vector{21, 1, 1}, 0)
	assert.False(t, ok)
}

func TestDivide(t *testing.T) {
	parent := newCuboid(t, 3, types.Vector{1, 2, 3}, 0.5, types.LatticeR{11, 7, 5})
	for _, counts := range []types.LatticeR{{1, 1, 1}, {2, 3, 1}, {3, 2, 5}, {11, 1, 2}, {4, 4, 4}} {
		children, err := parent.Divide(counts)
		require.NoError(t, err)
		assert.Len(t, children, counts[0]*counts[1]*counts[2])
		checkPartition(t, parent, children)
	}
	// Remainder cells go to the first children
	children, err := parent.Divide(types.LatticeR{3, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 3}, []int{children[0].NX(), children[1].NX(), children[2].NX()})

	_, err = parent.Divide(types.LatticeR{0, 1, 1})
	assert.ErrorIs(t, err, ErrNonPositiveCount)
	_, err = parent.Divide(types.LatticeR{12, 1, 1})
	assert.ErrorIs(t, err, ErrTooManyChildren)
}

func TestDivideP(t *testing.T) {
	{ // The two dimensional droplet domain
		parent := newCuboid(t, 2, types.Vector{}, 1, types.LatticeR{75, 50, 1})
		for p := 1; p <= 40; p++ {
			children, err := parent.DivideP(p)
			require.NoError(t, err, "p = %d", p)
			assert.Len(t, children, p)
			total := 0
			for _, c := range children {
				total += c.LatticeVolume()
			}
			assert.Equal(t, 75*50*1, total, "p = %d", p)
			if p <= 12 {
				checkPartition(t, parent, children)
			}
		}
		children, err := parent.DivideP(4)
		require.NoError(t, err)
		require.Len(t, children, 4)
		for _, c := range children {
			assert.Equal(t, 25, c.NY())
		}
	}
	{
		parent := newCuboid(t, 3, types.Vector{}, 1, types.LatticeR{20, 17, 13})
		for p := 1; p <= 30; p++ {
			children, err := parent.DivideP(p)
			require.NoError(t, err, "p = %d", p)
			assert.Len(t, children, p)
			checkPartition(t, parent, children)
		}
	}
	{ // Degenerate shapes
		line := newCuboid(t, 3, types.Vector{}, 1, types.LatticeR{9, 1, 1})
		children, err := line.DivideP(4)
		require.NoError(t, err)
		checkPartition(t, line, children)
		_, err = line.DivideP(10)
		assert.ErrorIs(t, err, ErrTooManyChildren)
		_, err = line.DivideP(0)
		assert.ErrorIs(t, err, ErrNonPositiveCount)
	}
}

func TestDividePEveryCount(t *testing.T) {
	// Any count up to the number of cells must be reachable
	check := func(parent *Cuboid) {
		vol := parent.LatticeVolume()
		for p := 1; p <= vol; p++ {
			children, err := parent.DivideP(p)
			if err != nil {
				t.Fatalf("extent %v, p = %d: %v", parent.Extent, p, err)
			}
			if len(children) != p {
				t.Fatalf("extent %v, p = %d: %d children", parent.Extent, p, len(children))
			}
			claims := make([]int, vol)
			for _, c := range children {
				if c.LatticeVolume() == 0 {
					t.Fatalf("extent %v, p = %d: empty child", parent.Extent, p)
				}
				c.ForEach(func(l types.LatticeR) {
					g, ok := parent.CheckPointLocal(c.PhysR(l), 0)
					require.True(t, ok)
					claims[cellIndex(parent, g)]++
				})
			}
			for i, n := range claims {
				if n != 1 {
					t.Fatalf("extent %v, p = %d: cell %d claimed %d times", parent.Extent, p, i, n)
				}
			}
		}
	}
	for nx := 1; nx <= 8; nx++ {
		for ny := 1; ny <= 8; ny++ {
			check(newCuboid(t, 2, types.Vector{}, 1, types.LatticeR{nx, ny, 1}))
		}
	}
	for _, ext := range []types.LatticeR{{2, 3, 1}, {2, 2, 2}, {3, 2, 4}, {4, 4, 3}, {5, 1, 3}, {1, 6, 5}} {
		check(newCuboid(t, 3, types.Vector{}, 1, ext))
	}
	{
		parent := newCuboid(t, 2, types.Vector{}, 1, types.LatticeR{2, 3, 1})
		children, err := parent.DivideP(5)
		require.NoError(t, err)
		checkPartition(t, parent, children)
	}
}

// cellIndex numbers the cells of c x outermost
func cellIndex(c *Cuboid, l types.LatticeR) int {
	return (l[0]*c.Extent[1]+l[1])*c.Extent[2] + l[2]
}

func TestDivideFractional(t *testing.T) {
	parent := newCuboid(t, 3, types.Vector{}, 1, types.LatticeR{10, 3, 3})
	children, err := parent.DivideFractional(0, []float64{0.33, 0.33, 0.34})
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, []int{3, 3, 4}, []int{children[0].NX(), children[1].NX(), children[2].NX()})
	checkPartition(t, parent, children)

	for _, L := range []int{7, 13, 101} {
		c := newCuboid(t, 2, types.Vector{}, 1, types.LatticeR{3, L, 1})
		children, err = c.DivideFractional(1, []float64{0.1, 0.2, 0.3, 0.4})
		require.NoError(t, err)
		sum := 0
		for _, ch := range children {
			sum += ch.NY()
		}
		assert.Equal(t, L, sum)
	}
	_, err = parent.DivideFractional(0, nil)
	assert.Error(t, err)
	_, err = parent.DivideFractional(0, []float64{0.8, 0.8})
	assert.Error(t, err)
}

func TestRefineAndSerialize(t *testing.T) {
	c := newCuboid(t, 3, types.Vector{1, 1, 1}, 1, types.LatticeR{2, 3, 4})
	assert.ErrorIs(t, c.Refine(0), ErrInvalidRefinement)
	c.SetWeight(10)
	require.NoError(t, c.Refine(2))
	assert.Equal(t, types.LatticeR{4, 6, 8}, c.Extent)
	assert.Equal(t, 0.5, c.Delta)
	assert.Equal(t, 80, c.Weight())

	c2 := newCuboid(t, 2, types.Vector{}, 1, types.LatticeR{2, 3, 1})
	require.NoError(t, c2.Refine(3))
	assert.Equal(t, types.LatticeR{6, 9, 1}, c2.Extent)
	assert.Equal(t, 54, c2.Weight())

	var buf bytes.Buffer
	require.NoError(t, serializer.Save(&buf, c))
	size, err := serializer.Size(c)
	require.NoError(t, err)
	assert.Equal(t, 64, size)
	out := newCuboid(t, 3, types.Vector{}, 1, types.LatticeR{})
	require.NoError(t, serializer.Load(&buf, out))
	assert.True(t, c.Equal(out))

	in := c.Inflate(2)
	assert.Equal(t, types.LatticeR{8, 10, 12}, in.Extent)
	assert.Equal(t, types.Vector{0, 0, 0}, in.Origin)
	assert.Equal(t, 80, in.Weight())

	c.Print(log.New(io.Discard, "", 0))
}

func TestCuboidFromIndicator(t *testing.T) {
	disc, err := indicator.Circle2D(types.Vector{}, 10)
	require.NoError(t, err)
	mother, err := NewCuboidFromIndicator(disc, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, types.LatticeR{21, 21, 1}, mother.Extent)
	inside := mother.WeightIn(disc)

	cg, err := NewCuboidGeometryFromIndicator(disc, 1, 9, 2)
	require.NoError(t, err)
	assert.Equal(t, inside, cg.TotalWeight())
	for _, c := range cg.Cuboids() {
		assert.Equal(t, c.WeightIn(disc), c.Weight())
	}
}

func TestCuboidGeometry(t *testing.T) {
	mother := newCuboid(t, 2, types.Vector{}, 1, types.LatticeR{75, 50, 1})
	cg, err := NewCuboidGeometry(mother, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cg.Nc())
	require.NoError(t, cg.CheckTiling())

	{ // Lookups agree with the owners
		iC, l, ok := cg.LatticeR(types.Vector{60, 10})
		require.True(t, ok)
		x := cg.PhysR(iC, l)
		assert.Equal(t, types.Vector{60, 10, 0}, x)
		owner, ol, ok := cg.Owner(types.LatticeR{60, 10, 0})
		assert.True(t, ok)
		assert.Equal(t, iC, owner)
		assert.Equal(t, l, ol)
		_, _, ok = cg.Owner(types.LatticeR{-1, 10, 0})
		assert.False(t, ok)
	}
	{ // Periodic wrap in x
		cg.SetPeriodicity(true, false, false)
		owner, l, ok := cg.Owner(types.LatticeR{-1, 10, 0})
		assert.True(t, ok)
		wOwner, wl, _ := cg.Owner(types.LatticeR{74, 10, 0})
		assert.Equal(t, wOwner, owner)
		assert.Equal(t, wl, l)
		iC, ok := cg.C(types.Vector{75, 3}, 0)
		assert.True(t, ok)
		jC, _ := cg.C(types.Vector{0, 3}, 0)
		assert.Equal(t, jC, iC)
	}
	{ // Neighbours and the adjacency matrix agree
		adj := cg.Adjacency(1)
		for iC := 0; iC < cg.Nc(); iC++ {
			nbrs := cg.Neighbourhood(iC, 1)
			assert.NotEmpty(t, nbrs)
			for jC := 0; jC < cg.Nc(); jC++ {
				assert.Equal(t, adj.At(iC, jC), adj.At(jC, iC))
				if jC == iC {
					assert.Zero(t, adj.At(iC, jC))
					continue
				}
				assert.Equal(t, adj.At(iC, jC) > 0, contains(nbrs, jC))
			}
		}
	}
	{ // Split keeps the tiling
		require.NoError(t, cg.Split(0, 3))
		assert.Equal(t, 6, cg.Nc())
		require.NoError(t, cg.CheckTiling())
		cg.Remove(5)
		assert.Error(t, cg.CheckTiling())
	}
	{ // Refinement of the whole geometry
		cg2, err := NewCuboidGeometry(mother, 2)
		require.NoError(t, err)
		require.NoError(t, cg2.Refine(2))
		assert.Equal(t, types.LatticeR{150, 100, 1}, cg2.Mother().Extent)
		require.NoError(t, cg2.CheckTiling())
	}
	_, err = NewCuboidGeometry(mother, 0)
	assert.Error(t, err)
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func TestReadWeights(t *testing.T) {
	mother := newCuboid(t, 3, types.Vector{}, 1, types.LatticeR{8, 8, 8})
	cg, err := NewCuboidGeometry(mother, 4)
	require.NoError(t, err)
	file := filepath.Join(t.TempDir(), "weights.txt")
	require.NoError(t, os.WriteFile(file, []byte("0 10\n2 30\n"), 0o644))
	require.NoError(t, ReadWeights(cg, file))
	assert.Equal(t, 10, cg.Get(0).Weight())
	assert.Equal(t, cg.Get(1).LatticeVolume(), cg.Get(1).Weight())
	assert.Equal(t, 30, cg.Get(2).Weight())

	require.NoError(t, os.WriteFile(file, []byte("7 10\n"), 0o644))
	assert.Error(t, ReadWeights(cg, file))
}

func TestBlockLayout(t *testing.T) {
	c := newCuboid(t, 2, types.Vector{}, 1, types.LatticeR{4, 3, 1})
	bl := NewBlockLayout(c, 2)
	assert.Equal(t, 8*7*1, bl.CellCount())
	assert.Equal(t, 12, bl.CoreCount())
	seen := make(map[int]bool)
	bl.ForAll(func(l types.LatticeR) {
		i := bl.Index(l)
		assert.False(t, seen[i])
		seen[i] = true
		assert.Equal(t, l, bl.Cell(i))
		assert.True(t, bl.Contains(l))
	})
	assert.Len(t, seen, bl.CellCount())
	n := 0
	bl.ForCore(func(l types.LatticeR) {
		assert.True(t, bl.IsCore(l))
		n++
	})
	assert.Equal(t, 12, n)
	assert.False(t, bl.Contains(types.LatticeR{0, 0, 1}))
	assert.False(t, bl.IsCore(types.LatticeR{-1, 0, 0}))
}
