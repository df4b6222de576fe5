package cuboid

import (
	"fmt"
	"math"

	"github.com/notargets/golbm/types"
)

/*
Divide splits the cuboid into counts[0]*counts[1]*counts[2] children on a
regular grid. Along an axis of n cells split in k pieces child i gets
(n+k-i-1)/k cells, so the first children absorb the remainder and the
children tile the parent exactly. Children are ordered x outermost.
*/
func (c *Cuboid) Divide(counts types.LatticeR) (children []*Cuboid, err error) {
	if c.Dim == 2 {
		counts[2] = 1
	}
	for d := 0; d < 3; d++ {
		if counts[d] <= 0 {
			err = fmt.Errorf("%w: have %v", ErrNonPositiveCount, counts)
			return
		}
		if counts[d] > c.Extent[d] {
			err = fmt.Errorf("%w: %d pieces along axis %d of %d cells",
				ErrTooManyChildren, counts[d], d, c.Extent[d])
			return
		}
	}
	var (
		offset types.LatticeR
		n      types.LatticeR
	)
	for iX := 0; iX < counts[0]; iX++ {
		n[0] = (c.Extent[0] + counts[0] - iX - 1) / counts[0]
		offset[1] = 0
		for iY := 0; iY < counts[1]; iY++ {
			n[1] = (c.Extent[1] + counts[1] - iY - 1) / counts[1]
			offset[2] = 0
			for iZ := 0; iZ < counts[2]; iZ++ {
				n[2] = (c.Extent[2] + counts[2] - iZ - 1) / counts[2]
				children = append(children, c.child(offset, n))
				offset[2] += n[2]
			}
			offset[1] += n[1]
		}
		offset[0] += n[0]
	}
	return
}

// child is the sub-cuboid starting offset cells from the origin
func (c *Cuboid) child(offset, n types.LatticeR) *Cuboid {
	ch := &Cuboid{Dim: c.Dim, Origin: c.Origin, Delta: c.Delta, Extent: c.Extent, weight: unsetWeight}
	ch.Resize(offset, n)
	return ch
}

/*
DivideFractional splits the cuboid along axis into segments proportional to
fractions. Each segment gets int(f*n) cells and the last one absorbs the
rounding remainder, so the segments always sum to the parent extent.
*/
func (c *Cuboid) DivideFractional(axis int, fractions []float64) (children []*Cuboid, err error) {
	if axis < 0 || axis >= c.Dim {
		err = fmt.Errorf("axis %d out of range for dimension %d", axis, c.Dim)
		return
	}
	if len(fractions) == 0 {
		err = fmt.Errorf("%w: empty fraction list", ErrNonPositiveCount)
		return
	}
	var (
		n      = c.Extent[axis]
		widths = make([]int, len(fractions))
		total  int
	)
	for i, f := range fractions {
		if f < 0 {
			err = fmt.Errorf("negative fraction %g", f)
			return
		}
		widths[i] = int(f * float64(n))
		total += widths[i]
	}
	widths[len(widths)-1] += n - total
	if widths[len(widths)-1] < 0 {
		err = fmt.Errorf("fractions %v sum to more than one", fractions)
		return
	}
	var offset types.LatticeR
	for _, w := range widths {
		ext := c.Extent
		ext[axis] = w
		children = append(children, c.child(offset, ext))
		offset[axis] += w
	}
	return
}

/*
DivideP splits the cuboid into exactly p children.

The factorization f with product <= p that no single axis can grow without
exceeding p and that minimises the aspect ratio cost
sum over cyclic axis pairs (a,b) of ((n_a/f_a)/(n_b/f_b) - 1)^2 is chosen.
If the product equals p the result is a regular grid. Otherwise the
cuboid is cut into slabs along one axis and the leftover pieces are spread
over the slabs: rest%slabs slabs get one more piece than the others and a
proportionally thicker share of the axis. Each slab is then divided
recursively. Every cell of the parent ends in exactly one child.
*/
func (c *Cuboid) DivideP(p int) (children []*Cuboid, err error) {
	if p <= 0 {
		err = fmt.Errorf("%w: have %d", ErrNonPositiveCount, p)
		return
	}
	if p > c.LatticeVolume() {
		err = fmt.Errorf("%w: %d children for %d cells", ErrTooManyChildren, p, c.LatticeVolume())
		return
	}
	if p == 1 {
		return []*Cuboid{c.child(types.LatticeR{}, c.Extent)}, nil
	}
	axes := c.splittableAxes()
	if len(axes) == 1 {
		var counts = types.LatticeR{1, 1, 1}
		counts[axes[0]] = p
		return c.Divide(counts)
	}
	best := c.bestFactorization(p, axes)
	prod := best[0] * best[1] * best[2]
	if prod == p {
		return c.Divide(best)
	}
	return c.divideSlabs(p, axes, best)
}

// splittableAxes lists the axes with more than one cell
func (c *Cuboid) splittableAxes() (axes []int) {
	for d := 0; d < c.Dim; d++ {
		if c.Extent[d] > 1 {
			axes = append(axes, d)
		}
	}
	return
}

func (c *Cuboid) aspectCost(f types.LatticeR, axes []int) float64 {
	var cost float64
	for i, a := range axes {
		b := axes[(i+1)%len(axes)]
		r := float64(c.Extent[a]/f[a])/float64(c.Extent[b]/f[b]) - 1
		cost += r * r
	}
	return cost
}

// bestFactorization returns all ones if no maximal factorization fits
func (c *Cuboid) bestFactorization(p int, axes []int) (best types.LatticeR) {
	best = types.LatticeR{1, 1, 1}
	var (
		bestCost = math.Inf(1)
		f        = types.LatticeR{1, 1, 1}
		last     = axes[len(axes)-1]
		search   func(k, prod int)
	)
	search = func(k, prod int) {
		if k == len(axes)-1 {
			f[last] = p / prod
			for _, a := range axes {
				if f[a] > c.Extent[a] {
					return
				}
			}
			for _, a := range axes[:len(axes)-1] {
				if (f[a]+1)*(prod/f[a])*f[last] <= p {
					return
				}
			}
			if cost := c.aspectCost(f, axes); cost < bestCost {
				bestCost, best = cost, f
			}
			return
		}
		a := axes[k]
		for i := 1; i*prod <= p; i++ {
			f[a] = i
			search(k+1, prod*i)
		}
		f[a] = 1
	}
	search(0, 1)
	return
}

type slab struct {
	thickness, pieces int
}

func (c *Cuboid) divideSlabs(p int, axes []int, best types.LatticeR) (children []*Cuboid, err error) {
	s, plan := c.slabPlan(p, axes, best)
	if !c.feasible(s, plan) {
		s, plan = c.bisection(p)
	}
	var offset types.LatticeR
	for _, sl := range plan {
		ext := c.Extent
		ext[s] = sl.thickness
		part := c.child(offset, ext)
		var sub []*Cuboid
		if sub, err = part.DivideP(sl.pieces); err != nil {
			err = fmt.Errorf("dividing slab %v into %d: %w", ext, sl.pieces, err)
			return
		}
		children = append(children, sub...)
		offset[s] += ext[s]
	}
	return
}

// slabPlan spreads the pieces left over by the factorization best over the
// slabs of one axis
func (c *Cuboid) slabPlan(p int, axes []int, best types.LatticeR) (s int, plan []slab) {
	s = -1
	// Slab axis: the second axis unless it has the largest sub-extent
	largest := axes[0]
	for _, a := range axes {
		if c.Extent[a]/best[a] > c.Extent[largest]/best[largest] {
			largest = a
		}
	}
	candidates := []int{axes[1], axes[0]}
	if axes[1] == largest {
		candidates = []int{axes[0], axes[1]}
	}
	for _, a := range append(candidates, axes[2:]...) {
		if best[a] > 1 {
			s = a
			break
		}
	}
	spread := func(slabs, pieces, thickness int) {
		for i := 0; i < slabs; i++ {
			plan = append(plan, slab{(thickness + slabs - i - 1) / slabs, pieces})
		}
	}
	if s == -1 {
		// No factor to build on, halve the longest axis
		s = c.longestAxis()
		tA := int(float64(c.Extent[s]) * float64(p/2) / float64(p))
		tA = max(1, min(tA, c.Extent[s]-1))
		spread(1, p/2, tA)
		spread(1, p-p/2, c.Extent[s]-tA)
		return
	}
	var (
		n      = c.Extent[s]
		nSlabs = best[s]
		q      = best[0] * best[1] * best[2] / nSlabs
		rest   = p - nSlabs*q
		restS  = rest % nSlabs
		k      = q + rest/nSlabs
	)
	if restS == 0 {
		spread(nSlabs, k, n)
		return
	}
	tA := int(float64(n) * float64((k+1)*restS) / float64(p))
	tA = max(restS, min(tA, n-(nSlabs-restS)))
	spread(restS, k+1, tA)
	spread(nSlabs-restS, k, n-tA)
	return
}

// feasible is true when every slab has at least one cell per piece
func (c *Cuboid) feasible(s int, plan []slab) bool {
	area := c.LatticeVolume() / c.Extent[s]
	for _, sl := range plan {
		if sl.thickness < 1 || sl.pieces < 1 || sl.thickness*area < sl.pieces {
			return false
		}
	}
	return true
}

/*
bisection halves the longest axis and shares the p pieces in proportion to
the two volumes, clamped so that each half gets at least one piece and no
more pieces than cells. With 2 <= p <= volume both halves stay divisible.
*/
func (c *Cuboid) bisection(p int) (s int, plan []slab) {
	s = c.longestAxis()
	var (
		n    = c.Extent[s]
		vol  = c.LatticeVolume()
		t1   = n / 2
		v1   = t1 * (vol / n)
		v2   = vol - v1
		p1   = int(math.Round(float64(p) * float64(v1) / float64(vol)))
		low  = max(1, p-v2)
		high = min(v1, p-1)
	)
	p1 = max(low, min(p1, high))
	return s, []slab{{t1, p1}, {n - t1, p - p1}}
}

func (c *Cuboid) longestAxis() (s int) {
	for d := 1; d < c.Dim; d++ {
		if c.Extent[d] > c.Extent[s] {
			s = d
		}
	}
	return
}
