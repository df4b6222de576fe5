// Package lattice runs the lattice Boltzmann pipeline on top of a decomposed
// geometry: populations per cell, per cell dynamics, streaming across the
// halo and post processing stages.
package lattice

import (
	"fmt"

	"github.com/notargets/golbm/types"
	"gonum.org/v1/gonum/floats"
)

// Descriptor is a discrete velocity set
type Descriptor struct {
	Name     string
	D, Q     int
	C        []types.LatticeR
	W        []float64
	Opposite []int
	InvCs2   float64
}

func newDescriptor(name string, d int, c []types.LatticeR, wByLength []float64) *Descriptor {
	desc := &Descriptor{
		Name:     name,
		D:        d,
		Q:        len(c),
		C:        c,
		W:        make([]float64, len(c)),
		Opposite: make([]int, len(c)),
		InvCs2:   3,
	}
	for i, ci := range c {
		desc.W[i] = wByLength[ci[0]*ci[0]+ci[1]*ci[1]+ci[2]*ci[2]]
		desc.Opposite[i] = -1
		for j, cj := range c {
			if cj == (types.LatticeR{-ci[0], -ci[1], -ci[2]}) {
				desc.Opposite[i] = j
			}
		}
		if desc.Opposite[i] < 0 {
			panic(fmt.Errorf("%s: velocity %v has no opposite", name, ci))
		}
	}
	if s := floats.Sum(desc.W); s < 1-1e-14 || s > 1+1e-14 {
		panic(fmt.Errorf("%s: weights sum to %v", name, s))
	}
	return desc
}

var (
	D2Q9 = newDescriptor("D2Q9", 2, []types.LatticeR{
		{0, 0, 0},
		{-1, 1, 0}, {-1, 0, 0}, {-1, -1, 0}, {0, -1, 0},
		{1, -1, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	}, []float64{4. / 9, 1. / 9, 1. / 36})

	D3Q19 = newDescriptor("D3Q19", 3, []types.LatticeR{
		{0, 0, 0},
		{-1, 0, 0}, {0, -1, 0}, {0, 0, -1},
		{-1, -1, 0}, {-1, 1, 0}, {-1, 0, -1}, {-1, 0, 1}, {0, -1, -1}, {0, -1, 1},
		{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
		{1, 1, 0}, {1, -1, 0}, {1, 0, 1}, {1, 0, -1}, {0, 1, 1}, {0, 1, -1},
	}, []float64{1. / 3, 1. / 18, 1. / 36})
)

// DescriptorByName maps input file names onto descriptors
func DescriptorByName(name string) (*Descriptor, error) {
	switch name {
	case "D2Q9", "d2q9":
		return D2Q9, nil
	case "D3Q19", "d3q19":
		return D3Q19, nil
	}
	return nil, fmt.Errorf("unknown descriptor %q", name)
}

// Equilibrium is the second order equilibrium of population i
func (d *Descriptor) Equilibrium(i int, rho float64, u types.Vector) float64 {
	cu := d.C[i].ToVector().Dot(u)
	return d.W[i] * rho * (1 + d.InvCs2*cu + .5*d.InvCs2*d.InvCs2*cu*cu - .5*d.InvCs2*u.Dot(u))
}

// Moments returns density and velocity of the populations f
func (d *Descriptor) Moments(f []float64) (rho float64, u types.Vector) {
	rho = floats.Sum(f)
	for i, fi := range f {
		u = u.Add(d.C[i].ToVector().Scale(fi))
	}
	if rho != 0 {
		u = u.Scale(1 / rho)
	}
	return
}
