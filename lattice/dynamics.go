package lattice

import "github.com/notargets/golbm/types"

// Dynamics is the local collision applied to the populations of one cell
type Dynamics interface {
	Name() string
	Collide(d *Descriptor, f []float64)
	// Fluid cells contribute to the lattice statistics
	Fluid() bool
}

// BGK relaxes towards the equilibrium with frequency Omega
type BGK struct {
	Omega float64
}

func (BGK) Name() string { return "BGK" }
func (BGK) Fluid() bool  { return true }

func (b BGK) Collide(d *Descriptor, f []float64) {
	rho, u := d.Moments(f)
	for i := range f {
		f[i] += b.Omega * (d.Equilibrium(i, rho, u) - f[i])
	}
}

// BounceBack reverses every population, a no slip wall halfway between
// the cell and its fluid neighbours after the next streaming
type BounceBack struct{}

func (BounceBack) Name() string { return "BounceBack" }
func (BounceBack) Fluid() bool  { return false }

func (BounceBack) Collide(d *Descriptor, f []float64) {
	for i := 1; i < d.Q; i++ {
		if j := d.Opposite[i]; i < j {
			f[i], f[j] = f[j], f[i]
		}
	}
}

type NoDynamics struct{}

func (NoDynamics) Name() string { return "NoDynamics" }
func (NoDynamics) Fluid() bool  { return false }
func (NoDynamics) Collide(*Descriptor, []float64) {}

// equilibrium fills f with the equilibrium of rho and u
func equilibrium(d *Descriptor, f []float64, rho float64, u types.Vector) {
	for i := range f {
		f[i] = d.Equilibrium(i, rho, u)
	}
}
