package lattice

import (
	"fmt"

	"github.com/notargets/golbm/types"
)

// Stage names a point in the time step at which post processors run and
// fields are exchanged
type Stage int

const (
	StagePostStream Stage = iota
	StagePreCoupling
	StagePostCoupling
)

func (s Stage) String() string {
	switch s {
	case StagePostStream:
		return "PostStream"
	case StagePreCoupling:
		return "PreCoupling"
	case StagePostCoupling:
		return "PostCoupling"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// PostProcessor works on whole blocks. Fields lists the named fields it
// writes with their number of components.
type PostProcessor interface {
	Name() string
	Fields() map[string]int
	Process(bl *BlockLattice)
}

// RhoStatistics stores the density of every core cell in the field "rho"
type RhoStatistics struct{}

func (RhoStatistics) Name() string           { return "RhoStatistics" }
func (RhoStatistics) Fields() map[string]int { return map[string]int{"rho": 1} }

func (RhoStatistics) Process(bl *BlockLattice) {
	rho := bl.Field("rho")
	bl.layout.ForCore(func(l types.LatticeR) {
		rho[bl.layout.Index(l)], _ = bl.Moments(l)
	})
}

// VelocityStatistics stores the velocity of every core cell in the field
// "velocity", three components per cell
type VelocityStatistics struct{}

func (VelocityStatistics) Name() string           { return "VelocityStatistics" }
func (VelocityStatistics) Fields() map[string]int { return map[string]int{"velocity": 3} }

func (VelocityStatistics) Process(bl *BlockLattice) {
	vel := bl.Field("velocity")
	bl.layout.ForCore(func(l types.LatticeR) {
		_, u := bl.Moments(l)
		i := bl.layout.Index(l)
		copy(vel[3*i:3*i+3], u[:])
	})
}
