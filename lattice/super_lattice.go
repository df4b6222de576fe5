package lattice

import (
	"fmt"
	"log"
	"math"

	"github.com/notargets/golbm/communication"
	"github.com/notargets/golbm/cuboid"
	"github.com/notargets/golbm/geometry"
	"github.com/notargets/golbm/parallel"
	"github.com/notargets/golbm/types"
	"gonum.org/v1/gonum/floats"
)

/*
SuperLattice runs one BlockLattice per local block of a SuperGeometry. A
time step collides, exchanges the populations, streams and runs the
PostStream post processors. All methods that communicate are collective.
*/
type SuperLattice struct {
	sg             *geometry.SuperGeometry
	desc           *Descriptor
	blocks         []*BlockLattice
	comm           *communication.Communicator
	stageComms     map[Stage]*communication.Communicator
	postProcessors map[Stage][]PostProcessor
	step           int
	logger         *log.Logger
}

func NewSuperLattice(sg *geometry.SuperGeometry, desc *Descriptor) (sl *SuperLattice, err error) {
	if desc.D != sg.Dim() {
		return nil, fmt.Errorf("%s lattice on a %d dimensional geometry", desc.Name, sg.Dim())
	}
	sl = &SuperLattice{
		sg:             sg,
		desc:           desc,
		blocks:         make([]*BlockLattice, len(sg.Blocks())),
		stageComms:     make(map[Stage]*communication.Communicator),
		postProcessors: make(map[Stage][]PostProcessor),
		logger:         sg.Context().Logger("SuperLattice"),
	}
	populations := make([][]float64, len(sl.blocks))
	for iCloc, bg := range sg.Blocks() {
		sl.blocks[iCloc] = NewBlockLattice(desc, bg)
		populations[iCloc] = sl.blocks[iCloc].f
	}
	sl.comm = sl.newCommunicator()
	sl.comm.RequestField(communication.NewField("populations", desc.Q, populations))
	if err = sl.comm.RequestOverlap(1); err != nil {
		return nil, err
	}
	if err = sl.comm.ExchangeRequests(); err != nil {
		return nil, err
	}
	return
}

func (sl *SuperLattice) newCommunicator() *communication.Communicator {
	bgs := sl.sg.Blocks()
	layouts := make([]cuboid.BlockLayout, len(bgs))
	for iCloc, bg := range bgs {
		layouts[iCloc] = bg.Layout()
	}
	return communication.NewCommunicator(sl.sg.Context(), sl.sg.CuboidGeometry(),
		sl.sg.LoadBalancer(), layouts)
}

func (sl *SuperLattice) Descriptor() *Descriptor           { return sl.desc }
func (sl *SuperLattice) Geometry() *geometry.SuperGeometry { return sl.sg }
func (sl *SuperLattice) Blocks() []*BlockLattice           { return sl.blocks }
func (sl *SuperLattice) Block(iCloc int) *BlockLattice     { return sl.blocks[iCloc] }
func (sl *SuperLattice) Overlap() int                      { return sl.sg.Overlap() }
func (sl *SuperLattice) Step() int                         { return sl.step }

func (sl *SuperLattice) DefineDynamics(material int, dyn Dynamics) {
	sl.DefineDynamicsIn(sl.sg.MaterialIndicator(material), dyn)
}

func (sl *SuperLattice) DefineDynamicsIn(mi *geometry.MaterialIndicator, dyn Dynamics) {
	for iCloc, bl := range sl.blocks {
		mi.ForEach(iCloc, func(l types.LatticeR) { bl.DefineDynamics(l, dyn) })
	}
}

func (sl *SuperLattice) IniEquilibrium(material int, rho float64, u types.Vector) {
	sl.IniEquilibriumFunc(material, func(types.Vector) (float64, types.Vector) { return rho, u })
}

// IniEquilibriumFunc sets the cells of material to the equilibrium of the
// density and velocity fn returns at the cell centre
func (sl *SuperLattice) IniEquilibriumFunc(material int, fn func(x types.Vector) (float64, types.Vector)) {
	mi := sl.sg.MaterialIndicator(material)
	for iCloc, bl := range sl.blocks {
		mi.ForEach(iCloc, func(l types.LatticeR) {
			rho, u := fn(bl.bg.PhysR(l))
			bl.IniEquilibrium(l, rho, u)
		})
	}
}

// Initialize brings the ghost populations up to date
func (sl *SuperLattice) Initialize() error {
	return sl.comm.Communicate()
}

// AddField allocates a named field on every block
func (sl *SuperLattice) AddField(name string, components int) (err error) {
	for _, bl := range sl.blocks {
		if err = bl.AddField(name, components); err != nil {
			return
		}
	}
	return
}

// Field wraps a named field of all blocks for exchange
func (sl *SuperLattice) Field(name string) (communication.Field, error) {
	var (
		data       = make([][]float64, len(sl.blocks))
		components int
	)
	for iCloc, bl := range sl.blocks {
		af, ok := bl.fields[name]
		if !ok {
			return nil, fmt.Errorf("no field %s on block %d", name, iCloc)
		}
		data[iCloc], components = af.data, af.components
	}
	if len(sl.blocks) == 0 {
		// Ranks without blocks still take part in the exchange
		components = 1
	}
	return communication.NewField(name, components, data), nil
}

// Communicator returns the communicator of stage, created on first use. It
// needs RequestField, RequestOverlap and ExchangeRequests before use.
func (sl *SuperLattice) Communicator(stage Stage) *communication.Communicator {
	c, ok := sl.stageComms[stage]
	if !ok {
		c = sl.newCommunicator()
		sl.stageComms[stage] = c
	}
	return c
}

func (sl *SuperLattice) AddPostProcessor(stage Stage, pp PostProcessor) (err error) {
	for name, components := range pp.Fields() {
		if err = sl.AddField(name, components); err != nil {
			return fmt.Errorf("%s: %w", pp.Name(), err)
		}
	}
	sl.postProcessors[stage] = append(sl.postProcessors[stage], pp)
	return
}

func (sl *SuperLattice) ExecutePostProcessors(stage Stage) {
	for _, pp := range sl.postProcessors[stage] {
		for _, bl := range sl.blocks {
			pp.Process(bl)
		}
	}
}

// Communicate exchanges the populations
func (sl *SuperLattice) Communicate() error {
	return sl.comm.Communicate()
}

func (sl *SuperLattice) CollideAndStream() (err error) {
	for _, bl := range sl.blocks {
		bl.Collide()
	}
	if err = sl.comm.Communicate(); err != nil {
		return
	}
	for _, bl := range sl.blocks {
		bl.Stream()
	}
	sl.ExecutePostProcessors(StagePostStream)
	sl.step++
	return
}

// LatticeStatistics are averages over the fluid cells of all ranks
type LatticeStatistics struct {
	NCells   int
	AvRho    float64
	AvEnergy float64
	MaxU     float64
}

func (sl *SuperLattice) Statistics() (ls LatticeStatistics) {
	var rhos, energies []float64
	maxU := 0.
	for _, bl := range sl.blocks {
		bl.layout.ForCore(func(l types.LatticeR) {
			if !bl.Dynamics(l).Fluid() {
				return
			}
			rho, u := bl.Moments(l)
			rhos = append(rhos, rho)
			energies = append(energies, .5*u.Dot(u))
			maxU = math.Max(maxU, u.Norm())
		})
	}
	comm := sl.sg.Context().Comm
	sums := comm.AllreduceFloats(parallel.OpSum,
		[]float64{float64(len(rhos)), floats.Sum(rhos), floats.Sum(energies)})
	ls.NCells = int(sums[0])
	if ls.NCells > 0 {
		ls.AvRho = sums[1] / sums[0]
		ls.AvEnergy = sums[2] / sums[0]
	}
	ls.MaxU = comm.AllreduceFloat(parallel.OpMax, maxU)
	return
}

func (sl *SuperLattice) AverageRho() float64 {
	return sl.Statistics().AvRho
}

// TotalMass sums the populations of every core cell on all ranks
func (sl *SuperLattice) TotalMass() float64 {
	m := 0.
	for _, bl := range sl.blocks {
		m += bl.Mass()
	}
	return sl.sg.Context().Comm.AllreduceFloat(parallel.OpSum, m)
}

func (sl *SuperLattice) PrintStatistics() {
	ls := sl.Statistics()
	sl.logger.Printf("step=%d; avRho=%.8g; avEnergy=%.8g; uMax=%.8g",
		sl.step, ls.AvRho, ls.AvEnergy, ls.MaxU)
}
