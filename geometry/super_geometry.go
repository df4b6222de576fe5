package geometry

import (
	"fmt"
	"log"

	"github.com/notargets/golbm/communication"
	"github.com/notargets/golbm/cuboid"
	"github.com/notargets/golbm/functors/indicator"
	"github.com/notargets/golbm/loadbalancer"
	"github.com/notargets/golbm/parallel"
	"github.com/notargets/golbm/serializer"
	"github.com/notargets/golbm/types"
)

/*
SuperGeometry owns one BlockGeometry per local cuboid of a rank. Mutations
run on every local block and then refresh the ghost layers, so all of them
are collective: every rank calls them in the same order.
*/
type SuperGeometry struct {
	ctx     *parallel.RuntimeContext
	cg      *cuboid.CuboidGeometry
	lb      loadbalancer.LoadBalancer
	overlap int
	blocks  []*BlockGeometry
	comm    *communication.Communicator
	stats   *SuperGeometryStatistics
	logger  *log.Logger
}

func NewSuperGeometry(ctx *parallel.RuntimeContext, cg *cuboid.CuboidGeometry,
	lb loadbalancer.LoadBalancer, overlap int) (sg *SuperGeometry, err error) {
	if overlap < 1 {
		return nil, fmt.Errorf("super geometry needs an overlap of at least 1, have %d", overlap)
	}
	if cg.Nc() != lb.GlobalSize() {
		return nil, fmt.Errorf("load balancer covers %d cuboids, geometry has %d",
			lb.GlobalSize(), cg.Nc())
	}
	sg = &SuperGeometry{
		ctx:     ctx,
		cg:      cg,
		lb:      lb,
		overlap: overlap,
		blocks:  make([]*BlockGeometry, lb.Size()),
		logger:  ctx.Logger("SuperGeometry"),
	}
	var (
		layouts   = make([]cuboid.BlockLayout, lb.Size())
		materials = make([][]int, lb.Size())
	)
	for iCloc := range sg.blocks {
		iC := lb.Glob(iCloc)
		bg := NewBlockGeometry(iC, cg.Get(iC), overlap, ctx.MultiLogger("BlockGeometry"))
		sg.blocks[iCloc] = bg
		layouts[iCloc] = bg.layout
		materials[iCloc] = bg.materials
	}
	sg.comm = communication.NewCommunicator(ctx, cg, lb, layouts)
	sg.comm.RequestField(communication.NewField("material", 1, materials))
	if err = sg.comm.RequestOverlap(overlap); err != nil {
		return nil, err
	}
	if err = sg.comm.ExchangeRequests(); err != nil {
		return nil, err
	}
	sg.stats = newSuperGeometryStatistics(sg)
	return
}

func (sg *SuperGeometry) Context() *parallel.RuntimeContext       { return sg.ctx }
func (sg *SuperGeometry) CuboidGeometry() *cuboid.CuboidGeometry  { return sg.cg }
func (sg *SuperGeometry) LoadBalancer() loadbalancer.LoadBalancer { return sg.lb }
func (sg *SuperGeometry) Overlap() int                            { return sg.overlap }
func (sg *SuperGeometry) Blocks() []*BlockGeometry                { return sg.blocks }
func (sg *SuperGeometry) Block(iCloc int) *BlockGeometry          { return sg.blocks[iCloc] }
func (sg *SuperGeometry) Statistics() *SuperGeometryStatistics    { return sg.stats }
func (sg *SuperGeometry) Dim() int                                { return sg.cg.Dim }

// Communicate refreshes the ghost layers of all local blocks
func (sg *SuperGeometry) Communicate() {
	if err := sg.comm.Communicate(); err != nil {
		panic(fmt.Errorf("material exchange: %w", err))
	}
}

// mutate applies fn to every local block, refreshes the halo and returns
// the number of cells changed on all ranks
func (sg *SuperGeometry) mutate(fn func(bg *BlockGeometry) int) (n int) {
	for _, bg := range sg.blocks {
		n += fn(bg)
	}
	if n > 0 {
		sg.stats.SetDirty()
	}
	sg.Communicate()
	return sg.ctx.Comm.AllreduceInt(parallel.OpSum, n)
}

// Get returns the material of cell l of cuboid iC, which must be local
func (sg *SuperGeometry) Get(iC int, l types.LatticeR) int {
	return sg.blocks[sg.lb.Loc(iC)].Get(l)
}

// GetPhys returns the material at x when a local cuboid holds it
func (sg *SuperGeometry) GetPhys(x types.Vector) (m int, ok bool) {
	iC, l, found := sg.cg.LatticeR(x)
	if !found || !sg.lb.IsLocal(iC) {
		return
	}
	return sg.Get(iC, l), true
}

func (sg *SuperGeometry) Rename(from, to int) {
	sg.mutate(func(bg *BlockGeometry) int { return bg.Rename(from, to) })
}

func (sg *SuperGeometry) RenameIn(from, to int, ind indicator.Indicator) {
	sg.mutate(func(bg *BlockGeometry) int { return bg.RenameIn(from, to, ind) })
}

func (sg *SuperGeometry) RenameOffset(from, to int, offset types.LatticeR) error {
	for d := 0; d < sg.Dim(); d++ {
		if offset[d] < 0 || offset[d] > sg.overlap {
			return fmt.Errorf("offset %v exceeds the overlap %d", offset, sg.overlap)
		}
	}
	sg.mutate(func(bg *BlockGeometry) int { return bg.RenameOffset(from, to, offset) })
	return nil
}

func (sg *SuperGeometry) RenameNextTo(from, to, next int, ind indicator.Indicator) {
	sg.mutate(func(bg *BlockGeometry) int { return bg.RenameNextTo(from, to, next, ind) })
}

func (sg *SuperGeometry) Clean(verbose bool) (n int) {
	n = sg.mutate((*BlockGeometry).Clean)
	if verbose {
		sg.logger.Printf("cleaned %d outer boundary voxel(s)", n)
	}
	return
}

func (sg *SuperGeometry) OuterClean(verbose bool) (n int) {
	n = sg.mutate((*BlockGeometry).OuterClean)
	if verbose {
		sg.logger.Printf("cleaned %d outer fluid voxel(s)", n)
	}
	return
}

func (sg *SuperGeometry) InnerClean(verbose bool) (n int) {
	n = sg.mutate((*BlockGeometry).InnerClean)
	if verbose {
		sg.logger.Printf("cleaned %d inner boundary voxel(s)", n)
	}
	return
}

func (sg *SuperGeometry) InnerCleanMaterial(from int, verbose bool) (n int) {
	n = sg.mutate(func(bg *BlockGeometry) int { return bg.InnerCleanMaterial(from) })
	if verbose {
		sg.logger.Printf("cleaned %d inner boundary voxel(s) of material %d", n, from)
	}
	return
}

// CheckForErrors counts empty cells next to fluid on all ranks and logs the
// verdict. It never aborts the run.
func (sg *SuperGeometry) CheckForErrors(verbose bool) (errorFound bool) {
	n := 0
	for _, bg := range sg.blocks {
		n += bg.CheckForErrors(verbose)
	}
	n = sg.ctx.Comm.AllreduceInt(parallel.OpSum, n)
	errorFound = n > 0
	if errorFound {
		sg.logger.Printf("error: the model contains %d empty cell(s) next to fluid", n)
	} else {
		sg.logger.Printf("the model is correct")
	}
	return
}

func (sg *SuperGeometry) MaterialIndicator(ids ...int) *MaterialIndicator {
	return NewMaterialIndicator(sg, ids...)
}

// RankField holds the owning rank of every stored cell, -1 where no cuboid
// owns a ghost cell
func (sg *SuperGeometry) RankField() [][]int {
	return sg.ownerField("rank", func(int) int { return sg.ctx.Rank() })
}

// CuboidField holds the global cuboid id of every stored cell, -1 where no
// cuboid owns a ghost cell
func (sg *SuperGeometry) CuboidField() [][]int {
	return sg.ownerField("cuboid", func(iC int) int { return iC })
}

func (sg *SuperGeometry) ownerField(name string, value func(iC int) int) (data [][]int) {
	data = make([][]int, len(sg.blocks))
	for iCloc, bg := range sg.blocks {
		data[iCloc] = make([]int, bg.layout.CellCount())
		for i := range data[iCloc] {
			data[iCloc][i] = -1
		}
		v := value(bg.iC)
		bg.layout.ForCore(func(l types.LatticeR) {
			data[iCloc][bg.layout.Index(l)] = v
		})
	}
	if err := sg.comm.CommunicateFields(communication.NewField(name, 1, data)); err != nil {
		panic(fmt.Errorf("%s exchange: %w", name, err))
	}
	return
}

func (sg *SuperGeometry) Schema() (fields []serializer.Field) {
	for _, bg := range sg.blocks {
		for _, f := range bg.Schema() {
			f.Name = fmt.Sprintf("cuboid%d.%s", bg.iC, f.Name)
			fields = append(fields, f)
		}
	}
	return
}

// PostLoad is collective, it refreshes the ghost layers after a restore
func (sg *SuperGeometry) PostLoad() error {
	for _, bg := range sg.blocks {
		bg.stats.SetDirty()
	}
	sg.stats.SetDirty()
	sg.Communicate()
	return nil
}

// Print is collective
func (sg *SuperGeometry) Print() {
	sg.cg.Print(sg.logger)
	sg.stats.Print(sg.logger)
}
