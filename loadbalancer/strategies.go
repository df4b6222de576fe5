package loadbalancer

import (
	"fmt"
	"sort"
	"strings"

	metis "github.com/notargets/go-metis"

	"github.com/notargets/golbm/cuboid"
)

// Strategy assigns every cuboid of a geometry to a rank
type Strategy interface {
	Name() string
	Assign(cg *cuboid.CuboidGeometry, nRanks int) (ranks []int, err error)
}

// NewStrategy maps a configuration name onto a strategy. The graph strategy
// weights communication with the overlap the geometry will be built with.
func NewStrategy(name string, overlap int) (s Strategy, err error) {
	switch strings.ToLower(name) {
	case "block", "":
		s = Block{}
	case "roundrobin", "round-robin":
		s = RoundRobin{}
	case "heuristic", "greedy":
		s = Heuristic{}
	case "graph", "metis":
		g := DefaultGraph()
		if overlap > 0 {
			g.Overlap = overlap
		}
		s = g
	default:
		err = fmt.Errorf("unknown load balancer %q", name)
	}
	return
}

// Block hands out contiguous ranges of cuboid ids, sizes differing by one
type Block struct{}

func (Block) Name() string { return "block" }

func (Block) Assign(cg *cuboid.CuboidGeometry, nRanks int) (ranks []int, err error) {
	pm := NewPartitionMap(nRanks, cg.Nc())
	ranks = make([]int, cg.Nc())
	for iC := range ranks {
		ranks[iC], _, _ = pm.GetBucket(iC)
	}
	return
}

type RoundRobin struct{}

func (RoundRobin) Name() string { return "roundrobin" }

func (RoundRobin) Assign(cg *cuboid.CuboidGeometry, nRanks int) (ranks []int, err error) {
	ranks = make([]int, cg.Nc())
	for iC := range ranks {
		ranks[iC] = iC % nRanks
	}
	return
}

/*
Heuristic is the greedy longest processing time rule: cuboids in order of
decreasing weight go to the rank with the least load so far, ties to the
lower rank. The largest load is at most the optimum plus one cuboid weight.
*/
type Heuristic struct{}

func (Heuristic) Name() string { return "heuristic" }

func (Heuristic) Assign(cg *cuboid.CuboidGeometry, nRanks int) (ranks []int, err error) {
	var (
		nC    = cg.Nc()
		order = make([]int, nC)
		loads = make([]int, nRanks)
	)
	ranks = make([]int, nC)
	for iC := range order {
		order[iC] = iC
	}
	sort.SliceStable(order, func(i, j int) bool {
		return cg.Get(order[i]).Weight() > cg.Get(order[j]).Weight()
	})
	for _, iC := range order {
		target := 0
		for r := 1; r < nRanks; r++ {
			if loads[r] < loads[target] {
				target = r
			}
		}
		ranks[iC] = target
		loads[target] += cg.Get(iC).Weight()
	}
	return
}

// Graph partitions the cuboid adjacency graph with METIS. Vertex weights are
// the cuboid weights, edge weights the number of exchanged halo cells.
type Graph struct {
	Overlap         int
	ImbalanceFactor float32
	Objective       string // "cut" or "vol"
}

func DefaultGraph() Graph {
	return Graph{Overlap: 1, ImbalanceFactor: 1.05, Objective: "vol"}
}

func (Graph) Name() string { return "graph" }

func (g Graph) Assign(cg *cuboid.CuboidGeometry, nRanks int) (ranks []int, err error) {
	if nRanks == 1 {
		return make([]int, cg.Nc()), nil
	}
	if cg.Nc() < nRanks {
		// Too few vertices for a k-way partition
		return Heuristic{}.Assign(cg, nRanks)
	}
	xadj, adjncy, vwgt, adjwgt := BuildGraph(cg, g.Overlap)

	opts := make([]int32, metis.NoOptions)
	if err = metis.SetDefaultOptions(opts); err != nil {
		return nil, fmt.Errorf("failed to set METIS options: %w", err)
	}
	if g.Objective == "cut" {
		opts[metis.OptionObjType] = metis.ObjTypeCut
	} else {
		opts[metis.OptionObjType] = metis.ObjTypeVol
	}
	ubvec := []float32{g.ImbalanceFactor}

	part, _, err := metis.PartGraphKwayWeighted(
		xadj, adjncy, vwgt, adjwgt,
		int32(nRanks), nil, ubvec, opts,
	)
	if err != nil {
		return nil, fmt.Errorf("METIS partitioning failed: %w", err)
	}
	ranks = make([]int, cg.Nc())
	for iC := range ranks {
		ranks[iC] = int(part[iC])
	}
	return
}

// BuildGraph converts the cuboid adjacency into METIS CSR arrays
func BuildGraph(cg *cuboid.CuboidGeometry, overlap int) (xadj, adjncy, vwgt, adjwgt []int32) {
	raw := cg.Adjacency(overlap).RawMatrix()
	xadj = make([]int32, len(raw.Indptr))
	for i, v := range raw.Indptr {
		xadj[i] = int32(v)
	}
	adjncy = make([]int32, len(raw.Ind))
	adjwgt = make([]int32, len(raw.Data))
	for i := range raw.Ind {
		adjncy[i] = int32(raw.Ind[i])
		adjwgt[i] = int32(raw.Data[i])
	}
	vwgt = make([]int32, cg.Nc())
	for iC := range vwgt {
		vwgt[iC] = int32(max(1, cg.Get(iC).Weight()))
	}
	return
}
