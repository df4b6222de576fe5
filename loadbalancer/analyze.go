package loadbalancer

import (
	"log"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/golbm/cuboid"
	"github.com/notargets/golbm/types"
)

// Analysis summarises the quality of an assignment
type Analysis struct {
	Loads      []float64 // Total weight per rank
	NumCuboids []int
	MinLoad    float64
	MaxLoad    float64
	AvgLoad    float64
	Imbalance  float64     // MaxLoad/AvgLoad - 1
	LowerBound float64     // No assignment can have a smaller MaxLoad
	CutVolume  int         // Halo cells exchanged between different ranks
	Interfaces map[types.PairKey]int
}

func Analyze(cg *cuboid.CuboidGeometry, ranks []int, nRanks, overlap int) (a *Analysis) {
	a = &Analysis{
		Loads:      make([]float64, nRanks),
		NumCuboids: make([]int, nRanks),
		Interfaces: make(map[types.PairKey]int),
	}
	var maxW float64
	for iC, r := range ranks {
		w := float64(cg.Get(iC).Weight())
		a.Loads[r] += w
		a.NumCuboids[r]++
		maxW = max(maxW, w)
	}
	a.MinLoad = floats.Min(a.Loads)
	a.MaxLoad = floats.Max(a.Loads)
	a.AvgLoad = stat.Mean(a.Loads, nil)
	if a.AvgLoad > 0 {
		a.Imbalance = a.MaxLoad/a.AvgLoad - 1
	}
	total := floats.Sum(a.Loads)
	a.LowerBound = max(maxW, float64(int(total+float64(nRanks)-1)/nRanks))

	raw := cg.Adjacency(overlap).RawMatrix()
	for i := 0; i+1 < len(raw.Indptr); i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			j := raw.Ind[k]
			if j <= i || ranks[i] == ranks[j] {
				continue
			}
			a.CutVolume += int(raw.Data[k])
			a.Interfaces[types.NewPairKey(ranks[i], ranks[j])] += int(raw.Data[k])
		}
	}
	return
}

func (a *Analysis) Print(logger *log.Logger) {
	logger.Printf("Partition Analysis:")
	logger.Printf("  Cut volume: %d", a.CutVolume)
	logger.Printf("  Load imbalance: %.2f%%", a.Imbalance*100)
	logger.Printf("  Load range: [%.0f, %.0f], avg: %.1f, bound: %.0f",
		a.MinLoad, a.MaxLoad, a.AvgLoad, a.LowerBound)
	logger.Printf("Per-rank statistics:")
	for r := range a.Loads {
		logger.Printf("  Rank %d: %d cuboids, load %.0f", r, a.NumCuboids[r], a.Loads[r])
	}
	logger.Printf("Interface statistics:")
	for _, pair := range a.InterfacePairs() {
		r1, r2 := pair.Get()
		logger.Printf("  Rank %d <-> %d: %d cells", r1, r2, a.Interfaces[pair])
	}
}

// InterfacePairs lists the interface keys by lower rank, then higher rank
func (a *Analysis) InterfacePairs() (pairs []types.PairKey) {
	pairs = make([]types.PairKey, 0, len(a.Interfaces))
	for pair := range a.Interfaces {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, bi := pairs[i].Get()
		aj, bj := pairs[j].Get()
		if ai != aj {
			return ai < aj
		}
		return bi < bj
	})
	return
}
