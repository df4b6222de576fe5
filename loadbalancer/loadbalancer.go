// Package loadbalancer distributes the cuboids of a geometry over ranks and
// keeps the local to global index maps of one rank.
package loadbalancer

import (
	"errors"
	"fmt"
	"log"

	"github.com/notargets/golbm/cuboid"
)

var (
	ErrNoCuboids = errors.New("load balancer needs at least one cuboid")
	ErrNoRanks   = errors.New("load balancer needs at least one rank")
)

// LoadBalancer maps dense per rank local indices onto global cuboid ids
type LoadBalancer interface {
	Size() int               // Number of local cuboids
	Glob(loc int) int        // Global id of local cuboid loc
	Loc(glob int) int        // Local index on the owning rank
	Rank(glob int) int       // Owning rank
	IsLocal(glob int) bool   // Owned by this rank
	GlobalSize() int         // Number of cuboids
	Ranks() []int            // Owning rank of every cuboid
	NeighbourRanks() []int   // Other ranks sharing halo cells with this one
	Print(logger *log.Logger)
}

type Balancer struct {
	strategy   string
	rank       int
	nRanks     int
	glob       []int // local -> global on this rank
	loc        []int // global -> local on the owning rank
	ranks      []int // global -> rank
	neighbours []int
}

/*
New assigns the cuboids of cg to nRanks ranks with strategy and builds the
index maps seen from rank. Halo neighbours are the ranks owning a cuboid
within overlap cells of a local cuboid.
*/
func New(strategy Strategy, cg *cuboid.CuboidGeometry, rank, nRanks, overlap int) (lb *Balancer, err error) {
	if cg == nil || cg.Nc() == 0 {
		return nil, ErrNoCuboids
	}
	if nRanks <= 0 {
		return nil, fmt.Errorf("%w: have %d", ErrNoRanks, nRanks)
	}
	var ranks []int
	if ranks, err = strategy.Assign(cg, nRanks); err != nil {
		return nil, fmt.Errorf("%s load balancer: %w", strategy.Name(), err)
	}
	if lb, err = NewFromRanks(ranks, rank, nRanks); err != nil {
		return
	}
	lb.strategy = strategy.Name()
	lb.findNeighbours(cg, overlap)
	return
}

// NewFromRanks builds the index maps of an explicit assignment
func NewFromRanks(ranks []int, rank, nRanks int) (lb *Balancer, err error) {
	if len(ranks) == 0 {
		return nil, ErrNoCuboids
	}
	if nRanks <= 0 {
		return nil, fmt.Errorf("%w: have %d", ErrNoRanks, nRanks)
	}
	lb = &Balancer{
		strategy: "explicit",
		rank:     rank,
		nRanks:   nRanks,
		loc:      make([]int, len(ranks)),
		ranks:    append([]int(nil), ranks...),
	}
	count := make([]int, nRanks)
	for iC, r := range ranks {
		if r < 0 || r >= nRanks {
			return nil, fmt.Errorf("cuboid %d assigned to rank %d of %d", iC, r, nRanks)
		}
		lb.loc[iC] = count[r]
		count[r]++
		if r == rank {
			lb.glob = append(lb.glob, iC)
		}
	}
	return
}

func (lb *Balancer) findNeighbours(cg *cuboid.CuboidGeometry, overlap int) {
	seen := make([]bool, lb.nRanks)
	for _, iC := range lb.glob {
		for _, jC := range cg.Neighbourhood(iC, overlap) {
			seen[lb.ranks[jC]] = true
		}
	}
	lb.neighbours = nil
	for r, s := range seen {
		if s && r != lb.rank {
			lb.neighbours = append(lb.neighbours, r)
		}
	}
}

func (lb *Balancer) Size() int             { return len(lb.glob) }
func (lb *Balancer) Glob(loc int) int      { return lb.glob[loc] }
func (lb *Balancer) Loc(glob int) int      { return lb.loc[glob] }
func (lb *Balancer) Rank(glob int) int     { return lb.ranks[glob] }
func (lb *Balancer) IsLocal(glob int) bool { return lb.ranks[glob] == lb.rank }
func (lb *Balancer) GlobalSize() int       { return len(lb.ranks) }
func (lb *Balancer) Ranks() []int          { return lb.ranks }
func (lb *Balancer) NeighbourRanks() []int { return lb.neighbours }

func (lb *Balancer) Print(logger *log.Logger) {
	logger.Printf("---LoadBalancer (%s)---", lb.strategy)
	logger.Printf(" Rank %d of %d owns %d of %d cuboids: %v",
		lb.rank, lb.nRanks, lb.Size(), lb.GlobalSize(), lb.glob)
	logger.Printf(" Neighbour ranks: %v", lb.neighbours)
}
