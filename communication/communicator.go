// Package communication keeps the ghost layers of neighbouring blocks in
// sync, by message passing across ranks and by direct copies within a rank.
package communication

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/notargets/golbm/cuboid"
	"github.com/notargets/golbm/loadbalancer"
	"github.com/notargets/golbm/parallel"
	"github.com/notargets/golbm/types"
)

var ErrNotReady = errors.New("communicator used before ExchangeRequests")

const (
	tagRequests = 100
	tagHalo     = 101
)

// request asks the owner of cuboid Src for the listed cells, in the local
// coordinates of Src
type request struct {
	Src, Dst int
	Cells    []types.LatticeR
}

type transfer struct {
	loc   int
	cells []int
}

type localCopy struct {
	src, dst transfer
}

/*
Communicator is set up in three steps: RequestField and RequestOverlap
declare what to exchange, ExchangeRequests builds the plan on every rank.
Communicate then refreshes the ghost cells of all local blocks. Every rank
must call ExchangeRequests and Communicate the same number of times.
*/
type Communicator struct {
	ctx     *parallel.RuntimeContext
	cg      *cuboid.CuboidGeometry
	lb      loadbalancer.LoadBalancer
	layouts []cuboid.BlockLayout
	fields  []Field
	overlap int
	ready   bool
	send    map[int][]transfer
	recv    map[int][]transfer
	local   []localCopy
	peers   []int
	logger  *log.Logger
}

// NewCommunicator serves the local blocks described by layouts, indexed by
// local cuboid index
func NewCommunicator(ctx *parallel.RuntimeContext, cg *cuboid.CuboidGeometry,
	lb loadbalancer.LoadBalancer, layouts []cuboid.BlockLayout) *Communicator {
	return &Communicator{
		ctx:     ctx,
		cg:      cg,
		lb:      lb,
		layouts: layouts,
		overlap: 1,
		logger:  ctx.Logger("SuperCommunicator"),
	}
}

func (c *Communicator) RequestField(f Field) {
	c.fields = append(c.fields, f)
	c.ready = false
}

// RequestOverlap sets the width of the exchanged layer, at most the padding
// of every block
func (c *Communicator) RequestOverlap(width int) error {
	for iCloc, bl := range c.layouts {
		if width > bl.Padding {
			return fmt.Errorf("overlap %d exceeds the padding %d of block %d",
				width, bl.Padding, iCloc)
		}
	}
	if width < 0 {
		return fmt.Errorf("negative overlap %d", width)
	}
	c.overlap = width
	c.ready = false
	return nil
}

func (c *Communicator) Overlap() int { return c.overlap }

// ExchangeRequests is collective. Every rank determines the owners of its
// ghost cells and ships the requests to them.
func (c *Communicator) ExchangeRequests() error {
	var (
		comm     = c.ctx.Comm
		me       = comm.Rank()
		outgoing = make([][]request, comm.Size())
	)
	c.send = make(map[int][]transfer)
	c.recv = make(map[int][]transfer)
	c.local = nil
	for iCloc := 0; iCloc < c.lb.Size(); iCloc++ {
		iC := c.lb.Glob(iCloc)
		var (
			order     []int
			dstCells  = make(map[int][]int)
			srcCoords = make(map[int][]types.LatticeR)
		)
		c.cg.ForEachGhost(iC, c.overlap, func(l types.LatticeR, owner int, ol types.LatticeR) {
			if _, ok := dstCells[owner]; !ok {
				order = append(order, owner)
			}
			dstCells[owner] = append(dstCells[owner], c.layouts[iCloc].Index(l))
			srcCoords[owner] = append(srcCoords[owner], ol)
		})
		for _, jC := range order {
			dst := transfer{loc: iCloc, cells: dstCells[jC]}
			r := c.lb.Rank(jC)
			if r == me {
				jCloc := c.lb.Loc(jC)
				src := transfer{loc: jCloc, cells: c.indices(jCloc, srcCoords[jC])}
				c.local = append(c.local, localCopy{src: src, dst: dst})
				continue
			}
			c.recv[r] = append(c.recv[r], dst)
			outgoing[r] = append(outgoing[r], request{Src: jC, Dst: iC, Cells: srcCoords[jC]})
		}
	}
	for r := 0; r < comm.Size(); r++ {
		if r != me {
			comm.Send(r, tagRequests, outgoing[r])
		}
	}
	for r := 0; r < comm.Size(); r++ {
		if r == me {
			continue
		}
		for _, req := range comm.Recv(r, tagRequests).([]request) {
			if !c.lb.IsLocal(req.Src) {
				return fmt.Errorf("rank %d asked rank %d for cuboid %d it does not own",
					r, me, req.Src)
			}
			jCloc := c.lb.Loc(req.Src)
			c.send[r] = append(c.send[r], transfer{loc: jCloc, cells: c.indices(jCloc, req.Cells)})
		}
	}
	c.peers = c.peers[:0]
	for r := 0; r < comm.Size(); r++ {
		if len(c.send[r]) > 0 || len(c.recv[r]) > 0 {
			c.peers = append(c.peers, r)
		}
	}
	sort.Ints(c.peers)
	c.ready = true
	c.logger.Printf("overlap %d, %d fields, %d local copies, peers %v",
		c.overlap, len(c.fields), len(c.local), c.peers)
	return nil
}

func (c *Communicator) indices(iCloc int, coords []types.LatticeR) (cells []int) {
	cells = make([]int, len(coords))
	for i, l := range coords {
		cells[i] = c.layouts[iCloc].Index(l)
	}
	return
}

// Peers lists the ranks exchanged with
func (c *Communicator) Peers() []int { return c.peers }

// Communicate exchanges the requested fields
func (c *Communicator) Communicate() error {
	return c.CommunicateFields(c.fields...)
}

// CommunicateFields exchanges fields along the plan built by
// ExchangeRequests. It blocks until every ghost cell is up to date.
func (c *Communicator) CommunicateFields(fields ...Field) (err error) {
	if !c.ready {
		return ErrNotReady
	}
	comm := c.ctx.Comm
	for _, r := range c.peers {
		if len(c.send[r]) == 0 {
			continue
		}
		payload := make([]any, 0, len(c.send[r])*len(fields))
		for _, tr := range c.send[r] {
			for _, f := range fields {
				payload = append(payload, f.Gather(tr.loc, tr.cells))
			}
		}
		comm.Send(r, tagHalo, payload)
	}
	for _, lc := range c.local {
		for _, f := range fields {
			f.Copy(lc.src.loc, lc.src.cells, lc.dst.loc, lc.dst.cells)
		}
	}
	for _, r := range c.peers {
		if len(c.recv[r]) == 0 {
			continue
		}
		payload := comm.Recv(r, tagHalo).([]any)
		if len(payload) != len(c.recv[r])*len(fields) {
			return fmt.Errorf("rank %d sent %d blocks, expected %d",
				r, len(payload), len(c.recv[r])*len(fields))
		}
		k := 0
		for _, tr := range c.recv[r] {
			for _, f := range fields {
				if err = f.Scatter(tr.loc, tr.cells, payload[k]); err != nil {
					return
				}
				k++
			}
		}
	}
	return
}
