package parallel

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoRanks = errors.New("number of ranks must be positive")
	ErrAborted = errors.New("rank aborted because a peer failed")
)

// Reduction operators for the collective calls
type Op uint8

const (
	OpSum Op = iota
	OpMax
	OpMin
	OpLor // logical or, any non-zero input yields 1
)

const (
	tagCollective = -1
	tagBarrier    = -2
)

type message struct {
	tag     int
	payload any
}

// World connects np ranks with one mailbox per ordered rank pair
type World struct {
	NP    int
	links [][]*MailBox[message] // links[src][dst]
}

func NewWorld(np int) (w *World, err error) {
	if np <= 0 {
		err = fmt.Errorf("%w: have %d", ErrNoRanks, np)
		return
	}
	w = &World{NP: np, links: make([][]*MailBox[message], np)}
	for src := 0; src < np; src++ {
		w.links[src] = make([]*MailBox[message], np)
		for dst := 0; dst < np; dst++ {
			w.links[src][dst] = NewMailBox[message]()
		}
	}
	return
}

// Comm returns the communicator handle of one rank
func (w *World) Comm(rank int) *Comm {
	return &Comm{rank: rank, world: w}
}

func (w *World) abort() {
	for src := range w.links {
		for _, mb := range w.links[src] {
			mb.abort()
		}
	}
}

// Comm is the per-rank message passing handle. All calls block until they
// complete. Collectives must be issued by every rank in the same order.
type Comm struct {
	rank  int
	world *World
}

func (c *Comm) Rank() int { return c.rank }
func (c *Comm) Size() int { return c.world.NP }

// Send posts payload to dst. The payload must not be modified afterwards.
func (c *Comm) Send(dst, tag int, payload any) {
	if dst < 0 || dst >= c.world.NP {
		panic(fmt.Sprintf("target rank %d out of bounds", dst))
	}
	c.world.links[c.rank][dst].PostMessage(message{tag: tag, payload: payload})
}

// Recv blocks until the next message from src arrives. Messages between a
// pair of ranks are delivered in posting order, so a tag mismatch means the
// ranks disagree on the communication sequence.
func (c *Comm) Recv(src, tag int) any {
	if src < 0 || src >= c.world.NP {
		panic(fmt.Sprintf("source rank %d out of bounds", src))
	}
	msg, ok := c.world.links[src][c.rank].ReceiveMessage()
	if !ok {
		panic(ErrAborted)
	}
	if msg.tag != tag {
		panic(fmt.Sprintf("rank %d expected tag %d from rank %d, received tag %d",
			c.rank, tag, src, msg.tag))
	}
	return msg.payload
}

func (c *Comm) SendRecv(peer, tag int, payload any) any {
	c.Send(peer, tag, payload)
	return c.Recv(peer, tag)
}

func (c *Comm) Barrier() {
	for r := 0; r < c.world.NP; r++ {
		if r != c.rank {
			c.Send(r, tagBarrier, nil)
		}
	}
	for r := 0; r < c.world.NP; r++ {
		if r != c.rank {
			c.Recv(r, tagBarrier)
		}
	}
}

func allgather[T any](c *Comm, in []T) (out [][]T) {
	out = make([][]T, c.world.NP)
	mine := make([]T, len(in))
	copy(mine, in)
	out[c.rank] = mine
	for r := 0; r < c.world.NP; r++ {
		if r != c.rank {
			c.Send(r, tagCollective, mine)
		}
	}
	for r := 0; r < c.world.NP; r++ {
		if r != c.rank {
			out[r] = c.Recv(r, tagCollective).([]T)
		}
	}
	return
}

// AllgatherInts returns every rank's input, indexed by rank
func (c *Comm) AllgatherInts(in []int) [][]int { return allgather(c, in) }

func (c *Comm) AllgatherFloats(in []float64) [][]float64 { return allgather(c, in) }

// AllreduceInts combines the inputs of all ranks element-wise. Inputs are
// folded in rank order on every rank.
func (c *Comm) AllreduceInts(op Op, in []int) (out []int) {
	all := c.AllgatherInts(in)
	out = make([]int, len(in))
	for i := range out {
		acc := all[0][i]
		if op == OpLor {
			acc = b2i(acc != 0)
		}
		for r := 1; r < len(all); r++ {
			if len(all[r]) != len(in) {
				panic(fmt.Sprintf("allreduce length mismatch on rank %d: %d != %d",
					r, len(all[r]), len(in)))
			}
			v := all[r][i]
			switch op {
			case OpSum:
				acc += v
			case OpMax:
				acc = max(acc, v)
			case OpMin:
				acc = min(acc, v)
			case OpLor:
				acc = b2i(acc != 0 || v != 0)
			}
		}
		out[i] = acc
	}
	return
}

func (c *Comm) AllreduceFloats(op Op, in []float64) (out []float64) {
	all := c.AllgatherFloats(in)
	out = make([]float64, len(in))
	for i := range out {
		acc := all[0][i]
		for r := 1; r < len(all); r++ {
			if len(all[r]) != len(in) {
				panic(fmt.Sprintf("allreduce length mismatch on rank %d: %d != %d",
					r, len(all[r]), len(in)))
			}
			v := all[r][i]
			switch op {
			case OpSum:
				acc += v
			case OpMax:
				acc = math.Max(acc, v)
			case OpMin:
				acc = math.Min(acc, v)
			case OpLor:
				acc = float64(b2i(acc != 0 || v != 0))
			}
		}
		out[i] = acc
	}
	return
}

func (c *Comm) AllreduceInt(op Op, v int) int {
	return c.AllreduceInts(op, []int{v})[0]
}

func (c *Comm) AllreduceFloat(op Op, v float64) float64 {
	return c.AllreduceFloats(op, []float64{v})[0]
}

// BcastInt returns root's value on every rank
func (c *Comm) BcastInt(root, v int) int {
	if c.rank == root {
		for r := 0; r < c.world.NP; r++ {
			if r != root {
				c.Send(r, tagCollective, v)
			}
		}
		return v
	}
	return c.Recv(root, tagCollective).(int)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
