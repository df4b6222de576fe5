package communication

import "fmt"

/*
Field is per block data that can be exchanged on the halo. Cells are storage
indices of a cuboid.BlockLayout, every cell holds Components values.
*/
type Field interface {
	Name() string
	Components() int
	Gather(iCloc int, cells []int) any
	Scatter(iCloc int, cells []int, data any) error
	Copy(srcLoc int, srcCells []int, dstLoc int, dstCells []int)
}

// BlockField is a Field over one contiguous slice per local block, stored
// cell major
type BlockField[T any] struct {
	name   string
	q      int
	Blocks [][]T
}

func NewField[T any](name string, components int, blocks [][]T) *BlockField[T] {
	return &BlockField[T]{name: name, q: components, Blocks: blocks}
}

func (f *BlockField[T]) Name() string    { return f.name }
func (f *BlockField[T]) Components() int { return f.q }

func (f *BlockField[T]) Gather(iCloc int, cells []int) any {
	var (
		q   = f.q
		src = f.Blocks[iCloc]
		buf = make([]T, q*len(cells))
	)
	for i, cell := range cells {
		copy(buf[i*q:(i+1)*q], src[cell*q:(cell+1)*q])
	}
	return buf
}

func (f *BlockField[T]) Scatter(iCloc int, cells []int, data any) error {
	buf, ok := data.([]T)
	if !ok {
		return fmt.Errorf("field %s received %T", f.name, data)
	}
	if len(buf) != f.q*len(cells) {
		return fmt.Errorf("field %s received %d values for %d cells", f.name, len(buf), len(cells))
	}
	var (
		q   = f.q
		dst = f.Blocks[iCloc]
	)
	for i, cell := range cells {
		copy(dst[cell*q:(cell+1)*q], buf[i*q:(i+1)*q])
	}
	return nil
}

func (f *BlockField[T]) Copy(srcLoc int, srcCells []int, dstLoc int, dstCells []int) {
	var (
		q        = f.q
		src, dst = f.Blocks[srcLoc], f.Blocks[dstLoc]
	)
	for i := range srcCells {
		copy(dst[dstCells[i]*q:(dstCells[i]+1)*q], src[srcCells[i]*q:(srcCells[i]+1)*q])
	}
}
