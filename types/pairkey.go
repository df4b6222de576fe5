package types

import (
	"fmt"
	"math"
)

/*
PairKey stores an unordered pair of non-negative indices so that it can be used
as a map key. The pair (4,0) is stored as (0,4), ascending.
*/
type PairKey uint64

func NewPairKey(a, b int) (packed PairKey) {
	var (
		limit = math.MaxUint32
	)
	if a < 0 || a > limit || b < 0 || b > limit {
		panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs",
			a, b))
	}
	if a > b {
		a, b = b, a
	}
	packed = PairKey(uint64(a) + uint64(b)<<32)
	return
}

func (pk PairKey) Get() (a, b int) {
	b = int(pk >> 32)
	a = int(pk & math.MaxUint32)
	return
}
