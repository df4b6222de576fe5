package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypes(t *testing.T) {
	{ // Packed pair keys are order independent
		pk := NewPairKey(1, 0)
		assert.Equal(t, PairKey(1<<32), pk)
		a, b := pk.Get()
		assert.Equal(t, [2]int{0, 1}, [2]int{a, b})

		pk = NewPairKey(100, 100001)
		assert.Equal(t, PairKey(100001*(1<<32)+100), pk)
		assert.Equal(t, NewPairKey(100001, 100), pk)

		pk = NewPairKey(1<<32-1, 1<<32-1)
		assert.Equal(t, PairKey(1<<64-1), pk)
		a, b = pk.Get()
		assert.Equal(t, [2]int{1<<32 - 1, 1<<32 - 1}, [2]int{a, b})

		assert.Panics(t, func() { NewPairKey(-1, 2) })
	}
	{
		tokens := []string{"Fluid", "wall", " 7 ", "outflow", "empty"}
		ids := []int{MaterialFluid, MaterialWall, 7, MaterialOutflow, MaterialEmpty}
		for i, token := range tokens {
			m, err := ParseMaterial(token)
			assert.NoError(t, err)
			assert.Equal(t, ids[i], m)
		}
		_, err := ParseMaterial("-3")
		assert.Error(t, err)
		_, err = ParseMaterial("granite")
		assert.Error(t, err)
	}
	{
		assert.Len(t, Neighbourhood(2), 8)
		assert.Len(t, Neighbourhood(3), 26)
		assert.Equal(t, LatticeR{-1, -1, -1}, Neighbourhood(3)[0])
		assert.Equal(t, LatticeR{1, 1, 0}, Neighbourhood(2)[7])
		v := Vector{3, 4, 0}
		assert.Equal(t, 5., v.Norm())
		assert.Equal(t, Vector{1, 4, -2}, v.Min(Vector{1, 5, -2}))
	}
}
