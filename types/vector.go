package types

import "math"

// Vector is a physical position or direction. 2D quantities leave Z at zero.
type Vector [3]float64

// LatticeR is an integer lattice coordinate. 2D quantities leave Z at zero.
type LatticeR [3]int

func (v Vector) Add(o Vector) (r Vector) {
	for d := 0; d < 3; d++ {
		r[d] = v[d] + o[d]
	}
	return
}

func (v Vector) Sub(o Vector) (r Vector) {
	for d := 0; d < 3; d++ {
		r[d] = v[d] - o[d]
	}
	return
}

func (v Vector) Scale(s float64) (r Vector) {
	for d := 0; d < 3; d++ {
		r[d] = v[d] * s
	}
	return
}

func (v Vector) Dot(o Vector) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vector) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Min returns the component-wise minimum
func (v Vector) Min(o Vector) (r Vector) {
	for d := 0; d < 3; d++ {
		r[d] = math.Min(v[d], o[d])
	}
	return
}

// Max returns the component-wise maximum
func (v Vector) Max(o Vector) (r Vector) {
	for d := 0; d < 3; d++ {
		r[d] = math.Max(v[d], o[d])
	}
	return
}

func (l LatticeR) Add(o LatticeR) (r LatticeR) {
	for d := 0; d < 3; d++ {
		r[d] = l[d] + o[d]
	}
	return
}

func (l LatticeR) Sub(o LatticeR) (r LatticeR) {
	for d := 0; d < 3; d++ {
		r[d] = l[d] - o[d]
	}
	return
}

func (l LatticeR) ToVector() Vector {
	return Vector{float64(l[0]), float64(l[1]), float64(l[2])}
}

// Neighbourhood returns the lattice offsets of the full 3^dim stencil
// without the centre, in the scan order x outermost, z innermost.
func Neighbourhood(dim int) (offsets []LatticeR) {
	zr := 0
	if dim == 3 {
		zr = 1
	}
	for iX := -1; iX <= 1; iX++ {
		for iY := -1; iY <= 1; iY++ {
			for iZ := -zr; iZ <= zr; iZ++ {
				if iX == 0 && iY == 0 && iZ == 0 {
					continue
				}
				offsets = append(offsets, LatticeR{iX, iY, iZ})
			}
		}
	}
	return
}
