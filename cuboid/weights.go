package cuboid

import (
	"fmt"

	"github.com/phil-mansfield/table"
)

// ReadWeights sets cuboid weights from a whitespace separated table whose
// first column is the cuboid id and second the weight. Cuboids missing from
// the table keep their weight.
func ReadWeights(cg *CuboidGeometry, file string) (err error) {
	var cols [][]float64
	if cols, err = table.ReadTable(file, []int{0, 1}, nil); err != nil {
		return fmt.Errorf("unable to read cuboid weights from %s: %w", file, err)
	}
	ids, weights := cols[0], cols[1]
	for i := range ids {
		iC := int(ids[i])
		if iC < 0 || iC >= cg.Nc() {
			return fmt.Errorf("weight table %s names cuboid %d, geometry has %d",
				file, iC, cg.Nc())
		}
		if weights[i] < 0 {
			return fmt.Errorf("negative weight %g for cuboid %d", weights[i], iC)
		}
		cg.Get(iC).SetWeight(int(weights[i]))
	}
	return
}
