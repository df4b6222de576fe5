package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Material ids with a fixed meaning. Any other non-negative id is a user tag.
const (
	MaterialEmpty   = 0
	MaterialFluid   = 1
	MaterialWall    = 2
	MaterialInflow  = 3
	MaterialOutflow = 4
)

var MaterialNameMap = map[string]int{
	"empty":   MaterialEmpty,
	"none":    MaterialEmpty,
	"fluid":   MaterialFluid,
	"bulk":    MaterialFluid,
	"wall":    MaterialWall,
	"inflow":  MaterialInflow,
	"in":      MaterialInflow,
	"outflow": MaterialOutflow,
	"out":     MaterialOutflow,
}

// ParseMaterial accepts either a material name from MaterialNameMap or a
// non-negative integer id.
func ParseMaterial(token string) (m int, err error) {
	token = strings.ToLower(strings.TrimSpace(token))
	var ok bool
	if m, ok = MaterialNameMap[token]; ok {
		return
	}
	if m, err = strconv.Atoi(token); err != nil {
		err = fmt.Errorf("unknown material %q: %w", token, err)
		return
	}
	if m < 0 {
		err = fmt.Errorf("material id must be non-negative, have %d", m)
	}
	return
}
