//go:build linux

package cmd

import (
	perf "github.com/hodgesds/perf-utils"
)

// countInstructions runs fn on a locked thread and reads the hardware
// instruction counter around it. fn runs exactly once even when the counter
// is not available.
func countInstructions(fn func()) (n uint64, err error) {
	ran := false
	pv, err := perf.CPUInstructions(func() error {
		ran = true
		fn()
		return nil
	})
	if !ran {
		fn()
	}
	if err != nil {
		return
	}
	return pv.Value, nil
}
