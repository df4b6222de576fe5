//go:build !linux

package cmd

import "errors"

func countInstructions(fn func()) (uint64, error) {
	fn()
	return 0, errors.New("hardware counters need linux")
}
