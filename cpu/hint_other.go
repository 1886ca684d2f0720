//go:build !linux

package cpu

// currentCPUHint has no portable implementation off Linux; Pin falls back
// to sweeping from CPU 0.
func currentCPUHint() int {
	return -1
}
