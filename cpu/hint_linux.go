//go:build linux

package cpu

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// currentCPUHint returns the CPU the calling thread is executing on, or -1
// if the kernel cannot say. Only a placement hint: the claim CAS in Pin is
// what establishes ownership. x/sys carries no getcpu(2) wrapper, so this
// goes through the raw syscall.
func currentCPUHint() int {
	var c uint32
	_, _, errno := unix.Syscall(unix.SYS_GETCPU, uintptr(unsafe.Pointer(&c)), 0, 0)
	if errno != 0 {
		return -1
	}
	return int(c)
}
