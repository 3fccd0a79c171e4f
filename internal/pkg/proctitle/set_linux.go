//go:build linux

package proctitle

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// comm is 16 bytes including the trailing NUL.
const commLen = 16

// Set names the process thread via PR_SET_NAME so ps and top show title.
// Titles longer than 15 bytes are truncated by the kernel format.
func Set(title string) error {
	name, err := normalize(title)
	if err != nil {
		return err
	}
	b := make([]byte, commLen)
	copy(b[:commLen-1], name)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0, 0, 0)
}
