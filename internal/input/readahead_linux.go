//go:build linux

package input

import (
	"os"

	"golang.org/x/sys/unix"
)

// advise gives the kernel a best-effort hint that the file is about to be
// read once, sequentially, end to end.
func advise(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_WILLNEED)
}
