//go:build !linux

package input

import "os"

// advise is a no-op where posix_fadvise is unavailable.
func advise(*os.File) {}
