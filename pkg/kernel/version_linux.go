//go:build linux

package kernel

import (
	"sync"

	"golang.org/x/sys/unix"
)

var (
	version     = Version{}
	versionOnce = sync.Once{}
)

// Get returns the running kernel version. The result is cached; an invalid
// Version is returned when uname fails or cannot be parsed.
func Get() Version {
	versionOnce.Do(func() {
		uts := &unix.Utsname{}
		if err := unix.Uname(uts); err != nil {
			return
		}
		v, err := Parse(unix.ByteSliceToString(uts.Release[:]))
		if err != nil {
			return
		}
		version = v
	})
	return version
}
