//go:build linux

package liburing

import (
	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

// CheckSplice validates splice endpoints before an entry is staged: exactly
// one side must be a pipe and only the non-pipe side may carry an explicit
// offset.
func CheckSplice(fdIn int, offIn int64, fdOut int, offOut int64) error {
	inPipe, err := isPipe(fdIn)
	if err != nil {
		return err
	}
	outPipe, err := isPipe(fdOut)
	if err != nil {
		return err
	}
	if inPipe == outPipe {
		if inPipe {
			return configurationError("splice between two pipes, use tee")
		}
		return configurationError("splice requires one pipe endpoint")
	}
	if inPipe && offIn != SpliceOffsetCurrent {
		return configurationError("splice offset set on pipe input")
	}
	if outPipe && offOut != SpliceOffsetCurrent {
		return configurationError("splice offset set on pipe output")
	}
	return nil
}

func isPipe(fd int) (bool, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return false, errors.From(
			ErrConfiguration,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, "fstat"),
			errors.WithWrap(syscallError("fstat", err)),
		)
	}
	return st.Mode&unix.S_IFMT == unix.S_IFIFO, nil
}
