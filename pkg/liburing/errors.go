//go:build linux

package liburing

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/brickingsoft/errors"
)

var (
	ErrConfiguration       = errors.Define("invalid ring configuration")
	ErrResourceExhausted   = errors.Define("ring resource exhausted")
	ErrKernelRejected      = errors.Define("kernel rejected request")
	ErrRegistration        = errors.Define("kernel registration failed")
	ErrTimeout             = errors.Define("timeout")
	ErrCanceled            = errors.Define("canceled")
	ErrBatchInFlight       = errors.Define("completion batch not released")
	ErrBufferNotCheckedOut = errors.Define("provided buffer is not checked out")
	ErrClosed              = errors.Define("ring closed")
)

const (
	errMetaPkgKey    = "pkg"
	errMetaPkgVal    = "liburing"
	errMetaOpKey     = "op"
	errMetaReasonKey = "reason"
)

func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsResourceExhausted(err error) bool {
	return errors.Is(err, ErrResourceExhausted)
}

func IsKernelRejected(err error) bool {
	return errors.Is(err, ErrKernelRejected)
}

func IsRegistration(err error) bool {
	return errors.Is(err, ErrRegistration)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Errno extracts the kernel error code carried by err, if any.
func Errno(err error) (syscall.Errno, bool) {
	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}

func configurationError(reason string) error {
	return errors.From(
		ErrConfiguration,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaReasonKey, reason),
	)
}

func syscallError(op string, err error) error {
	if errno, ok := err.(syscall.Errno); ok {
		return os.NewSyscallError(op, errno)
	}
	return err
}

// kernelError wraps a failed syscall. ETIME is reported as ErrTimeout.
func kernelError(op string, err error) error {
	sentinel := ErrKernelRejected
	if errno, ok := Errno(err); ok && errno == syscall.ETIME {
		sentinel = ErrTimeout
	}
	return errors.From(
		sentinel,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithWrap(syscallError(op, err)),
	)
}

func registrationError(op string, err error) error {
	return errors.From(
		ErrRegistration,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithWrap(syscallError(op, err)),
	)
}

// completionError maps a negative completion result to an error.
func completionError(res int32) error {
	if res >= 0 {
		return nil
	}
	errno := syscall.Errno(-res)
	var sentinel error
	switch errno {
	case syscall.ENOBUFS:
		sentinel = ErrResourceExhausted
	case syscall.ECANCELED:
		sentinel = ErrCanceled
	case syscall.ETIME:
		sentinel = ErrTimeout
	default:
		sentinel = ErrKernelRejected
	}
	return errors.From(
		sentinel,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, "completion"),
		errors.WithWrap(errno),
	)
}
