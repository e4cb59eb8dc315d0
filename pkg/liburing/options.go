//go:build linux

package liburing

import (
	"github.com/brickingsoft/uring/pkg/logging"
)

type Options struct {
	Entries      uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	WQFd         uint32
	Kernel       Kernel
	Logger       logging.Logger
}

type Option func(*Options) error

const (
	MaxEntries     = 32768
	MaxCQEntries   = 2 * MaxEntries
	DefaultEntries = 1024
)

// WithEntries sets the submission queue depth. It must be a power of two.
func WithEntries(entries uint32) Option {
	return func(o *Options) error {
		if err := checkPow2("entries", entries, MaxEntries); err != nil {
			return err
		}
		o.Entries = entries
		return nil
	}
}

// WithCQEntries sizes the completion ring independently of the submission
// queue and sets SetupCQSize.
func WithCQEntries(entries uint32) Option {
	return func(o *Options) error {
		if err := checkPow2("completion entries", entries, MaxCQEntries); err != nil {
			return err
		}
		o.CQEntries = entries
		o.Flags |= SetupCQSize
		return nil
	}
}

// WithFlags
// see https://manpages.debian.org/unstable/liburing-dev/io_uring_setup.2.en.html
func WithFlags(flags uint32) Option {
	return func(o *Options) error {
		o.Flags |= flags
		return nil
	}
}

func WithSQThreadIdle(n uint32) Option {
	return func(o *Options) error {
		o.SQThreadIdle = n
		return nil
	}
}

func WithSQThreadCPU(cpuId uint32) Option {
	return func(o *Options) error {
		o.SQThreadCPU = cpuId
		o.Flags |= SetupSQAff
		return nil
	}
}

func WithAttachWQFd(fd uint32) Option {
	return func(o *Options) error {
		if fd == 0 {
			return configurationError("invalid wq fd")
		}
		o.WQFd = fd
		o.Flags |= SetupAttachWQ
		return nil
	}
}

// WithKernel replaces the syscall boundary.
func WithKernel(k Kernel) Option {
	return func(o *Options) error {
		if k == nil {
			return configurationError("nil kernel")
		}
		o.Kernel = k
		return nil
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			return configurationError("nil logger")
		}
		o.Logger = logger
		return nil
	}
}
