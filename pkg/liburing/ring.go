//go:build linux

package liburing

import (
	"github.com/brickingsoft/uring/pkg/logging"
	"github.com/brickingsoft/uring/pkg/process"
)

// New sets up a ring. Configuration errors are reported before any syscall.
func New(options ...Option) (ring *Ring, err error) {
	opts := Options{
		Entries: DefaultEntries,
	}
	for _, o := range options {
		if err = o(&opts); err != nil {
			return nil, err
		}
	}
	if err = checkPow2("entries", opts.Entries, MaxEntries); err != nil {
		return nil, err
	}
	if opts.Flags&SetupCQSize != 0 && opts.CQEntries < opts.Entries {
		return nil, configurationError("completion entries smaller than entries")
	}
	k := opts.Kernel
	if k == nil {
		k = SystemKernel{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	params := &Params{
		CQEntries:    opts.CQEntries,
		Flags:        opts.Flags,
		SQThreadCPU:  opts.SQThreadCPU,
		SQThreadIdle: opts.SQThreadIdle,
		WQFd:         opts.WQFd,
	}
	if err = params.Validate(k.Version()); err != nil {
		return nil, err
	}
	if params.Flags&SetupSQAff != 0 {
		allowed, affinityErr := process.AllowedCPU(int(params.SQThreadCPU))
		if affinityErr != nil {
			logger.Warnf("sq thread cpu not checked: %v", affinityErr)
		} else if !allowed {
			return nil, configurationError("sq thread cpu outside the process affinity mask")
		}
	}

	ring = &Ring{
		sqRing: &SubmissionQueue{},
		cqRing: &CompletionQueue{},
		ringFd: -1,
		kernel: k,
		logger: logger,
	}
	if err = ring.setup(opts.Entries, params); err != nil {
		return nil, err
	}
	logger.Debugf("ring set up: fd=%d sq=%d cq=%d flags=%#x features=%#x",
		ring.ringFd, ring.sqRing.ringEntries, ring.cqRing.ringEntries, ring.flags, ring.features)
	return ring, nil
}

// Ring is one io_uring instance. Submission and completion calls are not
// safe for concurrent use, except that submitting may run alongside a wait
// blocked in another goroutine.
type Ring struct {
	sqRing   *SubmissionQueue
	cqRing   *CompletionQueue
	flags    uint32
	features uint32
	ringFd   int
	kernel   Kernel
	logger   logging.Logger
	mappings [][]byte
	batch    *CompletionBatch
	overflow bool
	closed   bool
}

func (ring *Ring) Flags() uint32 {
	return ring.flags
}

func (ring *Ring) Features() uint32 {
	return ring.features
}

func (ring *Ring) Fd() int {
	return ring.ringFd
}

func (ring *Ring) SQEntries() uint32 {
	return ring.sqRing.ringEntries
}

func (ring *Ring) CQEntries() uint32 {
	return ring.cqRing.ringEntries
}

// Close unmaps the rings and closes the fd. Completions not yet read are
// lost. Close is idempotent.
func (ring *Ring) Close() (err error) {
	if ring.closed {
		return nil
	}
	ring.closed = true
	if ring.batch != nil {
		ring.batch.detach()
		ring.batch = nil
	}
	for _, mapping := range ring.mappings {
		if unmapErr := ring.kernel.Munmap(mapping); unmapErr != nil && err == nil {
			err = kernelError("munmap", unmapErr)
		}
	}
	ring.mappings = nil
	if ring.ringFd != -1 {
		if closeErr := ring.kernel.Close(ring.ringFd); closeErr != nil && err == nil {
			err = kernelError("close", closeErr)
		}
		ring.ringFd = -1
	}
	return
}

func (ring *Ring) Probe() (*Probe, error) {
	probe := &Probe{}
	if _, err := ring.RegisterProbe(probe, probeOpsSize); err != nil {
		return nil, err
	}
	return probe, nil
}
