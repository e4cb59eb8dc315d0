//go:build linux

package liburing

import (
	"github.com/brickingsoft/uring/pkg/kernel"
)

// Params is struct io_uring_params. The caller fills the setup request,
// the kernel fills the rest.
type Params struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	Features     uint32
	WQFd         uint32
	Resv         [3]uint32
	SQOff        SQRingOffsets
	CQOff        CQRingOffsets
}

// SQRingOffsets locates the submission ring fields inside its mapping.
type SQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	UserAddr    uint64
}

// CQRingOffsets locates the completion ring fields inside its mapping.
type CQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	Cqes        uint32
	Flags       uint32
	Resv1       uint32
	UserAddr    uint64
}

const defaultSQThreadIdle = 15000

// Validate drops the setup flags the running kernel cannot honour.
func (params *Params) Validate(version kernel.Version) error {
	if version.Invalidate() {
		return configurationError("kernel version unknown")
	}
	flags := uint32(0)

	if params.Flags&SetupIOPoll != 0 {
		flags |= SetupIOPoll
	}
	if params.Flags&SetupSQPoll != 0 && version.GTE(5, 13, 0) {
		flags |= SetupSQPoll
		if params.SQThreadIdle == 0 {
			params.SQThreadIdle = defaultSQThreadIdle
		}
	}
	if params.Flags&SetupSQAff != 0 && flags&SetupSQPoll != 0 {
		flags |= SetupSQAff
	}
	if params.Flags&SetupCQSize != 0 {
		if params.CQEntries == 0 {
			return configurationError("IORING_SETUP_CQSIZE requires completion entries")
		}
		flags |= SetupCQSize
	}
	if params.Flags&SetupClamp != 0 {
		flags |= SetupClamp
	}
	if params.Flags&SetupAttachWQ != 0 && params.WQFd > 0 {
		flags |= SetupAttachWQ
	}
	if params.Flags&SetupRDisabled != 0 && version.GTE(5, 10, 0) {
		flags |= SetupRDisabled
	}
	if params.Flags&SetupSubmitAll != 0 && version.GTE(5, 18, 0) {
		flags |= SetupSubmitAll
	}
	if flags&SetupSQPoll == 0 && params.Flags&SetupCoopTaskRun != 0 && version.GTE(5, 19, 0) {
		flags |= SetupCoopTaskRun
	}
	if params.Flags&SetupSingleIssuer != 0 && version.GTE(6, 0, 0) {
		flags |= SetupSingleIssuer
	}
	if flags&SetupSQPoll == 0 && params.Flags&SetupDeferTaskRun != 0 {
		if version.GTE(6, 1, 0) && flags&SetupSingleIssuer != 0 {
			flags |= SetupDeferTaskRun
		}
	}
	if flags&SetupSQPoll == 0 && params.Flags&SetupTaskRunFlag != 0 {
		if version.GTE(5, 19, 0) && flags&(SetupCoopTaskRun|SetupDeferTaskRun) != 0 {
			flags |= SetupTaskRunFlag
		}
	}
	if params.Flags&SetupSQE128 != 0 && version.GTE(5, 19, 0) {
		flags |= SetupSQE128
	}
	if params.Flags&SetupCQE32 != 0 && version.GTE(5, 19, 0) {
		flags |= SetupCQE32
	}
	params.Flags = flags
	return nil
}
