//go:build linux

package liburing

import (
	"strings"

	"github.com/brickingsoft/errors"
)

// Setup flags, passed to io_uring_setup in Params.Flags.
const (
	// SetupIOPoll busy-waits for I/O completion instead of IRQ notification.
	// Only usable with O_DIRECT files; every wait must enter the kernel.
	SetupIOPoll uint32 = 1 << iota
	// SetupSQPoll starts a kernel thread that polls the submission ring.
	// When the thread idles past SQThreadIdle it sets SQNeedWakeup and the
	// next submit must wake it up.
	SetupSQPoll
	// SetupSQAff pins the polling thread to Params.SQThreadCPU.
	SetupSQAff
	// SetupCQSize sizes the completion ring from Params.CQEntries.
	SetupCQSize
	SetupClamp
	SetupAttachWQ
	SetupRDisabled
	// SetupSubmitAll keeps submitting a batch after one entry fails. 5.18+.
	SetupSubmitAll
	// SetupCoopTaskRun stops the kernel from interrupting the task to run
	// completion work. 5.19+.
	SetupCoopTaskRun
	// SetupTaskRunFlag raises SQTaskRun when completion work is pending.
	SetupTaskRunFlag
	// SetupSQE128 doubles the submission entry size to 128 bytes.
	SetupSQE128
	// SetupCQE32 doubles the completion entry size to 32 bytes.
	SetupCQE32
	// SetupSingleIssuer promises only one task submits. 6.0+.
	SetupSingleIssuer
	// SetupDeferTaskRun defers completion work to the next wait. 6.1+,
	// requires SetupSingleIssuer.
	SetupDeferTaskRun
)

// Features reported back by the kernel in Params.Features.
const (
	FeatSingleMMap uint32 = 1 << iota
	FeatNoDrop
	FeatSubmitStable
	FeatRWCurPos
	FeatCurPersonality
	FeatFastPoll
	FeatPoll32Bits
	FeatSQPollNonfixed
	// FeatExtArg means io_uring_enter accepts a GetEventsArg, so waits with a
	// timeout need no internal timeout entry.
	FeatExtArg
	FeatNativeWorkers
	FeatRcrcTags
	FeatCQESkip
	FeatLinkedFile
	FeatRegRegRing
)

// Enter flags.
const (
	EnterGetEvents uint32 = 1 << iota
	EnterSQWakeup
	EnterSQWait
	EnterExtArg
	EnterRegisteredRing
)

// Submission ring flags, written by the kernel.
const (
	SQNeedWakeup uint32 = 1 << iota
	SQCQOverflow
	SQTaskRun
)

// CQEventFdDisabled is the only completion ring flag.
const CQEventFdDisabled uint32 = 1 << 0

var setupFlagNames = map[string]uint32{
	"IORING_SETUP_IOPOLL":        SetupIOPoll,
	"IORING_SETUP_SQPOLL":        SetupSQPoll,
	"IORING_SETUP_SQ_AFF":        SetupSQAff,
	"IORING_SETUP_CQSIZE":        SetupCQSize,
	"IORING_SETUP_CLAMP":         SetupClamp,
	"IORING_SETUP_ATTACH_WQ":     SetupAttachWQ,
	"IORING_SETUP_R_DISABLED":    SetupRDisabled,
	"IORING_SETUP_SUBMIT_ALL":    SetupSubmitAll,
	"IORING_SETUP_COOP_TASKRUN":  SetupCoopTaskRun,
	"IORING_SETUP_TASKRUN_FLAG":  SetupTaskRunFlag,
	"IORING_SETUP_SQE128":        SetupSQE128,
	"IORING_SETUP_CQE32":         SetupCQE32,
	"IORING_SETUP_SINGLE_ISSUER": SetupSingleIssuer,
	"IORING_SETUP_DEFER_TASKRUN": SetupDeferTaskRun,
}

// ParseSetupFlags parses a "|" or "," separated list of IORING_SETUP_* names.
// The IORING_SETUP_ prefix may be omitted and case is ignored.
func ParseSetupFlags(s string) (flags uint32, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ','
	})
	for _, field := range fields {
		name := strings.ToUpper(strings.TrimSpace(field))
		if name == "" {
			continue
		}
		if !strings.HasPrefix(name, "IORING_SETUP_") {
			name = "IORING_SETUP_" + name
		}
		flag, ok := setupFlagNames[name]
		if !ok {
			err = errors.From(
				ErrConfiguration,
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithMeta(errMetaReasonKey, "unknown setup flag "+strings.TrimSpace(field)),
			)
			return 0, err
		}
		flags |= flag
	}
	return
}
