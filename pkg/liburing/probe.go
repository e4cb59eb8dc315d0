//go:build linux

package liburing

type ProbeOp struct {
	Op    uint8
	Res   uint8
	Flags uint16
	Res2  uint32
}

const (
	probeOpsSize = 256
)

const OpSupported uint16 = 1 << 0

// Probe is struct io_uring_probe with room for every opcode.
type Probe struct {
	LastOp uint8
	OpsLen uint8
	Res    uint16
	Res2   [3]uint32
	Ops    [probeOpsSize]ProbeOp
}

func (p *Probe) IsSupported(op uint8) bool {
	for i := uint8(0); i < p.OpsLen; i++ {
		if p.Ops[i].Op != op {
			continue
		}
		return p.Ops[i].Flags&OpSupported != 0
	}
	return false
}

const probeEntries = 2

// GetProbe probes the running kernel with a throwaway ring.
func GetProbe(options ...Option) (*Probe, error) {
	options = append([]Option{WithEntries(probeEntries)}, options...)
	ring, err := New(options...)
	if err != nil {
		return nil, err
	}
	probe, probeErr := ring.Probe()
	_ = ring.Close()
	if probeErr != nil {
		return nil, probeErr
	}
	return probe, nil
}
