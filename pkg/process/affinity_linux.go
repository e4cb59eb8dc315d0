//go:build linux

package process

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// cpuSetSize is CPU_SETSIZE, the bit width of unix.CPUSet.
const cpuSetSize = 1024

// AllowedCPU reports whether the calling thread may run on cpu. A kernel
// submission thread pinned to a CPU outside this set fails to start.
func AllowedCPU(cpu int) (bool, error) {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err != nil {
		return false, fmt.Errorf("SchedGetaffinity: %w", err)
	}
	if cpu < 0 || cpu >= cpuSetSize {
		return false, nil
	}
	return mask.IsSet(cpu), nil
}

// AllowedCPUs lists the CPUs of the calling thread's affinity mask.
func AllowedCPUs() ([]int, error) {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err != nil {
		return nil, fmt.Errorf("SchedGetaffinity: %w", err)
	}
	cpus := make([]int, 0, mask.Count())
	for cpu := 0; cpu < cpuSetSize; cpu++ {
		if mask.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}
