//go:build linux

package liburing

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernelError(t *testing.T) {
	err := kernelError("io_uring_enter", syscall.ETIME)
	assert.True(t, IsTimeout(err))
	assert.False(t, IsKernelRejected(err))

	err = kernelError("io_uring_enter", syscall.EINVAL)
	assert.True(t, IsKernelRejected(err))
	assert.ErrorIs(t, err, syscall.EINVAL)
	errno, ok := Errno(err)
	require.True(t, ok)
	assert.Equal(t, syscall.EINVAL, errno)

	err = registrationError("io_uring_register", syscall.EEXIST)
	assert.True(t, IsRegistration(err))
	assert.ErrorIs(t, err, syscall.EEXIST)
}

func TestErrnoAbsent(t *testing.T) {
	_, ok := Errno(nil)
	assert.False(t, ok)
	_, ok = Errno(configurationError("bad"))
	assert.False(t, ok)
	_, ok = Errno(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestCompletionErrorNonNegative(t *testing.T) {
	for _, res := range []int32{0, 1, 4096} {
		assert.NoError(t, completionError(res))
	}
}
