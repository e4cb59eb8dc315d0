//go:build linux

package kernel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brickingsoft/uring/pkg/kernel"
)

func TestGet(t *testing.T) {
	v := kernel.Get()
	assert.True(t, v.Validate())
	assert.True(t, v.Major > 0)
	t.Log("kernel:", v)
}
