//go:build linux || windows

package host

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procmem/process"
)

func TestNewProviderDescribesSelf(t *testing.T) {
	provider, err := NewProvider()
	require.NoError(t, err)

	desc, err := provider.DescribeProcess(process.ProcessID(os.Getpid()))
	require.NoError(t, err)
	assert.Equal(t, process.ProcessID(os.Getpid()), desc.PID)
}
