//go:build !windows

package privileged

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilerWithoutDriver(t *testing.T) {
	ctx := context.Background()
	r := New()

	require.NoError(t, r.Teardown(ctx))
	require.NoError(t, r.Teardown(ctx))
	assert.True(t, r.Elevated())

	ok, err := r.TCPTimestampsEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, r.EnableTCPTimestamps(ctx))
}
