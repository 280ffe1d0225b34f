package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	names, err := s.ListFilters()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, s.SaveFilter(ctx, "windivert_part.custom.txt", []byte("udp.DstPort == 443")))
	require.NoError(t, s.SaveFilter(ctx, "a.txt", []byte("tcp")))

	names, err = s.ListFilters()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "windivert_part.custom.txt"}, names)

	data, err := s.LoadFilter("windivert_part.custom.txt")
	require.NoError(t, err)
	assert.Equal(t, "udp.DstPort == 443", string(data))

	require.NoError(t, s.DeleteFilter(ctx, "a.txt"))
	require.NoError(t, s.DeleteFilter(ctx, "a.txt"))

	_, err = s.LoadFilter("a.txt")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestFilterNameValidation(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	for _, name := range []string{"", "../hashes.json", `..\winws.exe`, ".."} {
		assert.ErrorIs(t, s.SaveFilter(ctx, name, nil), ErrInvalidName, name)
		_, err := s.LoadFilter(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
		assert.ErrorIs(t, s.DeleteFilter(ctx, name), ErrInvalidName, name)
	}
}
