package instance

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := Acquire(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LockFileName), first.Path())

	_, err = Acquire(dir)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, first.Release())

	second, err := Acquire(dir)
	require.NoError(t, err)
	assert.NoError(t, second.Release())
}
