package workspacelock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tbrumbaugh5396/meta/internal/errs"
)

func TestAcquireRelease_RoundTrip(t *testing.T) {
	root := t.TempDir()
	lock, err := Acquire(root, false)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestAcquire_SecondNonWaitingCallerGetsWorkspaceBusy(t *testing.T) {
	root := t.TempDir()
	first, err := Acquire(root, false)
	require.NoError(t, err)
	defer first.Release()

	_, err = Acquire(root, false)
	require.Error(t, err)
	var metaErr *errs.Error
	require.ErrorAs(t, err, &metaErr)
	require.Equal(t, errs.KindWorkspaceBusy, metaErr.Kind)
}
