package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeReconciler struct {
	removed int64
	err     error
	calls   int
}

func (f *fakeReconciler) Reconcile(context.Context) (int64, error) {
	f.calls++
	return f.removed, f.err
}

type fakeCleaner struct {
	n     int64
	err   error
	calls int
}

func (f *fakeCleaner) CleanupExpired(context.Context) (int64, error) {
	f.calls++
	return f.n, f.err
}

func TestNew_SchedulesBothJobs(t *testing.T) {
	c, err := New("@every 6h", &fakeReconciler{}, &fakeCleaner{}, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
}

func TestNew_EmptySpecDisablesSync(t *testing.T) {
	c, err := New("", &fakeReconciler{}, &fakeCleaner{}, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every tuesday-ish", &fakeReconciler{}, &fakeCleaner{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sync schedule")
}

func TestSyncUsers_LogsPartialFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := &fakeReconciler{removed: 500, err: errors.New("batch failed")}

	SyncUsers(r, zap.New(core))

	assert.Equal(t, 1, r.calls)
	entries := logs.FilterMessage("scheduled user sync failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(500), entries[0].ContextMap()["removed"])
}

func TestCleanupTokens_QuietWhenNothingExpired(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c := &fakeCleaner{}

	CleanupTokens(c, zap.New(core))

	assert.Equal(t, 1, c.calls)
	assert.Equal(t, 0, logs.Len())
}
