package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSyncer struct {
	mu   sync.Mutex
	days []int
	err  error
}

func (r *recordingSyncer) SyncRecent(ctx context.Context, days int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	r.days = append(r.days, days)
	return r.err
}

func TestSyncRecentPassesWindow(t *testing.T) {
	logger, _ := test.NewNullLogger()
	syncer := &recordingSyncer{}
	s := NewScheduler(context.Background(), syncer, "", 3, logger)

	s.syncRecent()

	assert.Equal(t, []int{3}, syncer.days)
	assert.Equal(t, DefaultSpec, s.spec)
}

func TestSyncRecentLogsFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	syncer := &recordingSyncer{err: errors.New("upstream down")}
	s := NewScheduler(context.Background(), syncer, "@hourly", 1, logger)

	s.syncRecent()

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "Failed to sync recent data", entry.Message)
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewScheduler(context.Background(), &recordingSyncer{}, "not a cron spec", 1, logger)

	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewScheduler(context.Background(), &recordingSyncer{}, "@every 1h", 1, logger)

	require.NoError(t, s.Start())
	s.Stop()
}
