package usecase

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PadaOne/internal/domain"
	"PadaOne/internal/metrics"
)

func TestCuratorMark(t *testing.T) {
	t.Parallel()

	curator := NewCurator(CuratorDeps{Store: newFakeStore(), Papers: newFakePapers(), Metrics: metrics.New()})
	ctx := context.Background()

	status, created, err := curator.Mark(ctx, 101, domain.OutcomePositive)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.OutcomePositive, status.Outcome)

	_, created, err = curator.Mark(ctx, 101, domain.OutcomePositive)
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = curator.Mark(ctx, 101, domain.OutcomeNegative)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	_, _, err = curator.Mark(ctx, 999, domain.OutcomePositive)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, _, err = curator.Mark(ctx, 101, "maybe")
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))

	_, _, err = curator.Mark(ctx, -3, domain.OutcomePositive)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestCuratorListFiltersByOutcome(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ctx := context.Background()
	_, _, _ = store.Mark(ctx, 1, domain.OutcomePositive)
	_, _, _ = store.Mark(ctx, 2, domain.OutcomeNegative)

	curator := NewCurator(CuratorDeps{Store: store})

	all, err := curator.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	neg, err := curator.List(ctx, domain.OutcomeNegative)
	require.NoError(t, err)
	require.Len(t, neg, 1)
	assert.Equal(t, int64(2), neg[0].PMID)

	_, err = curator.List(ctx, "unsure")
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestCuratorSyncPrefersLatestFlag(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	store.flags[domain.OutcomePositive][5] = older
	store.flags[domain.OutcomeNegative][5] = newer
	store.flags[domain.OutcomePositive][6] = older

	index := &fakeIndex{}
	curator := NewCurator(CuratorDeps{Store: store, Index: index, Metrics: metrics.New()})

	n, err := curator.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sort.Slice(index.upserted, func(i, j int) bool { return index.upserted[i].PMID < index.upserted[j].PMID })
	require.Len(t, index.upserted, 2)
	assert.Equal(t, domain.OutcomeNegative, index.upserted[0].Outcome)
	assert.Equal(t, domain.OutcomePositive, index.upserted[1].Outcome)
}

func TestCuratorSyncPropagatesIndexError(t *testing.T) {
	t.Parallel()

	curator := NewCurator(CuratorDeps{Store: newFakeStore(), Index: &fakeIndex{err: errors.New("db down")}})

	_, err := curator.Sync(context.Background())
	require.Error(t, err)

	noIndex := NewCurator(CuratorDeps{Store: newFakeStore()})
	_, err = noIndex.Sync(context.Background())
	require.Error(t, err)
}

type recordingDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *recordingDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *recordingDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsSync(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.flags[domain.OutcomePositive][8] = time.Now()
	index := &fakeIndex{}
	driver := &recordingDriver{}

	s := NewScheduler(driver, NewCurator(CuratorDeps{Store: store, Index: index}), nil)
	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)

	driver.job(time.Now())
	assert.Len(t, index.upserted, 1)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

type blockingSyncer struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
	err     error
}

func (b *blockingSyncer) Sync(context.Context) (int, error) {
	b.calls.Add(1)
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	return 1, b.err
}

func TestSchedulerDropsOverlappingTrigger(t *testing.T) {
	t.Parallel()

	b := &blockingSyncer{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(nil, b, nil)

	done := make(chan bool)
	go func() { done <- s.Trigger(context.Background(), SyncSourceCron) }()
	<-b.entered

	assert.False(t, s.Trigger(context.Background(), SyncSourceWatcher))

	close(b.release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestSchedulerTriggerReportsFailure(t *testing.T) {
	t.Parallel()

	b := &blockingSyncer{err: errors.New("index down")}
	s := NewScheduler(nil, b, nil)

	assert.False(t, s.Trigger(context.Background(), SyncSourceStartup))
	assert.False(t, s.Trigger(context.Background(), SyncSourceStartup))
	assert.Equal(t, int32(2), b.calls.Load())
}
