package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapefleet/coordinator/internal/store"
	"github.com/scrapefleet/coordinator/internal/store/storetest"
)

func TestAcquireTask_FIFOOrder(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	inserted, err := s.CreateTasks(ctx, []int64{100, 101, 102}, 5)
	require.NoError(t, err)
	require.Equal(t, 3, inserted)

	first, err := s.AcquireTask(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), first.ItemID)
	assert.Equal(t, store.TaskProcessing, first.Status)
	assert.Equal(t, 1, first.Attempts)
	require.NotNil(t, first.WorkerID)
	assert.Equal(t, "w1", *first.WorkerID)

	second, err := s.AcquireTask(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(101), second.ItemID)
}

func TestAcquireTask_NoneAvailable(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	_, err := s.AcquireTask(ctx, "w1")
	assert.ErrorIs(t, err, store.ErrNoTask)
}

func TestReleaseTask_PendingUntilMaxAttempts(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	_, err := s.CreateTasks(ctx, []int64{200}, 2)
	require.NoError(t, err)

	task, err := s.AcquireTask(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, 1, task.Attempts)

	require.NoError(t, s.ReleaseTask(ctx, task.TaskID))

	reacquired, err := s.AcquireTask(ctx, "w2")
	require.NoError(t, err)
	assert.Equal(t, 2, reacquired.Attempts)

	require.NoError(t, s.ReleaseTask(ctx, reacquired.TaskID))

	_, err = s.AcquireTask(ctx, "w3")
	assert.ErrorIs(t, err, store.ErrNoTask)

	counts, err := s.TaskCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[string(store.TaskFailed)])
}

func TestMarkTaskCompleted(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	_, err := s.CreateTasks(ctx, []int64{300}, 5)
	require.NoError(t, err)
	task, err := s.AcquireTask(ctx, "w1")
	require.NoError(t, err)

	require.NoError(t, s.MarkTaskCompleted(ctx, task.TaskID))

	counts, err := s.TaskCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[string(store.TaskCompleted)])
}

func TestAcquireProxy_AscendingUsesCount(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	inserted, err := s.CreateProxies(ctx, []string{"proxy-a", "proxy-b"})
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	first, err := s.AcquireProxy(ctx, "w1")
	require.NoError(t, err)
	require.NoError(t, s.ReleaseProxy(ctx, first.ProxyID))
	require.NoError(t, s.ReleaseProxy(ctx, first.ProxyID))

	// first proxy now has uses_count=1, second still 0: next acquire should
	// prefer the least-used one.
	second, err := s.AcquireProxy(ctx, "w1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ProxyID, second.ProxyID)
}

func TestAcquireProxy_NoneAvailable(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	_, err := s.AcquireProxy(ctx, "w1")
	assert.ErrorIs(t, err, store.ErrNoProxy)
}

func TestMarkProxyBlocked_ThenReleaseIsNoop(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	_, err := s.CreateProxies(ctx, []string{"proxy-c"})
	require.NoError(t, err)
	proxy, err := s.AcquireProxy(ctx, "w1")
	require.NoError(t, err)

	require.NoError(t, s.MarkProxyBlocked(ctx, proxy.ProxyID))
	require.NoError(t, s.ReleaseProxy(ctx, proxy.ProxyID))

	counts, err := s.ProxyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[string(store.ProxyBlocked)])
	assert.Equal(t, int64(0), counts[string(store.ProxyAvailable)])
}

func TestHeartbeat_UpsertReactivates(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	require.NoError(t, s.Heartbeat(ctx, "worker-1"))
	w, err := s.GetWorker(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, store.WorkerActive, w.Status)

	_, err = s.StopDeadWorkers(ctx, -time.Second)
	require.NoError(t, err)
	w, err = s.GetWorker(ctx, "worker-1")
	require.NoError(t, err)
	require.Equal(t, store.WorkerStopped, w.Status)

	require.NoError(t, s.Heartbeat(ctx, "worker-1"))
	w, err = s.GetWorker(ctx, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, store.WorkerActive, w.Status)
}

func TestIncrementWorkerStats(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	require.NoError(t, s.Heartbeat(ctx, "worker-2"))
	require.NoError(t, s.IncrementWorkerStats(ctx, "worker-2", true))
	require.NoError(t, s.IncrementWorkerStats(ctx, "worker-2", false))

	w, err := s.GetWorker(ctx, "worker-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.TasksProcessed)
	assert.Equal(t, int64(1), w.TasksFailed)
}

func TestSaveResult_IdempotentUpsert(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	result := store.Result{
		ItemID:     500,
		Title:      "first pass",
		Status:     store.ResultSuccess,
		WorkerID:   "worker-3",
		Attempts:   1,
	}
	require.NoError(t, s.SaveResult(ctx, result))

	result.Title = "second pass"
	result.Attempts = 2
	require.NoError(t, s.SaveResult(ctx, result))

	got, err := s.GetResult(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, "second pass", got.Title)
	assert.Equal(t, 2, got.Attempts)

	counts, err := s.ResultCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[string(store.ResultSuccess)])
}

func TestReclaimStuckTasksAndProxies(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	_, err := s.CreateTasks(ctx, []int64{600}, 5)
	require.NoError(t, err)
	task, err := s.AcquireTask(ctx, "w1")
	require.NoError(t, err)

	_, err = s.CreateProxies(ctx, []string{"proxy-d"})
	require.NoError(t, err)
	proxy, err := s.AcquireProxy(ctx, "w1")
	require.NoError(t, err)

	reclaimedTasks, err := s.ReclaimStuckTasks(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reclaimedTasks)

	reclaimedProxies, err := s.ReclaimStuckProxies(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reclaimedProxies)

	taskCounts, err := s.TaskCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), taskCounts[string(store.TaskPending)])

	proxyCounts, err := s.ProxyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), proxyCounts[string(store.ProxyAvailable)])

	_ = task
	_ = proxy
}

func TestFailHopelessTasks(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	_, err := s.CreateTasks(ctx, []int64{700}, 1)
	require.NoError(t, err)
	task, err := s.AcquireTask(ctx, "w1")
	require.NoError(t, err)
	require.NoError(t, s.ReleaseTask(ctx, task.TaskID))

	// ReleaseTask already flipped this to failed since attempts (1) reached
	// max_attempts (1); force it back to pending to exercise the janitor's
	// standalone sweep for the case where the branch was missed.
	require.NoError(t, s.DB().WithContext(ctx).Model(&store.Task{}).
		Where("task_id = ?", task.TaskID).Update("status", store.TaskPending).Error)

	affected, err := s.FailHopelessTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestCreateTasks_SkipsDuplicates(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	inserted, err := s.CreateTasks(ctx, []int64{800, 801}, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	inserted, err = s.CreateTasks(ctx, []int64{801, 802}, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	count, err := s.CountTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
