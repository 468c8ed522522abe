package janitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapefleet/coordinator/internal/config"
	"github.com/scrapefleet/coordinator/internal/janitor"
	"github.com/scrapefleet/coordinator/internal/store"
	"github.com/scrapefleet/coordinator/internal/store/storetest"
)

func testConfig() config.Config {
	return config.Config{
		CleanupInterval:   10 * time.Millisecond,
		TaskTimeout:       3 * time.Second,
		ProxyTimeout:      2 * time.Second,
		WorkerTimeout:     1 * time.Second,
		DBRetryAttempts:   5,
		MaxTaskAttempts:   5,
		WorkersCount:      1,
	}
}

func TestNew_RejectsBadTimeoutOrdering(t *testing.T) {
	cfg := testConfig()
	cfg.WorkerTimeout = cfg.TaskTimeout + time.Second
	_, err := janitor.New(nil, cfg, storetest.Logger(t))
	assert.Error(t, err)
}

func TestSweep_ReclaimsAndFails(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	_, err := s.CreateTasks(ctx, []int64{1, 2}, 1)
	require.NoError(t, err)
	stuckTask, err := s.AcquireTask(ctx, "w1")
	require.NoError(t, err)

	_, err = s.CreateProxies(ctx, []string{"proxy-x"})
	require.NoError(t, err)
	stuckProxy, err := s.AcquireProxy(ctx, "w1")
	require.NoError(t, err)

	require.NoError(t, s.Heartbeat(ctx, "w1"))

	cfg := testConfig()
	j, err := janitor.New(s, cfg, storetest.Logger(t))
	require.NoError(t, err)

	// Force every threshold into the past so the sweep treats everything as
	// stuck/dead, using a janitor built with negative timeouts directly
	// rather than sleeping in the test.
	cfg.TaskTimeout = -time.Hour
	cfg.ProxyTimeout = -time.Hour
	cfg.WorkerTimeout = -time.Hour
	j, err = janitor.New(s, cfg, storetest.Logger(t))
	require.NoError(t, err)

	done := make(chan struct{})
	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		j.Run(runCtx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	taskCounts, err := s.TaskCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), taskCounts[string(store.TaskFailed)])

	proxyCounts, err := s.ProxyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), proxyCounts[string(store.ProxyAvailable)])

	worker, err := s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, store.WorkerStopped, worker.Status)

	_ = stuckTask
	_ = stuckProxy
}
