package status_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapefleet/coordinator/internal/config"
	"github.com/scrapefleet/coordinator/internal/status"
	"github.com/scrapefleet/coordinator/internal/store/storetest"
)

func TestBuild_CountsAndStaleness(t *testing.T) {
	s := storetest.Open(t)
	storetest.Reset(t, s)
	ctx := context.Background()

	_, err := s.CreateTasks(ctx, []int64{1, 2, 3}, 5)
	require.NoError(t, err)
	_, err = s.AcquireTask(ctx, "w1")
	require.NoError(t, err)

	_, err = s.CreateProxies(ctx, []string{"p1:1000:u:x"})
	require.NoError(t, err)
	require.NoError(t, s.Heartbeat(ctx, "w1"))

	cfg := config.Config{
		TaskTimeout:   -time.Hour,
		ProxyTimeout:  24 * time.Hour,
		WorkerTimeout: 24 * time.Hour,
	}
	report, err := status.Build(ctx, s, cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.Tasks["pending"])
	assert.Equal(t, int64(1), report.Tasks["processing"])
	assert.Equal(t, int64(1), report.Proxies["available"])
	assert.Equal(t, int64(1), report.Workers["active"])
	assert.Equal(t, int64(1), report.StuckTasks)
	assert.Equal(t, int64(0), report.StuckProxies)
	assert.Equal(t, int64(0), report.DeadWorkers)
}
