package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/tesla-access/tesla-client/internal/metrics"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := metrics.New(reg)
	require.NoError(t, err)

	r.Refresh(metrics.TriggerPeriodic, metrics.ResultSuccess)
	r.Refresh(metrics.TriggerPeriodic, metrics.ResultSuccess)
	r.Request(metrics.ResultFailure)
	r.Retry()

	require.Equal(t, 2.0, r.RefreshCount(metrics.TriggerPeriodic, metrics.ResultSuccess))
	require.Equal(t, 1.0, r.RequestCount(metrics.ResultFailure))
	require.Equal(t, 1.0, r.RetryCount())

	count, err := testutil.GatherAndCount(reg, "tesla_client_refresh_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)
	_, err = metrics.New(reg)
	require.Error(t, err)
}

func TestRecorder_Nil(t *testing.T) {
	var r *metrics.Recorder
	r.Refresh(metrics.TriggerManual, metrics.ResultFailure)
	r.Retry()
	require.Zero(t, r.RetryCount())
}
