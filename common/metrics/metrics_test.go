package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotentAndHelpersRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))

	before := testutil.ToFloat64(ledgerExecutions.WithLabelValues("passed"))
	IncExecution("passed")
	assert.Equal(t, before+1, testutil.ToFloat64(ledgerExecutions.WithLabelValues("passed")))

	approved := testutil.ToFloat64(selfHealApprovals.WithLabelValues("approved"))
	noop := testutil.ToFloat64(selfHealApprovals.WithLabelValues("noop"))
	IncApproval(true)
	IncApproval(false)
	assert.Equal(t, approved+1, testutil.ToFloat64(selfHealApprovals.WithLabelValues("approved")))
	assert.Equal(t, noop+1, testutil.ToFloat64(selfHealApprovals.WithLabelValues("noop")))

	ops := testutil.ToFloat64(storeOperations.WithLabelValues("test_cases", "insert_one", "ok"))
	ObserveStoreOp("test_cases", "insert_one", "ok", time.Now())
	assert.Equal(t, ops+1, testutil.ToFloat64(storeOperations.WithLabelValues("test_cases", "insert_one", "ok")))

	entries := testutil.ToFloat64(cacheEntries.WithLabelValues("memory"))
	AddCacheEntries("memory", 3)
	AddCacheEntries("memory", -1)
	assert.Equal(t, entries+2, testutil.ToFloat64(cacheEntries.WithLabelValues("memory")))

	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("store", "hit"))
	ObserveCacheLookup("store", "hit")
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookups.WithLabelValues("store", "hit")))
}

func TestCaptureHostInfo(t *testing.T) {
	info := CaptureHostInfo()
	assert.NotEmpty(t, info.Hostname)
	assert.NotEmpty(t, info.OS)
	assert.Positive(t, info.CPULogical)
}
