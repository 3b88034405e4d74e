package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInitMetrics_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		InitMetrics()
		InitMetrics()
	})
}

func TestObserveModelCall(t *testing.T) {
	before := testutil.ToFloat64(ModelRequestsTotal.WithLabelValues("score", "error"))
	ObserveModelCall("score", 10*time.Millisecond, errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(ModelRequestsTotal.WithLabelValues("score", "error")))
}

func TestCacheCounters(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("resume", "hit"))
	CacheHit("resume")
	CacheMiss("resume")
	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("resume", "hit")))

	SetCacheDegraded(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(CacheDegraded))
	SetCacheDegraded(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(CacheDegraded))
}
