package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCache(t *testing.T) {
	before := testutil.ToFloat64(CacheRequests.WithLabelValues("catalog", "hit"))
	RecordCache("catalog", "hit")
	assert.Equal(t, before+1, testutil.ToFloat64(CacheRequests.WithLabelValues("catalog", "hit")))
}

func TestRecordJob(t *testing.T) {
	okBefore := testutil.ToFloat64(JobRuns.WithLabelValues("prune", "ok"))
	errBefore := testutil.ToFloat64(JobRuns.WithLabelValues("prune", "error"))

	RecordJob("prune", nil)
	RecordJob("prune", errors.New("boom"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(JobRuns.WithLabelValues("prune", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(JobRuns.WithLabelValues("prune", "error")))
}

func TestRecordAPIRequest(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/products", "200", 15*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(APIRequestDuration, "ochio_api_request_duration_seconds"), 1)
}
