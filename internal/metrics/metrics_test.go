package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(operationsTotal.WithLabelValues("greenlight", "ok"))
	ObserveOperation("greenlight", "ok", 15*time.Millisecond)
	after := testutil.ToFloat64(operationsTotal.WithLabelValues("greenlight", "ok"))
	assert.Equal(t, before+1, after)
}

func TestObserveNotice(t *testing.T) {
	before := testutil.ToFloat64(noticeRecipientsTotal)
	ObserveNotice(3)
	assert.Equal(t, before+3, testutil.ToFloat64(noticeRecipientsTotal))
}

func TestHandlerExposesCounters(t *testing.T) {
	ObserveRetry("casting.assign")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "studioline_store_retries_total")
}
