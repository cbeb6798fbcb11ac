package observability

import (
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	require.NotNil(t, m.Upstream)
	require.NotNil(t, m.Pipeline)
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Upstream.RecordFetch("acs", "success")
	m.Pipeline.RecordCacheHit()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "upstream_fetches_total")
	assert.Contains(t, body, "cache_hits_total")
}

func TestMetricsConcurrentRecording(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Upstream.RecordFetch("geocoder", "success")
				m.Upstream.RecordFetchDuration("geocoder", 0.05)
				m.Pipeline.RecordRequest("partial")
				m.Pipeline.RecordCacheMiss()
			}
		}()
	}
	wg.Wait()
}
