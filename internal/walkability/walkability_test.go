package walkability

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capmatch/marketdata/internal/conf"
	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/httpclient"
)

const testEndpoint = "https://walkscore.test/score"

func newTestClient(t *testing.T, apiKey string) *Client {
	t.Helper()
	hc := httpclient.New(httpclient.Config{
		Component:    "walkability",
		Timeout:      5 * time.Second,
		MaxRetries:   2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}, nil)
	httpmock.ActivateNonDefault(hc.Inner())
	t.Cleanup(httpmock.DeactivateAndReset)

	return New(conf.WalkabilitySettings{
		Enabled:  true,
		APIKey:   apiKey,
		Endpoint: testEndpoint,
		Timeout:  5 * time.Second,
	}, hc, nil)
}

func TestFetchScores_Success(t *testing.T) {
	c := newTestClient(t, "ws-key")
	httpmock.RegisterResponder("GET", testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "ws-key", req.URL.Query().Get("wsapikey"))
			assert.Equal(t, "1", req.URL.Query().Get("bike"))
			return httpmock.NewStringResponse(http.StatusOK,
				`{"status": 1, "walkscore": 98, "description": "Walker's Paradise", "bike": {"score": 84}}`), nil
		})

	scores, err := c.FetchScores(context.Background(), "555 California St", 37.7929, -122.4038)
	require.NoError(t, err)
	require.NotNil(t, scores.WalkScore)
	assert.Equal(t, 98, *scores.WalkScore)
	require.NotNil(t, scores.BikeScore)
	assert.Equal(t, 84, *scores.BikeScore)
}

func TestFetchScores_NoNearbyData(t *testing.T) {
	c := newTestClient(t, "ws-key")
	httpmock.RegisterResponder("GET", testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{"status": 30}`))

	scores, err := c.FetchScores(context.Background(), "remote cabin", 64.2, -149.5)
	require.NoError(t, err)
	assert.Nil(t, scores.WalkScore)
	assert.Nil(t, scores.BikeScore)
}

func TestFetchScores_MissingKey(t *testing.T) {
	c := newTestClient(t, "")

	_, err := c.FetchScores(context.Background(), "anywhere", 0, 0)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfiguration, errors.CategoryOf(err))
	assert.Zero(t, httpmock.GetTotalCallCount(), "no upstream call without a key")
}

func TestFetchScores_UpstreamError(t *testing.T) {
	c := newTestClient(t, "ws-key")
	httpmock.RegisterResponder("GET", testEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{"status": 40}`))

	_, err := c.FetchScores(context.Background(), "anywhere", 1, 2)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryNetwork, errors.CategoryOf(err))
}
