package httpclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capmatch/marketdata/internal/errors"
)

func newTestClient(t *testing.T, maxRetries int) *Client {
	t.Helper()
	c := New(Config{
		Component:    "test",
		Timeout:      5 * time.Second,
		MaxRetries:   maxRetries,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}, nil)
	httpmock.ActivateNonDefault(c.inner)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestGetJSON_Success(t *testing.T) {
	c := newTestClient(t, 0)
	httpmock.RegisterResponder("GET", "https://example.test/data",
		httpmock.NewStringResponder(http.StatusOK, `{"value": 42}`))

	var out struct {
		Value int `json:"value"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "https://example.test/data", &out))
	assert.Equal(t, 42, out.Value)
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	c := newTestClient(t, 3)

	calls := 0
	httpmock.RegisterResponder("GET", "https://example.test/flaky",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(http.StatusBadGateway, "upstream down"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"ok": true}`), nil
		})

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "https://example.test/flaky", &out))
	assert.True(t, out.OK)
	assert.Equal(t, 3, calls)
}

func TestGetJSON_NoRetryOnClientError(t *testing.T) {
	c := newTestClient(t, 3)

	calls := 0
	httpmock.RegisterResponder("GET", "https://example.test/bad",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(http.StatusBadRequest, "malformed query"), nil
		})

	err := c.GetJSON(context.Background(), "https://example.test/bad", nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx responses must not be retried")
	assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
}

func TestGetJSON_StatusCategories(t *testing.T) {
	tests := []struct {
		status int
		want   errors.ErrorCategory
	}{
		{http.StatusUnauthorized, errors.CategoryConfiguration},
		{http.StatusForbidden, errors.CategoryConfiguration},
		{http.StatusNotFound, errors.CategoryNotFound},
		{http.StatusBadRequest, errors.CategoryValidation},
	}
	for _, tt := range tests {
		c := newTestClient(t, 0)
		httpmock.RegisterResponder("GET", "https://example.test/status",
			httpmock.NewStringResponder(tt.status, "{}"))

		err := c.GetJSON(context.Background(), "https://example.test/status", nil)
		require.Error(t, err)
		assert.Equal(t, tt.want, errors.CategoryOf(err), "status %d", tt.status)
		httpmock.DeactivateAndReset()
	}
}

func TestGetJSON_MalformedBody(t *testing.T) {
	c := newTestClient(t, 0)
	httpmock.RegisterResponder("GET", "https://example.test/garbage",
		httpmock.NewStringResponder(http.StatusOK, `{not json`))

	var out map[string]any
	err := c.GetJSON(context.Background(), "https://example.test/garbage", &out)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryDataIntegrity, errors.CategoryOf(err))
}

func TestGetJSON_ContextCancelled(t *testing.T) {
	c := newTestClient(t, 0)
	httpmock.RegisterResponder("GET", "https://example.test/slow",
		httpmock.NewStringResponder(http.StatusOK, `{}`).Delay(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.GetJSON(ctx, "https://example.test/slow", nil)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryTimeout, errors.CategoryOf(err))
}

func TestMaskSecrets(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"census key",
			"https://api.census.gov/data/2023/acs/acs5?get=NAME&key=secret123",
			"https://api.census.gov/data/2023/acs/acs5?get=NAME&key=%2A%2A%2A",
		},
		{
			"no secrets",
			"https://example.test/plain?x=1",
			"https://example.test/plain?x=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskSecrets(tt.in))
		})
	}
}
