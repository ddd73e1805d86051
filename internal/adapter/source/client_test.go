package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/couchcryptid/overshoot-data-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey        = "test-key"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, testAPIKey, 5*time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/country/ct/79", r.URL.Path)
		assert.Equal(t, "EFConsPerCap", r.URL.Query().Get("record"))
		assert.Equal(t, testAPIKey, r.Header.Get("X-API-Key"))
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
		w.Header().Set(headerContentType, "application/json")
		_, _ = w.Write([]byte(`[{"year":2020,"value":4.1}]`))
	}))
	defer srv.Close()

	c := testClient(srv.URL + "/")
	data, err := c.Fetch(context.Background(), Request{
		Path:  "/country/ct/79",
		Query: url.Values{"record": {"EFConsPerCap"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"year":2020,"value":4.1}]`, string(data))
}

func TestClient_Fetch_PostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get(headerContentType))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"forecast_year":2030}`, string(body))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Fetch(context.Background(), Request{Method: "post", Path: "/energy-split/simulate", Body: []byte(`{"forecast_year":2030}`)})
	require.NoError(t, err)
}

func TestClient_Fetch_NoAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-API-Key"))
		assert.Empty(t, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	_, err := c.Fetch(context.Background(), Request{Path: "/health"})
	require.NoError(t, err)
}

func TestClient_Fetch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"bad key"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Fetch(context.Background(), Request{Path: "/pie_data/all"})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)

	var srcErr *domain.SourceError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, http.StatusForbidden, srcErr.Status)
	assert.Equal(t, "/pie_data/all", srcErr.URL)
	assert.Contains(t, err.Error(), "403")
}

func TestClient_Fetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := testClient(addr)
	_, err := c.Fetch(context.Background(), Request{Path: "/health"})
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestClient_Fetch_Cancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := testClient(srv.URL)
	_, err := c.Fetch(ctx, Request{Path: "/slow"})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestRequest_Key(t *testing.T) {
	assert.Equal(t, "GET /pie_data/all", Request{Path: "/pie_data/all"}.Key())
	assert.Equal(t, "GET /country/ct/79?record=EFConsPerCap&year=2020",
		Request{Path: "/country/ct/79", Query: url.Values{"year": {"2020"}, "record": {"EFConsPerCap"}}}.Key())
	assert.Equal(t, "POST /simulate", Request{Method: "post", Path: "/simulate"}.Key())
}
