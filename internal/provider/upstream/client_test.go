package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/meting-gateway/internal/provider"
)

type countingWaiter struct {
	calls atomic.Int64
	err   error
}

func (w *countingWaiter) Wait(context.Context, string) error {
	w.calls.Add(1)
	return w.err
}

func TestClient_ForwardsQuery(t *testing.T) {
	t.Parallel()

	var gotQuery, gotAgent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		gotAgent.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"http://cdn/a.mp3"}`))
	}))
	defer srv.Close()

	waiter := &countingWaiter{}
	up, err := New(Config{BaseURL: srv.URL + "/api", UserAgent: "ua-test"}, waiter, zap.NewNop())
	require.NoError(t, err)
	client, err := up.Factory()("netease")
	require.NoError(t, err)
	client.Format(true)

	payload, err := client.URL(context.Background(), "42", 320)
	require.NoError(t, err)
	text, ok := payload.Text()
	require.True(t, ok)
	require.Equal(t, `{"url":"http://cdn/a.mp3"}`, text)

	q := gotQuery.Load().(url.Values)
	require.Equal(t, []string{"netease"}, q["server"])
	require.Equal(t, []string{"url"}, q["type"])
	require.Equal(t, []string{"42"}, q["id"])
	require.Equal(t, []string{"320"}, q["br"])
	require.Equal(t, []string{"true"}, q["format"])
	require.Equal(t, "ua-test", gotAgent.Load())
	require.Equal(t, int64(1), waiter.calls.Load())
}

func TestClient_SearchOptions(t *testing.T) {
	t.Parallel()

	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	up, err := New(Config{BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)
	client, err := up.Factory()("tencent")
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "rain", provider.SearchOptions{Page: 2, Limit: 5})
	require.NoError(t, err)
	q := gotQuery.Load().(url.Values)
	require.Equal(t, []string{"search"}, q["type"])
	require.Equal(t, []string{"rain"}, q["keyword"])
	require.Equal(t, []string{"2"}, q["page"])
	require.Equal(t, []string{"5"}, q["limit"])
	require.Equal(t, []string{"false"}, q["format"])
	require.NotContains(t, q, "category")
}

func TestClient_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	up, err := New(Config{BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)
	client, err := up.Factory()("netease")
	require.NoError(t, err)

	_, err = client.Lyric(context.Background(), "1")
	require.ErrorContains(t, err, "status 502")
}

func TestClient_LimiterErrorStopsCall(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	limitErr := errors.New("limited")
	up, err := New(Config{BaseURL: srv.URL}, &countingWaiter{err: limitErr}, nil)
	require.NoError(t, err)
	client, err := up.Factory()("netease")
	require.NoError(t, err)

	_, err = client.Song(context.Background(), "1")
	require.ErrorIs(t, err, limitErr)
	require.Zero(t, hits.Load())
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, nil)
	require.Error(t, err)
	_, err = New(Config{BaseURL: "ftp://example.com"}, nil, nil)
	require.Error(t, err)
	up, err := New(Config{BaseURL: "https://example.com"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, defaultTimeout, up.cfg.Timeout)
	require.Equal(t, defaultUserAgent, up.cfg.UserAgent)
}
