package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/meting-gateway/internal/app"
	"github.com/JakeFAU/meting-gateway/internal/config"
)

func quietApp(ctx context.Context, cfg config.Config) (*app.App, error) {
	cfg.Logging.Development = false
	cfg.Logging.Level = "error"
	return app.New(ctx, cfg)
}

func TestProbeCommandPrintsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/done", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	prev := newApp
	newApp = quietApp
	t.Cleanup(func() { newApp = prev })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"probe", srv.URL + "/start"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	require.Contains(t, out.String(), `"finalUrl":"`+srv.URL+`/done"`)
	require.Contains(t, out.String(), `"via":"HEAD"`)
}

func TestProbeCommandRequiresArgs(t *testing.T) {
	prev := newApp
	newApp = quietApp
	t.Cleanup(func() { newApp = prev })

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"probe"})
	require.Error(t, root.ExecuteContext(context.Background()))
}

func TestCheckCommandFailsOnEmptyCatalog(t *testing.T) {
	prev := newApp
	newApp = quietApp
	t.Cleanup(func() { newApp = prev })

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"check", "--keyword", "nothing"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "no search result"))
}

func TestResolveAppWithoutInit(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
