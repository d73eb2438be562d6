package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(mainURL, panoURL string) *Client {
	return NewClient(ClientConfig{
		MainBaseURL: mainURL,
		PanoBaseURL: panoURL,
		Timeout:     2 * time.Second,
	})
}

func TestGetTreeMenu(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/web-main/car/web/price/treeMenu", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("extendseries"))
		require.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		// The API labels JSON as text/html; the client must not care.
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`{"result":[{"branditems":[{"id":15,"name":"Audi"}]}]}`))
	}))
	defer srv.Close()

	payload, err := newTestClient(srv.URL, "").GetTreeMenu(context.Background())
	require.NoError(t, err)
	require.Len(t, payload.Result, 1)
	require.Equal(t, "Audi", payload.Result[0].BrandItems[0].Name)
}

func TestGetPicListSendsAllParams(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "100", q.Get("seriesid"))
		require.Equal(t, "9001", q.Get("specid"))
		require.Equal(t, "1", q.Get("typeid"))
		require.Equal(t, "77", q.Get("colorid"))
		require.Equal(t, "1", q.Get("isinner"))
		require.Equal(t, "50", q.Get("pagesize"))
		require.Equal(t, "2", q.Get("pageindex"))
		w.Write([]byte(`{"result":{"piclist":[],"pagecount":0,"rowcount":0}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").GetPicList(context.Background(), 100, 9001, 1, 77, true, 50, 2)
	require.NoError(t, err)
}

func TestGetPanoPageReturnsRawHTML(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/car/ext/9001", r.URL.Path)
		w.Write([]byte(`<html>baseinfo/54321</html>`))
	}))
	defer srv.Close()

	html, err := newTestClient("", srv.URL).GetPanoPage(context.Background(), 9001)
	require.NoError(t, err)
	require.Contains(t, html, "baseinfo/54321")
}

func TestGetPanoBaseInfo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/ext/baseinfo/54321", r.URL.Path)
		w.Write([]byte(`{"ext":{"Id":54321,"SpecId":9001},"color_info":[]}`))
	}))
	defer srv.Close()

	payload, err := newTestClient("", srv.URL).GetPanoBaseInfo(context.Background(), 54321)
	require.NoError(t, err)
	require.Equal(t, int64(54321), payload.Ext.ID)
	require.Equal(t, int64(9001), payload.Ext.SpecID)
}

func TestStatusErrorSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, srv.URL).GetParamConf(context.Background(), 100, 1)
	require.ErrorContains(t, err, "status 403")

	_, err = newTestClient(srv.URL, srv.URL).GetPanoPage(context.Background(), 9001)
	require.ErrorContains(t, err, "status 403")
}

func TestMalformedJSONSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<!DOCTYPE html><html>blocked</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").GetTreeMenu(context.Background())
	require.ErrorContains(t, err, "decode response")
}
