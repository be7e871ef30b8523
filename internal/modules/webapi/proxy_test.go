package webapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dlnaview/dlnaview/internal/registry"
)

func proxyModule(t *testing.T) *Module {
	t.Helper()
	module, err := NewModule(nil, registry.New(), &fakeBrowser{}, Config{CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	return module
}

func proxyRequest(t *testing.T, module *Module, upstream string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/proxy?url="+url.QueryEscape(upstream), nil)
	for name, values := range header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	rec := httptest.NewRecorder()
	module.Handler().ServeHTTP(rec, req)
	return rec
}

func TestProxyMissingURL(t *testing.T) {
	module := proxyModule(t)
	rec := httptest.NewRecorder()
	module.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/proxy", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProxyRejectsNonHTTPSchemes(t *testing.T) {
	module := proxyModule(t)
	for _, target := range []string{"file:///etc/passwd", "ftp://host/x", "not a url"} {
		rec := proxyRequest(t, module, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", target, rec.Code)
		}
	}
}

func TestProxyRangePassthrough(t *testing.T) {
	var upstreamRange, upstreamUA, upstreamCookie string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamRange = r.Header.Get("Range")
		upstreamUA = r.Header.Get("User-Agent")
		upstreamCookie = r.Header.Get("Cookie")
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Range", "bytes 100-199/1000")
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 100))
	}))
	defer upstream.Close()

	header := http.Header{}
	header.Set("Range", "bytes=100-199")
	header.Set("User-Agent", "vlc/3.0")
	header.Set("Cookie", "session=secret")

	rec := proxyRequest(t, proxyModule(t), upstream.URL+"/media.mp4", header)

	if upstreamRange != "bytes=100-199" {
		t.Fatalf("range not forwarded: %q", upstreamRange)
	}
	if upstreamUA != "vlc/3.0" {
		t.Fatalf("user agent not forwarded: %q", upstreamUA)
	}
	if upstreamCookie != "" {
		t.Fatalf("cookie must not cross the proxy: %q", upstreamCookie)
	}
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status not passed through: %d", rec.Code)
	}
	if rec.Header().Get("Content-Range") != "bytes 100-199/1000" {
		t.Fatalf("content range not passed through: %q", rec.Header().Get("Content-Range"))
	}
	if rec.Body.Len() != 100 {
		t.Fatalf("body not streamed: %d bytes", rec.Body.Len())
	}
}

func TestProxyHeaderFiltering(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Access-Control-Allow-Origin", "http://nas.local")
		w.Header().Set("Access-Control-Expose-Headers", "X-Upstream")
		w.Header().Set("Keep-Alive", "timeout=5")
		_, _ = w.Write([]byte("audio"))
	}))
	defer upstream.Close()

	rec := proxyRequest(t, proxyModule(t), upstream.URL+"/track.mp3", nil)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("proxy must own the CORS policy, got %q", got)
	}
	if rec.Header().Get("Access-Control-Expose-Headers") != "" {
		t.Fatalf("upstream access-control headers must be dropped")
	}
	if rec.Header().Get("Keep-Alive") != "" {
		t.Fatalf("hop-by-hop headers must be dropped")
	}
	if rec.Header().Get("Content-Type") != "audio/mpeg" {
		t.Fatalf("content type lost: %q", rec.Header().Get("Content-Type"))
	}
}

func TestProxyUpstreamStatusPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer upstream.Close()

	rec := proxyRequest(t, proxyModule(t), upstream.URL+"/gone.mp4", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected upstream 404 passed through, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("CORS header required on error passthrough")
	}
}

func TestProxyDeadUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	rec := proxyRequest(t, proxyModule(t), upstream.URL+"/media.mp4", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for dead upstream, got %d", rec.Code)
	}
}
