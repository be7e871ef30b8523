package webapi

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// hopHeaders never cross the proxy in either direction.
var hopHeaders = map[string]bool{
	"transfer-encoding": true,
	"connection":        true,
	"keep-alive":        true,
	"proxy-connection":  true,
	"upgrade":           true,
}

func dropResponseHeader(name string) bool {
	lower := strings.ToLower(name)
	if hopHeaders[lower] {
		return true
	}
	// The proxy sets its own CORS policy; upstream CORS headers would
	// conflict with it.
	return strings.HasPrefix(lower, "access-control-")
}

// handleProxy streams a media resource from a server on the LAN to the
// browser, preserving range semantics so seeking works. Only Range and
// User-Agent are forwarded upstream; everything else a browser sends
// (cookies, origin, accept headers) stays on this side.
func (m *Module) handleProxy(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := m.stream.Do(req)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		m.log.Warn("proxy upstream failed", zap.String("url", target), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream fetch failed")
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for name, values := range resp.Header {
		if dropResponseHeader(name) {
			continue
		}
		for _, value := range values {
			header.Add(name, value)
		}
	}
	header.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil && r.Context().Err() == nil {
		m.log.Debug("proxy stream interrupted", zap.String("url", target), zap.Error(err))
	}
}
