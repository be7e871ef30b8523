package webapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dlnaview/dlnaview/internal/registry"
	"github.com/dlnaview/dlnaview/internal/upnp"
	"github.com/dlnaview/dlnaview/pkg/api"
)

func writeJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	payload, _ := json.Marshal(api.ErrorReply{Error: message})
	writeJSON(w, status, payload)
}

func (m *Module) handleHealthz(w http.ResponseWriter, r *http.Request) {
	payload, _ := json.Marshal(map[string]any{
		"status":  "ok",
		"servers": m.registry.Len(),
	})
	writeJSON(w, http.StatusOK, payload)
}

// handleServers lists the known servers. An empty network yields an empty
// array, never null and never an error.
func (m *Module) handleServers(w http.ResponseWriter, r *http.Request) {
	servers := m.registry.List()
	out := make([]api.ServerInfo, 0, len(servers))
	for _, server := range servers {
		out = append(out, api.ServerInfo{
			ID:           server.ID,
			FriendlyName: server.FriendlyName,
			USN:          server.USN,
			Location:     server.Location,
			BaseURL:      server.BaseURL,
			ControlURL:   server.ControlURL,
			IconURL:      server.IconURL,
		})
	}
	payload, err := json.Marshal(out)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleBrowse lists the children of one object on one server. Parameter
// validation happens before any network traffic.
func (m *Module) handleBrowse(w http.ResponseWriter, r *http.Request) {
	serverID := r.URL.Query().Get("serverId")
	if serverID == "" {
		writeError(w, http.StatusBadRequest, "serverId is required")
		return
	}
	objectID := r.URL.Query().Get("objectId")
	if objectID == "" {
		objectID = "0"
	}

	server, ok := m.registry.Get(serverID)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown server: "+serverID)
		return
	}

	key := browseCacheKey(serverID, objectID, m.registry.Revision())
	if payload, ok := m.cacheGet(key); ok {
		writeJSON(w, http.StatusOK, payload)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), m.config.BrowseTimeout)
	defer cancel()
	result, err := m.browser.BrowseAll(ctx, server.ControlURL, objectID)
	if err != nil {
		m.log.Warn("browse failed",
			zap.String("server", serverID),
			zap.String("object", objectID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "browse failed: "+err.Error())
		return
	}

	reply := m.buildBrowseReply(ctx, server, objectID, result)
	payload, err := json.Marshal(reply)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	m.cachePut(key, payload)
	writeJSON(w, http.StatusOK, payload)
}

func (m *Module) buildBrowseReply(ctx context.Context, server registry.MediaServer, objectID string, result upnp.BrowseResult) api.BrowseReply {
	reply := api.BrowseReply{
		Containers:     make([]api.Container, 0, len(result.Containers)),
		Items:          make([]api.Item, 0, len(result.Items)),
		NumberReturned: result.NumberReturned,
		TotalMatches:   result.TotalMatches,
	}
	for _, c := range result.Containers {
		reply.Containers = append(reply.Containers, api.Container{
			ID:         c.ID,
			ParentID:   c.ParentID,
			Title:      c.Title,
			ChildCount: c.ChildCount,
		})
	}
	for _, item := range result.Items {
		resource := item.ResourceURL
		if resource != "" {
			resource = upnp.ResolveURL(server.BaseURL, resource)
		}
		reply.Items = append(reply.Items, api.Item{
			ID:          item.ID,
			ParentID:    item.ParentID,
			Title:       item.Title,
			Class:       item.Class,
			ResourceURL: resource,
			Mime:        item.Mime,
		})
	}
	// Up-one-level navigation. Best effort: the listing is still useful when
	// the device refuses BrowseMetadata.
	if objectID != "0" {
		if parent, err := m.browser.Metadata(ctx, server.ControlURL, objectID); err == nil {
			reply.ParentID = parent
		}
	}
	return reply
}
