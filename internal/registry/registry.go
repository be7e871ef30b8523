// Package registry tracks the media servers discovered on the local network.
package registry

import (
	"strconv"
	"sync"
	"time"
)

// MediaServer is a discovered UPnP MediaServer with a ContentDirectory
// service. IDs are stable for the lifetime of the process; rediscovery of a
// known server updates the record in place.
type MediaServer struct {
	ID           string
	FriendlyName string
	USN          string
	Location     string
	BaseURL      string
	ControlURL   string
	IconURL      string
	LastSeen     time.Time
}

// Registry is a concurrency-safe collection of media servers. Every change to
// the set of servers or their identity fields bumps a revision counter, which
// callers use to invalidate caches and detect catalog changes.
type Registry struct {
	mu       sync.RWMutex
	servers  map[string]*MediaServer
	order    []string
	nextID   int
	revision uint64
	now      func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		servers: make(map[string]*MediaServer),
		nextID:  1,
		now:     time.Now,
	}
}

// Upsert records a discovered server. Servers are deduplicated by USN first
// and by description location second, so a device that changes its location
// keeps its id. Returns the stored record and whether it was newly added.
func (r *Registry) Upsert(server MediaServer) (MediaServer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.findLocked(server.USN, server.Location)
	if existing == nil {
		server.ID = strconv.Itoa(r.nextID)
		r.nextID++
		server.LastSeen = r.now()
		stored := server
		r.servers[stored.ID] = &stored
		r.order = append(r.order, stored.ID)
		r.revision++
		return stored, true
	}

	changed := existing.FriendlyName != server.FriendlyName ||
		existing.USN != server.USN ||
		existing.Location != server.Location ||
		existing.BaseURL != server.BaseURL ||
		existing.ControlURL != server.ControlURL ||
		existing.IconURL != server.IconURL
	existing.FriendlyName = server.FriendlyName
	existing.USN = server.USN
	existing.Location = server.Location
	existing.BaseURL = server.BaseURL
	existing.ControlURL = server.ControlURL
	existing.IconURL = server.IconURL
	existing.LastSeen = r.now()
	if changed {
		r.revision++
	}
	return *existing, false
}

func (r *Registry) findLocked(usn, location string) *MediaServer {
	if usn != "" {
		for _, id := range r.order {
			if r.servers[id].USN == usn {
				return r.servers[id]
			}
		}
	}
	for _, id := range r.order {
		if r.servers[id].Location == location {
			return r.servers[id]
		}
	}
	return nil
}

// Get returns a copy of the server with the given id.
func (r *Registry) Get(id string) (MediaServer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	server, ok := r.servers[id]
	if !ok {
		return MediaServer{}, false
	}
	return *server, true
}

// List returns copies of all known servers in discovery order.
func (r *Registry) List() []MediaServer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MediaServer, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.servers[id])
	}
	return out
}

// Len returns the number of known servers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Revision returns the current change counter.
func (r *Registry) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}
