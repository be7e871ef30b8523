package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dlnaview/dlnaview/internal/adapters/ssdp"
	"github.com/dlnaview/dlnaview/internal/upnp"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]ssdp.Announcement
	err     error
	calls   []string
}

func (f *fakeSearcher) Search(ctx context.Context, target string) ([]ssdp.Announcement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, target)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[target], nil
}

type fakeResolver struct {
	mu        sync.Mutex
	endpoints map[string]*upnp.Endpoint
	errs      map[string]error
	resolved  []string
}

func (f *fakeResolver) Resolve(ctx context.Context, location string) (*upnp.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, location)
	if err := f.errs[location]; err != nil {
		return nil, err
	}
	return f.endpoints[location], nil
}

func TestBurstResolvesAndRegisters(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]ssdp.Announcement{
		"urn:schemas-upnp-org:device:MediaServer:1": {
			{USN: "uuid:a::upnp:rootdevice", Location: "http://10.0.0.1/desc.xml"},
		},
	}}
	resolver := &fakeResolver{endpoints: map[string]*upnp.Endpoint{
		"http://10.0.0.1/desc.xml": {
			FriendlyName: "Attic NAS",
			UDN:          "a",
			BaseURL:      "http://10.0.0.1",
			ControlURL:   "http://10.0.0.1/ctl",
		},
	}}
	reg := New()

	runner := NewRunner(nil, reg, searcher, resolver, RunnerConfig{})
	runner.Burst(context.Background())

	if len(searcher.calls) != len(DefaultSearchTargets) {
		t.Fatalf("expected one search per target, got %v", searcher.calls)
	}
	servers := reg.List()
	if len(servers) != 1 {
		t.Fatalf("expected one server, got %d", len(servers))
	}
	if servers[0].FriendlyName != "Attic NAS" || servers[0].ControlURL != "http://10.0.0.1/ctl" {
		t.Fatalf("unexpected server: %+v", servers[0])
	}
}

func TestBurstDeduplicatesLocationsAcrossTargets(t *testing.T) {
	ann := ssdp.Announcement{USN: "uuid:a", Location: "http://10.0.0.1/desc.xml"}
	searcher := &fakeSearcher{results: map[string][]ssdp.Announcement{
		"urn:schemas-upnp-org:device:MediaServer:1":       {ann, ann},
		"urn:schemas-upnp-org:service:ContentDirectory:1": {ann},
	}}
	resolver := &fakeResolver{endpoints: map[string]*upnp.Endpoint{
		"http://10.0.0.1/desc.xml": {FriendlyName: "NAS", BaseURL: "http://10.0.0.1", ControlURL: "http://10.0.0.1/ctl"},
	}}
	reg := New()

	NewRunner(nil, reg, searcher, resolver, RunnerConfig{}).Burst(context.Background())

	if len(resolver.resolved) != 1 {
		t.Fatalf("expected one resolve for a repeated location, got %v", resolver.resolved)
	}
}

func TestBurstSkipsAnnouncementsWithoutLocation(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]ssdp.Announcement{
		"urn:schemas-upnp-org:device:MediaServer:1": {{USN: "uuid:a"}},
	}}
	resolver := &fakeResolver{}
	NewRunner(nil, New(), searcher, resolver, RunnerConfig{}).Burst(context.Background())
	if len(resolver.resolved) != 0 {
		t.Fatalf("expected no resolves, got %v", resolver.resolved)
	}
}

func TestHandleAnnouncementDropsFailures(t *testing.T) {
	resolver := &fakeResolver{errs: map[string]error{
		"http://10.0.0.1/desc.xml": upnp.ErrNoContentDirectory,
		"http://10.0.0.2/desc.xml": errors.New("connection refused"),
	}}
	reg := New()
	runner := NewRunner(nil, reg, &fakeSearcher{}, resolver, RunnerConfig{})

	runner.HandleAnnouncement(context.Background(), ssdp.Announcement{Location: "http://10.0.0.1/desc.xml"})
	runner.HandleAnnouncement(context.Background(), ssdp.Announcement{Location: "http://10.0.0.2/desc.xml"})

	if reg.Len() != 0 {
		t.Fatalf("failed resolutions must not register servers")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	searcher := &fakeSearcher{}
	runner := NewRunner(nil, New(), searcher, &fakeResolver{}, RunnerConfig{
		BurstDelays: []time.Duration{0},
		Interval:    10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not stop on cancel")
	}

	searcher.mu.Lock()
	calls := len(searcher.calls)
	searcher.mu.Unlock()
	if calls < len(DefaultSearchTargets) {
		t.Fatalf("expected at least one full burst, got %d calls", calls)
	}
}
