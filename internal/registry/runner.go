package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dlnaview/dlnaview/internal/adapters/ssdp"
	"github.com/dlnaview/dlnaview/internal/upnp"
)

// DefaultSearchTargets are the SSDP search targets that identify browsable
// media servers. Some devices only answer one of the two forms.
var DefaultSearchTargets = []string{
	"urn:schemas-upnp-org:device:MediaServer:1",
	"urn:schemas-upnp-org:service:ContentDirectory:1",
}

// defaultBurstDelays staggers the warmup searches. Devices on sleepy WiFi
// links often miss the first M-SEARCH, so the runner repeats it twice.
var defaultBurstDelays = []time.Duration{0, 1500 * time.Millisecond, 4 * time.Second}

// Searcher issues SSDP searches. *ssdp.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, target string) ([]ssdp.Announcement, error)
}

// EndpointResolver fetches and parses device descriptions. *upnp.Resolver
// satisfies it.
type EndpointResolver interface {
	Resolve(ctx context.Context, location string) (*upnp.Endpoint, error)
}

// RunnerConfig configures the discovery loop.
type RunnerConfig struct {
	Targets     []string
	BurstDelays []time.Duration
	Interval    time.Duration
}

func (c *RunnerConfig) withDefaults() RunnerConfig {
	out := *c
	if len(out.Targets) == 0 {
		out.Targets = DefaultSearchTargets
	}
	if len(out.BurstDelays) == 0 {
		out.BurstDelays = defaultBurstDelays
	}
	if out.Interval <= 0 {
		out.Interval = 30 * time.Second
	}
	return out
}

// Runner drives periodic SSDP discovery and feeds resolved servers into the
// registry.
type Runner struct {
	log      *zap.Logger
	registry *Registry
	searcher Searcher
	resolver EndpointResolver
	config   RunnerConfig
}

// NewRunner creates a discovery runner.
func NewRunner(log *zap.Logger, reg *Registry, searcher Searcher, resolver EndpointResolver, cfg RunnerConfig) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		log:      log.Named("discovery"),
		registry: reg,
		searcher: searcher,
		resolver: resolver,
		config:   cfg.withDefaults(),
	}
}

// Run performs a staggered warmup burst and then searches on the configured
// interval until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	started := time.Now()
	for _, delay := range r.config.BurstDelays {
		if remaining := delay - time.Since(started); remaining > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(remaining):
			}
		}
		r.Burst(ctx)
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Burst(ctx)
		}
	}
}

// Burst searches every configured target once and resolves each distinct
// description location it hears back.
func (r *Runner) Burst(ctx context.Context) {
	seen := make(map[string]bool)
	var wg sync.WaitGroup

	for _, target := range r.config.Targets {
		announcements, err := r.searcher.Search(ctx, target)
		if err != nil {
			if ctx.Err() == nil {
				r.log.Warn("ssdp search failed", zap.String("target", target), zap.Error(err))
			}
			continue
		}
		for _, ann := range announcements {
			if ann.Location == "" || seen[ann.Location] {
				continue
			}
			seen[ann.Location] = true
			wg.Add(1)
			go func(ann ssdp.Announcement) {
				defer wg.Done()
				r.HandleAnnouncement(ctx, ann)
			}(ann)
		}
	}
	wg.Wait()
}

// HandleAnnouncement resolves one announcement into a registry entry.
// Failures are logged and dropped; a single broken device must not disturb
// the rest of the catalog.
func (r *Runner) HandleAnnouncement(ctx context.Context, ann ssdp.Announcement) {
	endpoint, err := r.resolver.Resolve(ctx, ann.Location)
	if err != nil {
		if errors.Is(err, upnp.ErrNoContentDirectory) {
			r.log.Debug("skipping device without ContentDirectory",
				zap.String("location", ann.Location))
			return
		}
		if ctx.Err() == nil {
			r.log.Warn("device description failed",
				zap.String("location", ann.Location), zap.Error(err))
		}
		return
	}

	stored, added := r.registry.Upsert(MediaServer{
		FriendlyName: endpoint.FriendlyName,
		USN:          ann.USN,
		Location:     ann.Location,
		BaseURL:      endpoint.BaseURL,
		ControlURL:   endpoint.ControlURL,
		IconURL:      endpoint.IconURL,
	})
	if added {
		r.log.Info("media server discovered",
			zap.String("id", stored.ID),
			zap.String("name", stored.FriendlyName),
			zap.String("location", stored.Location),
		)
	}
}
