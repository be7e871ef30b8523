// Package ssdp wraps SSDP discovery behind a small client the discovery
// runner drives. Active M-SEARCH and passive NOTIFY listening both funnel
// into the same Announcement shape.
package ssdp

import (
	"context"
	"time"

	gossdp "github.com/koron/go-ssdp"
	"go.uber.org/zap"
)

// Announcement is one SSDP response or NOTIFY from a device on the network.
type Announcement struct {
	Type     string
	USN      string
	Location string
	Server   string
}

// Client performs SSDP searches on the local network.
type Client struct {
	log       *zap.Logger
	wait      time.Duration
	localAddr string
}

// NewClient creates an SSDP client. wait is how long each M-SEARCH listens
// for unicast responses; localAddr optionally pins the outgoing interface.
func NewClient(log *zap.Logger, wait time.Duration, localAddr string) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &Client{log: log, wait: wait, localAddr: localAddr}
}

// Search sends an M-SEARCH for the given search target and collects the
// responses. The call blocks for the configured wait window.
func (c *Client) Search(ctx context.Context, target string) ([]Announcement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	waitSec := int(c.wait.Round(time.Second) / time.Second)
	if waitSec < 1 {
		waitSec = 1
	}
	services, err := gossdp.Search(target, waitSec, c.localAddr)
	if err != nil {
		return nil, err
	}
	out := make([]Announcement, 0, len(services))
	for _, svc := range services {
		out = append(out, Announcement{
			Type:     svc.Type,
			USN:      svc.USN,
			Location: svc.Location,
			Server:   svc.Server,
		})
	}
	c.log.Debug("ssdp search complete",
		zap.String("target", target),
		zap.Int("responses", len(out)),
	)
	return out, nil
}

// Monitor listens for unsolicited ssdp:alive notifications and invokes
// handle for each one until ctx is done. Devices announce themselves when
// they boot, so this catches servers that appear between search rounds.
func (c *Client) Monitor(ctx context.Context, handle func(Announcement)) error {
	monitor := &gossdp.Monitor{
		Alive: func(msg *gossdp.AliveMessage) {
			handle(Announcement{
				Type:     msg.Type,
				USN:      msg.USN,
				Location: msg.Location,
				Server:   msg.Server,
			})
		},
	}
	if err := monitor.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return monitor.Close()
}
