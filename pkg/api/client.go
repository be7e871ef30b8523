package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running dlnaviewd over its HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates an API client for the daemon at base.
func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Servers lists the discovered media servers.
func (c *Client) Servers(ctx context.Context) ([]ServerInfo, error) {
	var out []ServerInfo
	if err := c.get(ctx, "/api/servers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Browse lists the children of objectID on the given server.
func (c *Client) Browse(ctx context.Context, serverID, objectID string) (BrowseReply, error) {
	query := url.Values{}
	query.Set("serverId", serverID)
	if objectID != "" {
		query.Set("objectId", objectID)
	}
	var out BrowseReply
	if err := c.get(ctx, "/api/browse?"+query.Encode(), &out); err != nil {
		return BrowseReply{}, err
	}
	return out, nil
}

// ProxyURL returns the daemon URL that streams the given media resource.
func (c *Client) ProxyURL(mediaURL string) string {
	return c.base + "/proxy?url=" + url.QueryEscape(mediaURL)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var reply ErrorReply
		if err := json.NewDecoder(resp.Body).Decode(&reply); err == nil && reply.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, reply.Error)
		}
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
