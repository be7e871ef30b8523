package upnp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 200

	// maxBrowsePages bounds the accumulation loop against devices that never
	// report truthful NumberReturned/TotalMatches counters.
	maxBrowsePages = 64
)

// Client issues ContentDirectory Browse actions against a control endpoint.
type Client struct {
	log      *zap.Logger
	http     *http.Client
	pageSize int64
}

// NewClient creates a browse client. pageSize is the RequestedCount sent per
// batch; devices commonly cap the effective count around 50 regardless.
func NewClient(log *zap.Logger, timeout time.Duration, pageSize int) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		log:      log,
		http:     &http.Client{Timeout: timeout},
		pageSize: int64(pageSize),
	}
}

// BrowseResult aggregates one or more Browse batches: containers first, then
// items, each in server order.
type BrowseResult struct {
	Containers     []Container
	Items          []Item
	NumberReturned int64
	TotalMatches   int64
}

// Browse performs a single BrowseDirectChildren call.
func (c *Client) Browse(ctx context.Context, controlURL, objectID string, start, count int64) (BrowseResult, error) {
	env, err := c.do(ctx, controlURL, BuildBrowseEnvelope(objectID, BrowseDirectChildren, start, count))
	if err != nil {
		return BrowseResult{}, err
	}
	containers, items, err := DecodeDIDL(env.Result)
	if err != nil {
		return BrowseResult{}, err
	}
	return BrowseResult{
		Containers:     containers,
		Items:          items,
		NumberReturned: env.NumberReturned,
		TotalMatches:   env.TotalMatches,
	}, nil
}

// BrowseAll accumulates the full child listing of objectID. Devices cap the
// per-call count, so the listing advances StartingIndex by the reported
// NumberReturned until the batch comes back empty or the accumulated count
// reaches the reported TotalMatches.
func (c *Client) BrowseAll(ctx context.Context, controlURL, objectID string) (BrowseResult, error) {
	var out BrowseResult
	var start int64
	started := time.Now()
	for page := 0; page < maxBrowsePages; page++ {
		batch, err := c.Browse(ctx, controlURL, objectID, start, c.pageSize)
		if err != nil {
			return BrowseResult{}, err
		}
		out.Containers = append(out.Containers, batch.Containers...)
		out.Items = append(out.Items, batch.Items...)
		out.TotalMatches = batch.TotalMatches
		if batch.NumberReturned <= 0 {
			break
		}
		start += batch.NumberReturned
		if batch.TotalMatches > 0 && start >= batch.TotalMatches {
			break
		}
	}
	out.NumberReturned = int64(len(out.Containers) + len(out.Items))
	c.log.Debug("browse listing complete",
		zap.String("object", objectID),
		zap.Int64("returned", out.NumberReturned),
		zap.Int64("total", out.TotalMatches),
		zap.Duration("duration", time.Since(started)),
	)
	return out, nil
}

// Metadata fetches the object's own entry via BrowseMetadata and returns its
// parent id, used for up-one-level navigation.
func (c *Client) Metadata(ctx context.Context, controlURL, objectID string) (string, error) {
	env, err := c.do(ctx, controlURL, BuildBrowseEnvelope(objectID, BrowseMetadata, 0, 1))
	if err != nil {
		return "", err
	}
	containers, items, err := DecodeDIDL(env.Result)
	if err != nil {
		return "", err
	}
	if len(containers) > 0 {
		return containers[0].ParentID, nil
	}
	if len(items) > 0 {
		return items[0].ParentID, nil
	}
	return "", &ProtocolError{Reason: "object not found: " + objectID}
}

func (c *Client) do(ctx context.Context, controlURL string, envelope []byte) (BrowseEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, bytes.NewReader(envelope))
	if err != nil {
		return BrowseEnvelope{}, fmt.Errorf("browse request: %w", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", SOAPAction("Browse"))

	resp, err := c.http.Do(req)
	if err != nil {
		return BrowseEnvelope{}, fmt.Errorf("browse fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return BrowseEnvelope{}, fmt.Errorf("browse error: %s", resp.Status)
	}
	return DecodeBrowseResponse(resp.Body)
}
