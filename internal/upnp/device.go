package upnp

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoContentDirectory marks a device whose service list advertises no
// ContentDirectory service. Many UPnP devices answer broad searches with
// unrelated services; callers skip such devices rather than report them.
var ErrNoContentDirectory = errors.New("upnp: no content directory service")

// Endpoint is a resolved ContentDirectory control endpoint.
type Endpoint struct {
	FriendlyName string
	UDN          string
	BaseURL      string
	ControlURL   string
	IconURL      string
}

type deviceDescription struct {
	URLBase string `xml:"URLBase"`
	Device  struct {
		FriendlyName string          `xml:"friendlyName"`
		UDN          string          `xml:"UDN"`
		Icons        []deviceIcon    `xml:"iconList>icon"`
		Services     []deviceService `xml:"serviceList>service"`
	} `xml:"device"`
}

type deviceService struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	ControlURL  string `xml:"controlURL"`
}

type deviceIcon struct {
	MimeType string `xml:"mimetype"`
	URL      string `xml:"url"`
	Width    int    `xml:"width"`
	Height   int    `xml:"height"`
}

func (d deviceDescription) contentDirectory() (deviceService, bool) {
	for _, svc := range d.Device.Services {
		if strings.Contains(strings.ToLower(svc.ServiceType), "contentdirectory") {
			return svc, true
		}
	}
	return deviceService{}, false
}

func (d deviceDescription) baseURL(location string) string {
	if strings.TrimSpace(d.URLBase) != "" {
		return strings.TrimRight(d.URLBase, "/")
	}
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
}

func (d deviceDescription) iconURL(base string) string {
	if len(d.Device.Icons) == 0 {
		return ""
	}
	return ResolveURL(base, d.Device.Icons[0].URL)
}

// Resolver fetches device description documents and extracts ContentDirectory
// control endpoints.
type Resolver struct {
	log  *zap.Logger
	http *http.Client
}

// NewResolver creates a resolver whose fetches are bounded by timeout so one
// unresponsive device cannot stall a discovery burst.
func NewResolver(log *zap.Logger, timeout time.Duration) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{log: log, http: &http.Client{Timeout: timeout}}
}

// Resolve fetches the description document at location and returns the
// device's ContentDirectory endpoint, or ErrNoContentDirectory when the
// device advertises none.
func (r *Resolver) Resolve(ctx context.Context, location string) (*Endpoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("device description request: %w", err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device description fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("device description error: %s", resp.Status)
	}

	var desc deviceDescription
	if err := xml.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, fmt.Errorf("device description decode: %w", err)
	}
	service, ok := desc.contentDirectory()
	if !ok {
		return nil, ErrNoContentDirectory
	}

	base := desc.baseURL(location)
	friendly := strings.TrimSpace(desc.Device.FriendlyName)
	if friendly == "" {
		friendly = "UPnP Media Server"
	}
	endpoint := &Endpoint{
		FriendlyName: friendly,
		UDN:          strings.TrimPrefix(desc.Device.UDN, "uuid:"),
		BaseURL:      base,
		ControlURL:   ResolveURL(base, service.ControlURL),
		IconURL:      desc.iconURL(base),
	}
	r.log.Debug("device resolved",
		zap.String("location", location),
		zap.String("name", endpoint.FriendlyName),
		zap.String("control_url", endpoint.ControlURL),
	)
	return endpoint, nil
}

// ResolveURL resolves a possibly relative reference against a base URL.
func ResolveURL(baseURL string, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return baseURL + ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		base.Path = path.Join(base.Path, ref)
		return base.String()
	}
	return base.ResolveReference(rel).String()
}
