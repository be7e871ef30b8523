package upnp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type roundTripFunc func(*http.Request) *http.Response

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r), nil
}

func testResolver(rt roundTripFunc) *Resolver {
	return &Resolver{
		log:  zap.NewExample(),
		http: &http.Client{Transport: rt},
	}
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestResolveWithURLBase(t *testing.T) {
	desc := `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
<URLBase>http://192.168.1.20:8200/</URLBase>
<device>
<friendlyName>Living Room NAS</friendlyName>
<UDN>uuid:abc-123</UDN>
<iconList><icon><mimetype>image/png</mimetype><url>/icons/lrg.png</url><width>120</width><height>120</height></icon></iconList>
<serviceList>
<service><serviceType>urn:schemas-upnp-org:service:ConnectionManager:1</serviceType><controlURL>/cm</controlURL></service>
<service><serviceType>urn:schemas-upnp-org:service:ContentDirectory:1</serviceType><controlURL>/ctl/ContentDir</controlURL></service>
</serviceList>
</device>
</root>`

	resolver := testResolver(func(r *http.Request) *http.Response {
		if r.URL.String() != "http://192.168.1.20:8200/rootDesc.xml" {
			t.Fatalf("unexpected fetch: %s", r.URL)
		}
		return xmlResponse(200, desc)
	})

	endpoint, err := resolver.Resolve(context.Background(), "http://192.168.1.20:8200/rootDesc.xml")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if endpoint.FriendlyName != "Living Room NAS" {
		t.Fatalf("unexpected name: %q", endpoint.FriendlyName)
	}
	if endpoint.UDN != "abc-123" {
		t.Fatalf("expected uuid prefix stripped, got %q", endpoint.UDN)
	}
	if endpoint.BaseURL != "http://192.168.1.20:8200" {
		t.Fatalf("unexpected base: %q", endpoint.BaseURL)
	}
	if endpoint.ControlURL != "http://192.168.1.20:8200/ctl/ContentDir" {
		t.Fatalf("unexpected control url: %q", endpoint.ControlURL)
	}
	if endpoint.IconURL != "http://192.168.1.20:8200/icons/lrg.png" {
		t.Fatalf("unexpected icon url: %q", endpoint.IconURL)
	}
}

func TestResolveDerivesBaseFromLocation(t *testing.T) {
	desc := `<?xml version="1.0"?>
<root>
<device>
<serviceList>
<service><serviceType>urn:schemas-upnp-org:service:ContentDirectory:1</serviceType><controlURL>control</controlURL></service>
</serviceList>
</device>
</root>`

	resolver := testResolver(func(r *http.Request) *http.Response {
		return xmlResponse(200, desc)
	})

	endpoint, err := resolver.Resolve(context.Background(), "http://10.0.0.5:49152/desc/root.xml")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if endpoint.BaseURL != "http://10.0.0.5:49152" {
		t.Fatalf("unexpected base: %q", endpoint.BaseURL)
	}
	if endpoint.ControlURL != "http://10.0.0.5:49152/control" {
		t.Fatalf("unexpected control url: %q", endpoint.ControlURL)
	}
	if endpoint.FriendlyName != "UPnP Media Server" {
		t.Fatalf("expected fallback name, got %q", endpoint.FriendlyName)
	}
}

func TestResolveSkipsDeviceWithoutContentDirectory(t *testing.T) {
	desc := `<?xml version="1.0"?>
<root>
<device>
<friendlyName>Router</friendlyName>
<serviceList>
<service><serviceType>urn:schemas-upnp-org:service:WANIPConnection:1</serviceType><controlURL>/wan</controlURL></service>
</serviceList>
</device>
</root>`

	resolver := testResolver(func(r *http.Request) *http.Response {
		return xmlResponse(200, desc)
	})

	_, err := resolver.Resolve(context.Background(), "http://10.0.0.1/desc.xml")
	if !errors.Is(err, ErrNoContentDirectory) {
		t.Fatalf("expected ErrNoContentDirectory, got %v", err)
	}
}

func TestResolveHTTPError(t *testing.T) {
	resolver := testResolver(func(r *http.Request) *http.Response {
		resp := xmlResponse(500, "boom")
		resp.Status = "500 Internal Server Error"
		return resp
	})

	_, err := resolver.Resolve(context.Background(), "http://10.0.0.9/desc.xml")
	if err == nil || errors.Is(err, ErrNoContentDirectory) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestResolveMalformedDescriptor(t *testing.T) {
	resolver := testResolver(func(r *http.Request) *http.Response {
		return xmlResponse(200, "<root><device>")
	})

	if _, err := resolver.Resolve(context.Background(), "http://10.0.0.9/desc.xml"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewResolverDefaults(t *testing.T) {
	resolver := NewResolver(nil, 0)
	if resolver.http.Timeout != 5*time.Second {
		t.Fatalf("expected default timeout, got %v", resolver.http.Timeout)
	}
}

func TestResolveURL(t *testing.T) {
	cases := []struct {
		base string
		ref  string
		want string
	}{
		{"http://host:8200", "/ctl", "http://host:8200/ctl"},
		{"http://host:8200", "ctl", "http://host:8200/ctl"},
		{"http://host:8200/base/", "ctl", "http://host:8200/base/ctl"},
		{"http://host:8200", "http://other/abs", "http://other/abs"},
	}
	for _, tc := range cases {
		if got := ResolveURL(tc.base, tc.ref); got != tc.want {
			t.Fatalf("ResolveURL(%q, %q) = %q, want %q", tc.base, tc.ref, got, tc.want)
		}
	}
}
