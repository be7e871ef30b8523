// Package upnp implements the ContentDirectory dialect spoken by DLNA media
// servers: SOAP Browse envelopes, DIDL-Lite listings and device description
// documents.
package upnp

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// ContentDirectoryService identifies the service browsed by this package.
const ContentDirectoryService = "urn:schemas-upnp-org:service:ContentDirectory:1"

// Browse flags accepted by the ContentDirectory Browse action.
const (
	BrowseDirectChildren = "BrowseDirectChildren"
	BrowseMetadata       = "BrowseMetadata"
)

// SOAPAction returns the quoted header value for a ContentDirectory action.
func SOAPAction(action string) string {
	return fmt.Sprintf("%q", ContentDirectoryService+"#"+action)
}

// ProtocolError reports a response that does not follow the expected SOAP or
// DIDL-Lite shape.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "upnp: " + e.Reason }

// BuildBrowseEnvelope builds the SOAP request body for a Browse action.
func BuildBrowseEnvelope(objectID string, flag string, start, count int64) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	buf.WriteString(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`)
	buf.WriteString(`<s:Body><u:Browse xmlns:u="` + ContentDirectoryService + `">`)
	buf.WriteString(`<ObjectID>` + xmlEscape(objectID) + `</ObjectID>`)
	buf.WriteString(`<BrowseFlag>` + flag + `</BrowseFlag>`)
	buf.WriteString(`<Filter>*</Filter>`)
	fmt.Fprintf(&buf, `<StartingIndex>%d</StartingIndex>`, start)
	fmt.Fprintf(&buf, `<RequestedCount>%d</RequestedCount>`, count)
	buf.WriteString(`<SortCriteria></SortCriteria>`)
	buf.WriteString(`</u:Browse></s:Body></s:Envelope>`)
	return buf.Bytes()
}

// BrowseEnvelope is the decoded payload of a Browse response. Result holds
// the inner DIDL-Lite document still in its serialized form.
type BrowseEnvelope struct {
	Result         string
	NumberReturned int64
	TotalMatches   int64
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		BrowseResponse *browseResponse `xml:"BrowseResponse"`
		Fault          *soapFault      `xml:"Fault"`
	} `xml:"Body"`
}

type browseResponse struct {
	Result         *string `xml:"Result"`
	NumberReturned int64   `xml:"NumberReturned"`
	TotalMatches   int64   `xml:"TotalMatches"`
	UpdateID       int64   `xml:"UpdateID"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Detail string `xml:"detail"`
}

func (f *soapFault) Error() string {
	if f == nil {
		return ""
	}
	if f.Detail != "" {
		return f.String + ": " + f.Detail
	}
	return f.String
}

// DecodeBrowseResponse extracts the Result document and pagination counters
// from a SOAP Browse response. A fault or a missing
// Envelope/Body/BrowseResponse/Result path yields a ProtocolError.
func DecodeBrowseResponse(r io.Reader) (BrowseEnvelope, error) {
	var env soapEnvelope
	if err := xml.NewDecoder(r).Decode(&env); err != nil {
		return BrowseEnvelope{}, &ProtocolError{Reason: "malformed soap envelope: " + err.Error()}
	}
	if env.Body.Fault != nil {
		return BrowseEnvelope{}, &ProtocolError{Reason: "soap fault: " + env.Body.Fault.Error()}
	}
	resp := env.Body.BrowseResponse
	if resp == nil || resp.Result == nil {
		return BrowseEnvelope{}, &ProtocolError{Reason: "browse response missing Result"}
	}
	return BrowseEnvelope{
		Result:         *resp.Result,
		NumberReturned: resp.NumberReturned,
		TotalMatches:   resp.TotalMatches,
	}, nil
}

func xmlEscape(value string) string {
	replacer := strings.NewReplacer(
		`&`, "&amp;",
		`<`, "&lt;",
		`>`, "&gt;",
		`'`, "&apos;",
		`"`, "&quot;",
	)
	return replacer.Replace(value)
}
