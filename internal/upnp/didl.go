package upnp

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// Container is a browsable folder in a server's hierarchy. ChildCount is
// advisory and server-reported; devices may omit it or report zero.
type Container struct {
	ID         string
	ParentID   string
	Title      string
	ChildCount int
}

// Item is a playable media object. ResourceURL is empty when the server did
// not provide a usable resource locator; such items are still listed but
// cannot be streamed.
type Item struct {
	ID          string
	ParentID    string
	Title       string
	Class       string
	ResourceURL string
	Mime        string
}

type didlLite struct {
	XMLName    xml.Name        `xml:"DIDL-Lite"`
	Containers []didlContainer `xml:"container"`
	Items      []didlItem      `xml:"item"`
}

type didlContainer struct {
	ID         string `xml:"id,attr"`
	ParentID   string `xml:"parentID,attr"`
	ChildCount string `xml:"childCount,attr"`
	Title      string `xml:"http://purl.org/dc/elements/1.1/ title"`
}

type didlItem struct {
	ID        string    `xml:"id,attr"`
	ParentID  string    `xml:"parentID,attr"`
	Title     string    `xml:"http://purl.org/dc/elements/1.1/ title"`
	Class     string    `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ class"`
	Resources []didlRes `xml:"res"`
}

type didlRes struct {
	Value        string `xml:",chardata"`
	ProtocolInfo string `xml:"protocolInfo,attr"`
}

// DecodeDIDL parses a serialized DIDL-Lite document into containers and
// items. An empty or absent document is the natural "no content" outcome for
// some devices and decodes to empty slices, not an error.
func DecodeDIDL(result string) ([]Container, []Item, error) {
	if strings.TrimSpace(result) == "" {
		return nil, nil, nil
	}
	var doc didlLite
	if err := xml.Unmarshal([]byte(result), &doc); err != nil {
		return nil, nil, &ProtocolError{Reason: "malformed DIDL-Lite document: " + err.Error()}
	}

	containers := make([]Container, 0, len(doc.Containers))
	for _, c := range doc.Containers {
		containers = append(containers, Container{
			ID:         c.ID,
			ParentID:   c.ParentID,
			Title:      titleOr(c.Title, "Folder"),
			ChildCount: parseChildCount(c.ChildCount),
		})
	}

	items := make([]Item, 0, len(doc.Items))
	for _, i := range doc.Items {
		resourceURL, mime := firstResource(i.Resources)
		items = append(items, Item{
			ID:          i.ID,
			ParentID:    i.ParentID,
			Title:       titleOr(i.Title, "Item"),
			Class:       i.Class,
			ResourceURL: resourceURL,
			Mime:        mime,
		})
	}
	return containers, items, nil
}

// firstResource picks the first res element carrying a URL. Servers emit res
// as a bare string, a single attributed element, or a list of them; all three
// shapes land here as a slice and the first usable entry wins. An item
// without one decodes with an empty URL rather than failing the listing.
func firstResource(resources []didlRes) (string, string) {
	for _, res := range resources {
		value := strings.TrimSpace(res.Value)
		if value == "" {
			continue
		}
		return value, MimeFromProtocolInfo(res.ProtocolInfo)
	}
	return "", ""
}

// MimeFromProtocolInfo extracts the content-format field of a protocolInfo
// attribute, e.g. "http-get:*:video/mp4:*" yields "video/mp4".
func MimeFromProtocolInfo(protocolInfo string) string {
	parts := strings.Split(protocolInfo, ":")
	if len(parts) < 3 {
		return ""
	}
	format := strings.TrimSpace(parts[2])
	if format == "" || format == "*" {
		return ""
	}
	return format
}

func parseChildCount(value string) int {
	count, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || count < 0 {
		return 0
	}
	return count
}

func titleOr(title, fallback string) string {
	if strings.TrimSpace(title) == "" {
		return fallback
	}
	return title
}
