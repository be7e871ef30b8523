// Package api defines the JSON types exchanged between dlnaviewd and its
// HTTP API consumers.
package api

// ServerInfo describes one discovered media server.
type ServerInfo struct {
	ID           string `json:"id"`
	FriendlyName string `json:"friendlyName"`
	USN          string `json:"usn"`
	Location     string `json:"location"`
	BaseURL      string `json:"baseURL"`
	ControlURL   string `json:"controlURL"`
	IconURL      string `json:"iconURL,omitempty"`
}

// Container is a browsable folder within a server's hierarchy.
type Container struct {
	ID         string `json:"id"`
	ParentID   string `json:"parentId"`
	Title      string `json:"title"`
	ChildCount int    `json:"childCount"`
}

// Item is a playable media object. ResourceURL is absolute when the server
// provided a usable resource locator and empty otherwise.
type Item struct {
	ID          string `json:"id"`
	ParentID    string `json:"parentId"`
	Title       string `json:"title"`
	Class       string `json:"class"`
	ResourceURL string `json:"resourceUrl,omitempty"`
	Mime        string `json:"mime,omitempty"`
}

// BrowseReply is the accumulated listing of one directory.
type BrowseReply struct {
	Containers     []Container `json:"containers"`
	Items          []Item      `json:"items"`
	ParentID       string      `json:"parentId,omitempty"`
	NumberReturned int64       `json:"numberReturned"`
	TotalMatches   int64       `json:"totalMatches"`
}

// ErrorReply carries a request failure.
type ErrorReply struct {
	Error string `json:"error"`
}
