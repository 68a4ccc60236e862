package models

import "strings"

// URLBase is the static path the card assets are served under.
const URLBase = "/" + Domain

// ResourceTypeModule is the Lovelace resource type for ES module cards.
const ResourceTypeModule = "module"

// Card describes one bundled frontend card.
type Card struct {
	Name     string
	Filename string
	Version  string
}

// URL is the unversioned resource path for the card.
func (c Card) URL() string {
	return URLBase + "/" + c.Filename
}

// VersionedURL is the resource URL including the cache-busting version query.
func (c Card) VersionedURL() string {
	return c.URL() + "?v=" + c.Version
}

// Cards is the catalogue of cards registered as Lovelace resources.
var Cards = []Card{
	{Name: "Todo List Cards", Filename: "todo-reset-card.js", Version: "0.0.6"},
}

// CardResource is one row of the Lovelace resource store.
type CardResource struct {
	ID      string `json:"id"`
	ResType string `json:"res_type"`
	URL     string `json:"url"`
}

// Path returns the resource URL without its query string.
func (r CardResource) Path() string {
	path, _, _ := strings.Cut(r.URL, "?")
	return path
}

// Version returns the v= query value, or "" if the URL carries none.
func (r CardResource) Version() string {
	_, query, found := strings.Cut(r.URL, "?")
	if !found {
		return ""
	}
	for _, part := range strings.Split(query, "&") {
		if v, ok := strings.CutPrefix(part, "v="); ok {
			return v
		}
	}
	return ""
}
