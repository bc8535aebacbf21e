package domain

import "context"

// FeedItem is one vote box found on the site's page.
// StartISO and EndISO are the fallback window from the markup.
type FeedItem struct {
	FeedID   string
	StartISO string
	EndISO   string
}

// CSRF is the anti-forgery pair from the page's meta tags.
type CSRF struct {
	Header string
	Token  string
}

// Present reports whether both header name and token are known.
func (c CSRF) Present() bool {
	return c.Header != "" && c.Token != ""
}

// Page is what discovery reads from the server-rendered feed page.
type Page struct {
	Items []FeedItem
	CSRF  CSRF
}

// PageSource loads the feed page.
type PageSource interface {
	Discover(ctx context.Context) (*Page, error)
}
