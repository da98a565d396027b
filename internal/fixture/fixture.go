// Package fixture serves a small offline copy of the search site for tests
// and for the Static driver.
package fixture

import (
	"embed"
	"fmt"
	"path"
)

// ListingURL is the listing page every fixture site answers on.
const ListingURL = "https://search.earth911.com/?what=Electronics&where=10001&list_filter=all&max_distance=100"

const origin = "https://search.earth911.com"

//go:embed testdata/*.html
var files embed.FS

// Listing page variants.
const (
	Listing         = "listing.html"
	ListingTwo      = "listing_two.html"
	ListingAnchors  = "listing_anchors.html"
	ListingEmpty    = "listing_empty.html"
	ListingUnlinked = "listing_unlinked.html"
)

var details = map[string]string{
	"/location/ecodrop-center/":    "ecodrop_center.html",
	"/location/green-cycle-depot/": "green_cycle_depot.html",
	"/location/help-desk/":         "help_desk.html",
}

// DetailURL returns the absolute URL of a detail page fixture.
func DetailURL(slug string) string {
	return origin + "/location/" + slug + "/"
}

// Page returns the contents of a fixture file.
func Page(name string) string {
	b, err := files.ReadFile(path.Join("testdata", name))
	if err != nil {
		panic(fmt.Sprintf("fixture %s: %v", name, err))
	}
	return string(b)
}

// Site returns every detail page plus the given listing variant served on
// ListingURL, ready for session.NewStatic.
func Site(listing string) map[string]string {
	pages := map[string]string{ListingURL: Page(listing)}
	for p, name := range details {
		pages[origin+p] = Page(name)
	}
	return pages
}
