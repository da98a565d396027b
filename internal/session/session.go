// Package session abstracts the rendered page the scraper works against.
//
// A Driver owns one document at a time. Elements returned by FindAll are only
// valid until the next navigation; using one afterwards yields ErrStaleElement.
package session

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStaleElement is returned when an element handle outlived its document.
	ErrStaleElement = errors.New("stale element")
	// ErrClickIntercepted is returned when another element would receive the click.
	ErrClickIntercepted = errors.New("click intercepted")
	// ErrPageNotFound is returned by drivers that cannot render the requested URL.
	ErrPageNotFound = errors.New("page not found")
	// ErrNoLink is returned when a clicked element leads nowhere.
	ErrNoLink = errors.New("element has no link")
	// ErrNoDocument is returned when no page has been loaded yet.
	ErrNoDocument = errors.New("no document loaded")
)

// By selects the query language of a Selector.
type By int

const (
	ByCSS By = iota
	ByXPath
)

func (b By) String() string {
	switch b {
	case ByCSS:
		return "css"
	case ByXPath:
		return "xpath"
	default:
		return fmt.Sprintf("by(%d)", int(b))
	}
}

// Selector is one lookup expression.
type Selector struct {
	By    By
	Value string
}

// CSS returns a CSS selector.
func CSS(v string) Selector { return Selector{By: ByCSS, Value: v} }

// XPath returns an XPath selector.
func XPath(v string) Selector { return Selector{By: ByXPath, Value: v} }

func (s Selector) String() string {
	return s.By.String() + ":" + s.Value
}

// Element is an opaque handle on a node of the current document.
type Element struct {
	gen  uint64
	node any
}

// Driver renders pages and exposes their elements.
type Driver interface {
	// Load navigates to url and waits until the document is ready.
	Load(ctx context.Context, url string) error
	// FindAll returns every element matching sel, in document order.
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
	// Text returns the visible text of el.
	Text(ctx context.Context, el Element) (string, error)
	// RawHTML returns the serialized current document.
	RawHTML(ctx context.Context) (string, error)
	ScrollIntoView(ctx context.Context, el Element) error
	// Click performs a native click, failing with ErrClickIntercepted when
	// el is covered.
	Click(ctx context.Context, el Element) error
	// ForceClick dispatches a click on el directly, ignoring overlays.
	ForceClick(ctx context.Context, el Element) error
	CurrentURL(ctx context.Context) (string, error)
	Close() error
}
