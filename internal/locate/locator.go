// Package locate finds the clickable facility entries on a listing page.
package locate

import (
	"context"

	"earth911/internal/logger"
	"earth911/internal/session"
)

// DefaultSelectors are tried in order; the first non-empty match wins.
var DefaultSelectors = []session.Selector{
	session.CSS(`[class*="location"]`),
	session.CSS(`[class*="facility"]`),
	session.CSS(`[class*="tile"]`),
	session.CSS(`.search-result`),
	session.CSS(`.result-item`),
	session.CSS(`.facility-item`),
}

// DefaultFallback matches anything clickable. Results are noisy.
var DefaultFallback = session.CSS(`a, [onclick], .clickable`)

// Locator enumerates candidate facility elements.
type Locator struct {
	selectors []session.Selector
	fallback  session.Selector
	log       logger.Interface
}

// New creates a Locator with the default selectors.
func New(log logger.Interface) *Locator {
	return NewWithSelectors(DefaultSelectors, DefaultFallback, log)
}

// NewWithSelectors creates a Locator with custom selectors.
func NewWithSelectors(selectors []session.Selector, fallback session.Selector, log logger.Interface) *Locator {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Locator{
		selectors: selectors,
		fallback:  fallback,
		log:       log.WithComponent("locator"),
	}
}

// Locate returns the candidates on the current page in document order. It
// returns an empty slice when nothing matches and never fails.
func (l *Locator) Locate(ctx context.Context, d session.Driver) []session.Element {
	for _, sel := range l.selectors {
		elems, err := d.FindAll(ctx, sel)
		if err != nil {
			l.log.Debug("Lookup failed", "selector", sel.String(), "error", err)
			continue
		}
		if len(elems) > 0 {
			l.log.Info("Found facilities", "count", len(elems), "selector", sel.String())
			return elems
		}
	}

	l.log.Warn("No facilities found with standard selectors, trying clickable elements",
		"selector", l.fallback.String())
	elems, err := d.FindAll(ctx, l.fallback)
	if err != nil {
		l.log.Debug("Lookup failed", "selector", l.fallback.String(), "error", err)
		return []session.Element{}
	}
	if elems == nil {
		return []session.Element{}
	}
	return elems
}

// Ready reports whether any primary selector matches the current page.
func (l *Locator) Ready(ctx context.Context, d session.Driver) bool {
	for _, sel := range l.selectors {
		elems, err := d.FindAll(ctx, sel)
		if err == nil && len(elems) > 0 {
			return true
		}
	}
	return false
}
