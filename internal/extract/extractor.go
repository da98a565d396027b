// extractor.go
// Date: 2026-10-17
// Version: 0.1.0
// License: GPL-3.0
// License Details: https://www.gnu.org/licenses/gpl-3.0.en.html
//

// Package extract reads a facility record out of an unknown detail page by
// falling back through ordered selector strategies per field.
package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"earth911/internal/facility"
	"earth911/internal/logger"
	"earth911/internal/session"
)

// Rules holds the ordered strategies for every field.
type Rules struct {
	Name    []session.Selector
	Address []session.Selector
	// Dates are matched against the raw document; group 1 is the value.
	Dates []*regexp.Regexp
	// MaterialTiers are tried in order; within a tier the first selector
	// yielding any accepted entry wins.
	MaterialTiers [][]session.Selector

	MinNameLen     int
	NameDeny       []string
	MinAddressLen  int
	MinMaterialLen int
	MaxMaterialLen int
}

// DefaultRules returns the strategies tuned for the search site.
func DefaultRules() Rules {
	return Rules{
		Name: []session.Selector{
			session.CSS(`h1:not([class*="help"]):not([class*="search"])`),
			session.CSS(`h2:not([class*="help"]):not([class*="search"])`),
			session.CSS(`.business-name`),
			session.CSS(`.facility-name`),
			session.CSS(`.location-name`),
			session.CSS(`[class*="name"]:not([class*="help"])`),
			session.CSS(`.title:not([class*="help"])`),
			session.CSS(`.facility-title`),
			session.CSS(`.location-title`),
		},
		Address: []session.Selector{
			session.CSS(`.address`),
			session.CSS(`.street-address`),
			session.CSS(`[class*="address"]`),
			session.CSS(`.location-address`),
			session.CSS(`.facility-address`),
			session.CSS(`.contact-address`),
		},
		Dates: []*regexp.Regexp{
			regexp.MustCompile(`Last Updated[:\s]*(\d{4}-\d{2}-\d{2})`),
			regexp.MustCompile(`Updated[:\s]*(\d{4}-\d{2}-\d{2})`),
			regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
			regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`),
		},
		MaterialTiers: [][]session.Selector{
			{
				session.CSS(`.materials-accepted li`),
				session.CSS(`.accepted-materials li`),
				session.CSS(`[class*="materials"] li`),
				session.CSS(`.materials li`),
				session.CSS(`.accepted li`),
				session.CSS(`.recycled-materials li`),
			},
			{
				session.XPath(`//*[contains(text(), "Accepts")]/following-sibling::*`),
				session.XPath(`//*[contains(text(), "Materials")]/following-sibling::*`),
				session.XPath(`//*[contains(text(), "Recycles")]/following-sibling::*`),
			},
		},
		MinNameLen:     5,
		NameDeny:       []string{"help", "search"},
		MinAddressLen:  10,
		MinMaterialLen: 2,
		MaxMaterialLen: 50,
	}
}

// Extractor turns the current detail view into a facility.Record.
type Extractor struct {
	rules Rules
	log   logger.Interface
}

// New creates an Extractor.
func New(rules Rules, log logger.Interface) *Extractor {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Extractor{rules: rules, log: log.WithComponent("extractor")}
}

// Extract reads every field from the document currently loaded in d. Fields
// no strategy can fill are facility.Unknown; Extract never fails.
func (e *Extractor) Extract(ctx context.Context, d session.Driver) facility.Record {
	name := e.Name(ctx, d)
	updated := e.LastUpdated(ctx, d)
	address := e.Address(ctx, d)
	materials := e.Materials(ctx, d)

	rec := facility.New(name, updated, address, materials)
	e.log.Debug("Extracted facility",
		"name", rec.Name,
		"last_updated", rec.LastUpdated,
		"address", rec.StreetAddress,
		"materials", rec.MaterialsAccepted,
	)
	return rec
}

// Ready reports whether any name selector matches the current page.
func (e *Extractor) Ready(ctx context.Context, d session.Driver) bool {
	for _, sel := range e.rules.Name {
		elems, err := d.FindAll(ctx, sel)
		if err == nil && len(elems) > 0 {
			return true
		}
	}
	return false
}

// Name returns the business name, or "" when none is acceptable.
func (e *Extractor) Name(ctx context.Context, d session.Driver) string {
	res := firstText(ctx, d, e.log, e.rules.Name, e.acceptName)
	if res.Found() {
		e.log.Info("Found business name", "name", res.Value, "selector", res.Selector.String())
	}
	return res.Value
}

func (e *Extractor) acceptName(text string) bool {
	if utf8.RuneCountInString(text) <= e.rules.MinNameLen {
		return false
	}
	lower := strings.ToLower(text)
	for _, deny := range e.rules.NameDeny {
		if strings.Contains(lower, deny) {
			return false
		}
	}
	return true
}

// LastUpdated returns the first date matched in the raw document.
func (e *Extractor) LastUpdated(ctx context.Context, d session.Driver) string {
	raw, err := d.RawHTML(ctx)
	if err != nil {
		e.log.Debug("Reading document failed", "error", err)
		return ""
	}
	for _, re := range e.rules.Dates {
		if m := re.FindStringSubmatch(raw); len(m) > 1 {
			e.log.Info("Found last updated", "date", m[1], "pattern", re.String())
			return m[1]
		}
	}
	return ""
}

// Address returns the first sufficiently long address text.
func (e *Extractor) Address(ctx context.Context, d session.Driver) string {
	res := firstText(ctx, d, e.log, e.rules.Address, func(text string) bool {
		return utf8.RuneCountInString(text) > e.rules.MinAddressLen
	})
	if res.Found() {
		e.log.Info("Found address", "address", res.Value, "selector", res.Selector.String())
	}
	return res.Value
}

// Materials returns the accepted materials joined with ", ", deduplicated in
// first-seen order.
func (e *Extractor) Materials(ctx context.Context, d session.Driver) string {
	keep := func(text string) bool {
		n := utf8.RuneCountInString(text)
		return n > e.rules.MinMaterialLen && n < e.rules.MaxMaterialLen
	}
	for _, tier := range e.rules.MaterialTiers {
		res := firstBatch(ctx, d, e.log, tier, keep)
		if !res.Found() {
			continue
		}
		joined := strings.Join(dedupe(res.Value), ", ")
		e.log.Info("Found materials", "materials", joined, "selector", res.Selector.String())
		return joined
	}
	return ""
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
