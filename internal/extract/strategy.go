package extract

import (
	"context"
	"strings"

	"earth911/internal/logger"
	"earth911/internal/session"
)

// Outcome classifies a lookup.
type Outcome int

const (
	// Miss means every selector ran and nothing acceptable was found.
	Miss Outcome = iota
	// Hit means an acceptable value was found.
	Hit
	// Failed means nothing was found and at least one lookup errored.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Failed:
		return "failed"
	default:
		return "miss"
	}
}

// Result is the outcome of running an ordered strategy list.
type Result[T any] struct {
	Value    T
	Outcome  Outcome
	Selector session.Selector
	Err      error
}

// Found reports whether the strategy produced a value.
func (r Result[T]) Found() bool { return r.Outcome == Hit }

// firstText returns the first element text, over sels in order, that accept
// takes. Lookup errors are logged and treated as misses.
func firstText(ctx context.Context, d session.Driver, log logger.Interface, sels []session.Selector, accept func(string) bool) Result[string] {
	var res Result[string]
	for _, sel := range sels {
		if ctx.Err() != nil {
			return fail(res, ctx.Err())
		}
		elems, err := d.FindAll(ctx, sel)
		if err != nil {
			log.Debug("Lookup failed", "selector", sel.String(), "error", err)
			res.Err = err
			continue
		}
		for _, el := range elems {
			text, err := d.Text(ctx, el)
			if err != nil {
				log.Debug("Reading element text failed", "selector", sel.String(), "error", err)
				res.Err = err
				continue
			}
			text = strings.TrimSpace(text)
			if text != "" && accept(text) {
				return Result[string]{Value: text, Outcome: Hit, Selector: sel}
			}
		}
	}
	return fail(res, res.Err)
}

// firstBatch returns every text kept by keep from the first selector in sels
// that yields at least one.
func firstBatch(ctx context.Context, d session.Driver, log logger.Interface, sels []session.Selector, keep func(string) bool) Result[[]string] {
	var res Result[[]string]
	for _, sel := range sels {
		if ctx.Err() != nil {
			return fail(res, ctx.Err())
		}
		elems, err := d.FindAll(ctx, sel)
		if err != nil {
			log.Debug("Lookup failed", "selector", sel.String(), "error", err)
			res.Err = err
			continue
		}
		var batch []string
		for _, el := range elems {
			text, err := d.Text(ctx, el)
			if err != nil {
				res.Err = err
				continue
			}
			text = strings.TrimSpace(text)
			if text != "" && keep(text) {
				batch = append(batch, text)
			}
		}
		if len(batch) > 0 {
			return Result[[]string]{Value: batch, Outcome: Hit, Selector: sel}
		}
	}
	return fail(res, res.Err)
}

func fail[T any](res Result[T], err error) Result[T] {
	res.Err = err
	if err != nil {
		res.Outcome = Failed
	} else {
		res.Outcome = Miss
	}
	return res
}
