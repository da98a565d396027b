// Package navigate drives the listing/detail loop that produces facility
// records.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"earth911/internal/facility"
	"earth911/internal/logger"
	"earth911/internal/session"
)

// Config holds the immutable settings of one run.
type Config struct {
	ListingURL    string
	MaxFacilities int

	// Upper bounds for readiness polling. Zero checks once.
	ListingSettle time.Duration
	ReturnSettle  time.Duration
	ClickSettle   time.Duration
	DetailSettle  time.Duration
	// ScrollSettle is a plain delay after scrolling a candidate into view.
	ScrollSettle time.Duration

	// MinLoadInterval spaces out page loads. Zero disables pacing.
	MinLoadInterval time.Duration
}

// Locator enumerates the candidates of the current listing page.
type Locator interface {
	Locate(ctx context.Context, d session.Driver) []session.Element
	Ready(ctx context.Context, d session.Driver) bool
}

// Extractor reads a record from the current detail page.
type Extractor interface {
	Extract(ctx context.Context, d session.Driver) facility.Record
	Ready(ctx context.Context, d session.Driver) bool
}

// Status is the outcome of one loop iteration.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusSkipped   Status = "skipped"
	StatusExhausted Status = "exhausted"
)

// Attempt records what happened to candidate Index (1-based).
type Attempt struct {
	Index  int
	Status Status
	Record facility.Record
	Forced bool
	Err    error
}

// Report is the result of a run.
type Report struct {
	Requested int
	Records   []facility.Record
	Attempts  []Attempt
	// Err is set when the run ended early because the listing could not be
	// loaded or the context was cancelled.
	Err error
}

// Summary describes obtained vs requested.
func (r Report) Summary() string {
	return fmt.Sprintf("obtained %d of %d requested facilities", len(r.Records), r.Requested)
}

// Controller runs the navigation loop over a single driver.
type Controller struct {
	driver    session.Driver
	locator   Locator
	extractor Extractor
	cfg       Config
	limiter   *rate.Limiter
	log       logger.Interface
}

// New creates a Controller.
func New(d session.Driver, l Locator, e Extractor, cfg Config, log logger.Interface) (*Controller, error) {
	if cfg.MaxFacilities <= 0 {
		return nil, fmt.Errorf("max facilities must be positive, got %d", cfg.MaxFacilities)
	}
	if cfg.ListingURL == "" {
		return nil, errors.New("listing url is required")
	}
	if log == nil {
		log = logger.NewNoOp()
	}

	limit := rate.Inf
	if cfg.MinLoadInterval > 0 {
		limit = rate.Every(cfg.MinLoadInterval)
	}

	return &Controller{
		driver:    d,
		locator:   l,
		extractor: e,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, 1),
		log:       log.WithComponent("navigator"),
	}, nil
}

// Run loads the listing and visits up to MaxFacilities candidates in order.
// Per-candidate failures are logged and recorded; they never abort the run.
func (c *Controller) Run(ctx context.Context) Report {
	rep := Report{Requested: c.cfg.MaxFacilities, Records: []facility.Record{}}

	c.log.Info("Navigating to listing", "url", c.cfg.ListingURL)
	if err := c.load(ctx, c.cfg.ListingURL); err != nil {
		c.log.Error("Loading listing failed", "url", c.cfg.ListingURL, "error", err)
		rep.Err = err
		return rep
	}
	WaitUntil(ctx, c.cfg.ListingSettle, func() bool { return c.locator.Ready(ctx, c.driver) })

	if len(c.locator.Locate(ctx, c.driver)) == 0 {
		current, _ := c.driver.CurrentURL(ctx)
		c.log.Warn("No facilities found, the page structure might have changed", "url", current)
		return rep
	}

	for i := 1; i <= c.cfg.MaxFacilities; i++ {
		if err := ctx.Err(); err != nil {
			c.log.Warn("Run interrupted", "processed", i-1, "error", err)
			rep.Err = err
			break
		}

		c.log.Info("Processing facility", "index", i, "of", c.cfg.MaxFacilities)
		att := c.visit(ctx, i)
		rep.Attempts = append(rep.Attempts, att)

		switch att.Status {
		case StatusAccepted:
			rep.Records = append(rep.Records, att.Record)
			c.log.Info("Extracted facility", "index", i, "name", att.Record.Name)
		case StatusRejected:
			c.log.Info("Discarding facility without a name", "index", i)
		case StatusSkipped:
			c.log.Warn("Error processing facility", "index", i, "error", att.Err)
		case StatusExhausted:
			c.log.Warn("Not enough facilities found", "index", i)
		}
		if att.Status == StatusExhausted {
			break
		}
	}

	c.log.Info("Run finished", "obtained", len(rep.Records), "requested", rep.Requested)
	return rep
}

func (c *Controller) visit(ctx context.Context, i int) Attempt {
	att := Attempt{Index: i}

	if err := c.ensureListing(ctx); err != nil {
		att.Status, att.Err = StatusSkipped, err
		return att
	}

	candidates := c.locator.Locate(ctx, c.driver)
	if len(candidates) < i {
		att.Status = StatusExhausted
		return att
	}
	candidate := candidates[i-1]

	if err := c.driver.ScrollIntoView(ctx, candidate); err != nil {
		att.Status, att.Err = StatusSkipped, fmt.Errorf("scroll: %w", err)
		return att
	}
	pause(ctx, c.cfg.ScrollSettle)

	forced, err := c.activate(ctx, candidate)
	att.Forced = forced
	if err != nil {
		att.Status, att.Err = StatusSkipped, err
		return att
	}

	WaitUntil(ctx, c.cfg.ClickSettle, func() bool {
		u, err := c.driver.CurrentURL(ctx)
		return err == nil && u != c.cfg.ListingURL
	})
	WaitUntil(ctx, c.cfg.DetailSettle, func() bool { return c.extractor.Ready(ctx, c.driver) })

	att.Record = c.extractor.Extract(ctx, c.driver)
	if att.Record.Named() {
		att.Status = StatusAccepted
	} else {
		att.Status = StatusRejected
	}
	return att
}

// ensureListing reloads the listing unless the driver is already on it.
func (c *Controller) ensureListing(ctx context.Context) error {
	current, err := c.driver.CurrentURL(ctx)
	if err == nil && current == c.cfg.ListingURL {
		return nil
	}
	c.log.Info("Navigating back to listing", "from", current)
	if err := c.load(ctx, c.cfg.ListingURL); err != nil {
		return fmt.Errorf("reload listing: %w", err)
	}
	WaitUntil(ctx, c.cfg.ReturnSettle, func() bool { return c.locator.Ready(ctx, c.driver) })
	return nil
}

// activate clicks el, retrying once with a direct click when the native
// click is intercepted or the handle went stale.
func (c *Controller) activate(ctx context.Context, el session.Element) (bool, error) {
	err := c.driver.Click(ctx, el)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, session.ErrClickIntercepted) && !errors.Is(err, session.ErrStaleElement) {
		return false, fmt.Errorf("click: %w", err)
	}

	c.log.Debug("Native click failed, dispatching direct click", "error", err)
	if ferr := c.driver.ForceClick(ctx, el); ferr != nil {
		return true, fmt.Errorf("click: %w; direct click: %w", err, ferr)
	}
	return true, nil
}

func (c *Controller) load(ctx context.Context, url string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.driver.Load(ctx, url)
}
