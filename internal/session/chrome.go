package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

const (
	jsScrollIntoView = `function() { this.scrollIntoView(true); }`
	jsClick          = `function() { this.click(); }`
	jsInnerText      = `function() { return this.innerText || this.textContent || ""; }`
	// Reports whether the element itself would receive a click at its centre.
	jsHitTest = `function() {
		const r = this.getBoundingClientRect();
		const top = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
		return top !== null && (top === this || this.contains(top));
	}`
)

// ChromeOptions configures the browser launched by NewChrome.
type ChromeOptions struct {
	Headless     bool
	ExecPath     string
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	// OpTimeout bounds every single browser round trip.
	OpTimeout time.Duration
}

// Chrome is a Driver backed by a headless Chromium controlled over the
// DevTools protocol.
type Chrome struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opTimeout   time.Duration

	mu  sync.Mutex
	gen uint64
}

// NewChrome launches a browser and opens a tab with automation markers hidden.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox, // Running as root requires this
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
	)
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	c := &Chrome{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		opTimeout:   opts.OpTimeout,
	}
	if c.opTimeout <= 0 {
		c.opTimeout = 30 * time.Second
	}

	// The first Run starts the browser.
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
		return err
	}))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return c, nil
}

// run executes actions on the tab, bounded by the op timeout and by ctx.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.ctx, c.opTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Chrome) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Chrome) advance() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
}

func (c *Chrome) node(el Element) (*cdp.Node, error) {
	n, ok := el.node.(*cdp.Node)
	if !ok || el.gen != c.generation() {
		return nil, ErrStaleElement
	}
	return n, nil
}

func (c *Chrome) Load(ctx context.Context, url string) error {
	c.advance()
	err := c.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	var by chromedp.QueryOption
	switch sel.By {
	case ByCSS:
		by = chromedp.ByQueryAll
	case ByXPath:
		by = chromedp.BySearch
	default:
		return nil, fmt.Errorf("unsupported selector %s", sel)
	}

	gen := c.generation()
	var nodes []*cdp.Node
	if err := c.run(ctx, chromedp.Nodes(sel.Value, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("find %s: %w", sel, err)
	}

	elems := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, Element{gen: gen, node: n})
	}
	return elems, nil
}

func (c *Chrome) Text(ctx context.Context, el Element) (string, error) {
	n, err := c.node(el)
	if err != nil {
		return "", err
	}
	var text string
	if err := c.run(ctx, callOnNode(n, jsInnerText, &text)); err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(text), nil
}

func (c *Chrome) RawHTML(ctx context.Context) (string, error) {
	var raw string
	if err := c.run(ctx, chromedp.OuterHTML("html", &raw, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return raw, nil
}

func (c *Chrome) ScrollIntoView(ctx context.Context, el Element) error {
	n, err := c.node(el)
	if err != nil {
		return err
	}
	return classify(c.run(ctx, callOnNode(n, jsScrollIntoView, nil)))
}

func (c *Chrome) Click(ctx context.Context, el Element) error {
	n, err := c.node(el)
	if err != nil {
		return err
	}
	var hit bool
	if err := c.run(ctx, callOnNode(n, jsHitTest, &hit)); err != nil {
		return classify(err)
	}
	if !hit {
		return ErrClickIntercepted
	}
	if err := c.run(ctx, chromedp.MouseClickNode(n)); err != nil {
		return classify(err)
	}
	c.advance()
	return nil
}

func (c *Chrome) ForceClick(ctx context.Context, el Element) error {
	n, err := c.node(el)
	if err != nil {
		return err
	}
	if err := c.run(ctx, callOnNode(n, jsClick, nil)); err != nil {
		return classify(err)
	}
	c.advance()
	return nil
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := c.run(ctx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return u, nil
}

// Close shuts the tab and then the browser process.
func (c *Chrome) Close() error {
	err := chromedp.Cancel(c.ctx)
	c.cancelTab()
	c.cancelAlloc()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// callOnNode runs fn with this bound to the node, decoding its return value
// into res when res is non-nil.
func callOnNode(n *cdp.Node, fn string, res any) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(n.BackendNodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		ret, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if res == nil || ret == nil || len(ret.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(ret.Value), res)
	}
}

// classify maps protocol errors about vanished nodes to ErrStaleElement.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "node with given id") || strings.Contains(msg, "no node") {
		return fmt.Errorf("%w: %v", ErrStaleElement, err)
	}
	return err
}
