package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Static is an in-memory Driver over a fixed set of HTML pages keyed by URL.
// It is used for offline extraction and as a deterministic browser in tests.
type Static struct {
	mu          sync.Mutex
	pages       map[string]string
	intercepted []cascadia.Selector

	url    string
	root   *html.Node
	doc    *goquery.Document
	gen    uint64
	visits []string
	forced int
	closed bool
}

// StaticOption configures a Static driver.
type StaticOption func(*Static) error

// WithInterceptedClicks makes Click fail with ErrClickIntercepted on elements
// matching any of the given CSS selectors. ForceClick still succeeds.
func WithInterceptedClicks(selectors ...string) StaticOption {
	return func(s *Static) error {
		for _, sel := range selectors {
			m, err := cascadia.Compile(sel)
			if err != nil {
				return fmt.Errorf("compile intercept selector %q: %w", sel, err)
			}
			s.intercepted = append(s.intercepted, m)
		}
		return nil
	}
}

// NewStatic creates a Static driver serving pages.
func NewStatic(pages map[string]string, opts ...StaticOption) (*Static, error) {
	s := &Static{pages: make(map[string]string, len(pages))}
	for u, body := range pages {
		s.pages[u] = body
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Visits returns every URL loaded so far, in order.
func (s *Static) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

// ForcedClicks returns how many ForceClick calls navigated.
func (s *Static) ForcedClicks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced
}

func (s *Static) Load(ctx context.Context, u string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(u)
}

func (s *Static) load(u string) error {
	body, ok := s.pages[u]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotFound, u)
	}
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", u, err)
	}
	s.root = root
	s.doc = goquery.NewDocumentFromNode(root)
	s.url = u
	s.gen++
	s.visits = append(s.visits, u)
	return nil
}

func (s *Static) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return nil, ErrNoDocument
	}

	var nodes []*html.Node
	switch sel.By {
	case ByCSS:
		m, err := cascadia.Compile(sel.Value)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", sel, err)
		}
		nodes = s.doc.FindMatcher(m).Nodes
	case ByXPath:
		found, err := htmlquery.QueryAll(s.root, sel.Value)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", sel, err)
		}
		nodes = found
	default:
		return nil, fmt.Errorf("unsupported selector %s", sel)
	}

	elems := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, Element{gen: s.gen, node: n})
	}
	return elems, nil
}

func (s *Static) Text(ctx context.Context, el Element) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.resolve(el)
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(goquery.NewDocumentFromNode(n).Text()), " "), nil
}

func (s *Static) RawHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return "", ErrNoDocument
	}
	return s.doc.Html()
}

func (s *Static) ScrollIntoView(ctx context.Context, el Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.resolve(el)
	return err
}

func (s *Static) Click(ctx context.Context, el Element) error {
	return s.click(ctx, el, false)
}

func (s *Static) ForceClick(ctx context.Context, el Element) error {
	return s.click(ctx, el, true)
}

func (s *Static) click(ctx context.Context, el Element, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.resolve(el)
	if err != nil {
		return err
	}
	if !force {
		for _, m := range s.intercepted {
			if m.Match(n) {
				return ErrClickIntercepted
			}
		}
	}

	href, ok := linkOf(n)
	if !ok {
		return ErrNoLink
	}
	target, err := s.absolute(href)
	if err != nil {
		return err
	}
	if err := s.load(target); err != nil {
		return err
	}
	if force {
		s.forced++
	}
	return nil
}

func (s *Static) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.root = nil
	s.doc = nil
	return nil
}

// Closed reports whether Close has been called.
func (s *Static) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Static) resolve(el Element) (*html.Node, error) {
	n, ok := el.node.(*html.Node)
	if !ok || s.root == nil || el.gen != s.gen {
		return nil, ErrStaleElement
	}
	return n, nil
}

func (s *Static) absolute(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", href, err)
	}
	base, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse current url %q: %w", s.url, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// linkOf finds where a click on n would lead: n itself, its enclosing
// anchor, or the first link inside it.
func linkOf(n *html.Node) (string, bool) {
	for p := n; p != nil; p = p.Parent {
		if href, ok := hrefOf(p); ok {
			return href, true
		}
	}
	sel := goquery.NewDocumentFromNode(n).Find("a[href], [data-href]").First()
	if sel.Length() == 0 {
		return "", false
	}
	return hrefOf(sel.Nodes[0])
}

func hrefOf(n *html.Node) (string, bool) {
	if n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if (a.Key == "href" && n.Data == "a") || a.Key == "data-href" {
			if v := strings.TrimSpace(a.Val); v != "" && !strings.HasPrefix(v, "#") {
				return v, true
			}
		}
	}
	return "", false
}
