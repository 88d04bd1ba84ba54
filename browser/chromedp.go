package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
)

// settleWait approximates the original network-idle wait: portals load
// assignment lists well after the document is ready.
const defaultSettleWait = 3 * time.Second

var _ Launcher = (*Chrome)(nil)
var _ Context = (*chromePage)(nil)

// Chrome launches Chromium pages via chromedp. All pages share one
// allocator (one browser process).
type Chrome struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	settleWait  time.Duration
	headless    bool
}

// ChromeOption configures the Chrome launcher.
type ChromeOption func(*Chrome)

// WithSettleWait overrides how long WaitReady lets dynamic content
// settle after the document is visible.
func WithSettleWait(d time.Duration) ChromeOption {
	return func(c *Chrome) { c.settleWait = d }
}

// WithHeadless toggles headless mode. Headful runs are useful when
// portal login flows need watching.
func WithHeadless(headless bool) ChromeOption {
	return func(c *Chrome) { c.headless = headless }
}

// NewChrome starts a Chromium allocator. The no-sandbox flags match
// what the education portals tolerate inside containers.
func NewChrome(ctx context.Context, options ...ChromeOption) *Chrome {
	c := &Chrome{
		settleWait: defaultSettleWait,
		headless:   true,
	}
	for _, opt := range options {
		opt(c)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	c.allocCtx, c.cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	return c
}

// NewContext opens a fresh page with an empty cookie jar.
func (c *Chrome) NewContext(ctx context.Context) (Context, error) {
	pageCtx, cancel := chromedp.NewContext(c.allocCtx)

	// Force browser startup now so failures surface at session creation
	// rather than on the first navigation.
	if err := run(ctx, pageCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, errors.Wrap(err, "[Chrome.NewContext] browser startup")
	}

	return &chromePage{ctx: pageCtx, cancel: cancel, settleWait: c.settleWait}, nil
}

// Close shuts the browser process down.
func (c *Chrome) Close() error {
	c.cancelAlloc()
	return nil
}

type chromePage struct {
	ctx        context.Context
	cancel     context.CancelFunc
	settleWait time.Duration
}

// run executes chromedp actions on the page while honouring the
// caller's context, which carries the per-operation timeout.
func run(callerCtx, pageCtx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(pageCtx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case <-callerCtx.Done():
		return callerCtx.Err()
	case err := <-done:
		return err
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return run(ctx, p.ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitReady(ctx context.Context) error {
	return run(ctx, p.ctx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(p.settleWait),
	)
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	return run(ctx, p.ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	)
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return run(ctx, p.ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes int
	err := run(ctx, p.ctx, chromedp.Evaluate(
		`document.querySelectorAll(`+jsString(selector)+`).length`, &nodes,
	))
	if err != nil {
		return false, err
	}
	return nodes > 0, nil
}

func (p *chromePage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := run(ctx, p.ctx, chromedp.Evaluate(
		`(document.querySelector(`+jsString(selector)+`)?.innerText ?? "")`, &text,
	))
	if err != nil {
		return "", err
	}
	return text, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := run(ctx, p.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := run(ctx, p.ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (p *chromePage) Derive(ctx context.Context) (Context, error) {
	// A child of the page's own context opens a new tab inside the same
	// browser context, sharing cookies and storage.
	childCtx, cancel := chromedp.NewContext(p.ctx)
	if err := run(ctx, childCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, errors.Wrap(err, "[chromePage.Derive] open tab")
	}
	return &chromePage{ctx: childCtx, cancel: cancel, settleWait: p.settleWait}, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// jsString quotes a selector for inline evaluation.
func jsString(s string) string {
	out := make([]rune, 0, len(s)+2)
	out = append(out, '"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			out = append(out, '\\', r)
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, r)
		}
	}
	return string(append(out, '"'))
}
