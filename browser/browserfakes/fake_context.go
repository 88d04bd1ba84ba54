package browserfakes

import (
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/eduassist/portalsync/browser"
	"github.com/pkg/errors"
)

var _ browser.Context = (*FakeContext)(nil)
var _ browser.Launcher = (*FakeLauncher)(nil)

// FakeContext is a scripted browser.Context. Tests preload pages and
// redirects, then assert on the fills and clicks the code under test
// performed.
type FakeContext struct {
	lock sync.Mutex

	// Pages maps URL -> rendered HTML served on navigation.
	Pages map[string]string

	// Redirects maps a navigated URL to the URL the page ends up on,
	// emulating login redirects and SSO launch chains.
	Redirects map[string]string

	// ClickNavigates maps a clicked selector to the URL the click lands
	// on (form submits).
	ClickNavigates map[string]string

	// NavigateErrs injects failures for specific URLs.
	NavigateErrs map[string]error

	current  string
	Filled   map[string]string
	Clicked  []string
	Derived  []*FakeContext
	IsClosed bool
}

func NewFakeContext() *FakeContext {
	return &FakeContext{
		Pages:          map[string]string{},
		Redirects:      map[string]string{},
		ClickNavigates: map[string]string{},
		NavigateErrs:   map[string]error{},
		Filled:         map[string]string{},
	}
}

// SetPage scripts the HTML served at a URL.
func (fc *FakeContext) SetPage(url, html string) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.Pages[url] = html
}

func (fc *FakeContext) Navigate(_ context.Context, url string) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()

	if err, ok := fc.NavigateErrs[url]; ok {
		return err
	}
	if final, ok := fc.Redirects[url]; ok {
		url = final
	}
	fc.current = url
	return nil
}

func (fc *FakeContext) WaitReady(ctx context.Context) error {
	return ctx.Err()
}

func (fc *FakeContext) Fill(_ context.Context, selector, value string) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()

	ok, err := fc.matches(selector)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("fake: no element matches %q", selector)
	}
	fc.Filled[selector] = value
	return nil
}

func (fc *FakeContext) Click(_ context.Context, selector string) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()

	ok, err := fc.matches(selector)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("fake: no element matches %q", selector)
	}
	fc.Clicked = append(fc.Clicked, selector)
	if url, ok := fc.ClickNavigates[selector]; ok {
		fc.current = url
	}
	return nil
}

func (fc *FakeContext) Exists(_ context.Context, selector string) (bool, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.matches(selector)
}

func (fc *FakeContext) Text(_ context.Context, selector string) (string, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()

	doc, err := fc.doc()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find(selector).First().Text()), nil
}

func (fc *FakeContext) HTML(_ context.Context) (string, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.Pages[fc.current], nil
}

func (fc *FakeContext) Location(_ context.Context) (string, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.current, nil
}

func (fc *FakeContext) Derive(_ context.Context) (browser.Context, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()

	// Derived pages share the scripted world (same cookie jar).
	child := &FakeContext{
		Pages:          fc.Pages,
		Redirects:      fc.Redirects,
		ClickNavigates: fc.ClickNavigates,
		NavigateErrs:   fc.NavigateErrs,
		Filled:         map[string]string{},
	}
	fc.Derived = append(fc.Derived, child)
	return child, nil
}

func (fc *FakeContext) Close() error {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.IsClosed = true
	return nil
}

// CurrentURL exposes the page location to tests without a context.
func (fc *FakeContext) CurrentURL() string {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.current
}

func (fc *FakeContext) doc() (*goquery.Document, error) {
	html := fc.Pages[fc.current]
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (fc *FakeContext) matches(selector string) (bool, error) {
	doc, err := fc.doc()
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

// FakeLauncher hands out pre-built fake contexts in order, then empty
// ones.
type FakeLauncher struct {
	lock     sync.Mutex
	Prepared []*FakeContext
	Launched []*FakeContext
	Err      error
}

func NewFakeLauncher(prepared ...*FakeContext) *FakeLauncher {
	return &FakeLauncher{Prepared: prepared}
}

func (fl *FakeLauncher) NewContext(context.Context) (browser.Context, error) {
	fl.lock.Lock()
	defer fl.lock.Unlock()

	if fl.Err != nil {
		return nil, fl.Err
	}
	var fc *FakeContext
	if len(fl.Prepared) > 0 {
		fc = fl.Prepared[0]
		fl.Prepared = fl.Prepared[1:]
	} else {
		fc = NewFakeContext()
	}
	fl.Launched = append(fl.Launched, fc)
	return fc, nil
}
