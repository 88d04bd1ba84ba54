// Package browser abstracts the headless-browser engine behind the
// portal drivers and the extractor. Drivers script logins against it
// and the extractor reads rendered DOM through it; tests substitute a
// scripted fake.
package browser

import "context"

// Context is one live browser page with its cookie jar and rendered
// state. A Context is exclusively owned by the session it was created
// for and is not safe for concurrent use; the session store serializes
// access.
type Context interface {
	// Navigate loads the given URL and returns once navigation commits.
	Navigate(ctx context.Context, url string) error

	// WaitReady blocks until dynamic content has settled. Portals render
	// assignment lists client-side, so callers must WaitReady before
	// reading the DOM.
	WaitReady(ctx context.Context) error

	// Fill sets the value of the first element matching selector.
	Fill(ctx context.Context, selector, value string) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// Exists reports whether any element matches selector.
	Exists(ctx context.Context, selector string) (bool, error)

	// Text returns the text content of the first element matching
	// selector, or "" when nothing matches.
	Text(ctx context.Context, selector string) (string, error)

	// HTML returns the current rendered document.
	HTML(ctx context.Context) (string, error)

	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)

	// Derive opens a fresh page sharing this page's cookies and storage.
	// This is the SSO hand-off primitive: a Clever-launched application
	// keeps the root portal's authenticated state without a second login.
	Derive(ctx context.Context) (Context, error)

	// Close releases the page. The session store calls this on
	// invalidation; nothing else should.
	Close() error
}

// Launcher creates browser contexts. One Launcher fronts one browser
// process shared by all sessions.
type Launcher interface {
	NewContext(ctx context.Context) (Context, error)
}
