// Package browser is the driver layer: a narrow Page/Element abstraction
// over a live document, implemented on Playwright. Workflows never talk to
// Playwright directly; they compose these primitives through the locate,
// interact and artifact packages, which keeps every workflow testable
// against the in-memory fake in fakepage.
package browser

import (
	"context"
	"net/url"
)

// EventKind discriminates page lifecycle events.
type EventKind int

const (
	// EventNavigated fires on a route change, including history-API
	// transitions that do not reload the document.
	EventNavigated EventKind = iota

	// EventMutated fires on a batch of document mutations.
	EventMutated
)

// Event is a one-way page state change notification.
type Event struct {
	Kind EventKind
	Path string
}

// FetchResult is the outcome of a same-context refetch of a resolved URL.
type FetchResult struct {
	Status             int
	Body               []byte
	ContentType        string
	ContentDisposition string
}

// Page is a live document. Implementations must re-read current state on
// every call; callers rely on that instead of caching element references
// across polling ticks.
type Page interface {
	// Location returns the document's current URL.
	Location(ctx context.Context) (*url.URL, error)

	// Content returns the document's current outer HTML.
	Content(ctx context.Context) (string, error)

	// BodyText returns the document body's text content.
	BodyText(ctx context.Context) (string, error)

	// Query returns all elements matching the CSS selector, in document
	// order, descending into open shadow roots. An invalid selector yields
	// no matches, not an error: selector candidates routinely include
	// syntax only some engines accept.
	Query(ctx context.Context, selector string) ([]Element, error)

	// ResourceURLs snapshots the URLs of all network resources the
	// document has loaded so far (resource-timing entries).
	ResourceURLs(ctx context.Context) ([]string, error)

	// Fetch re-requests rawURL from the page's own context so that session
	// cookies are carried along.
	Fetch(ctx context.Context, rawURL string) (*FetchResult, error)

	// Events subscribes to page lifecycle notifications. The returned stop
	// function releases the subscription.
	Events(ctx context.Context) (<-chan Event, func(), error)
}

// Element is a handle to a single DOM node. Handles may go stale when the
// document mutates; callers re-resolve through Page.Query rather than
// trusting an old handle.
type Element interface {
	Attr(ctx context.Context, name string) (string, bool, error)
	TagName(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	Value(ctx context.Context) (string, error)

	// Visible reports whether the rendered bounding box has non-zero width
	// and height at evaluation time.
	Visible(ctx context.Context) (bool, error)
	Disabled(ctx context.Context) (bool, error)

	Matches(ctx context.Context, selector string) (bool, error)

	// Closest walks up to the nearest ancestor (or self) matching selector.
	// Returns nil, nil when none exists.
	Closest(ctx context.Context, selector string) (Element, error)

	ScrollIntoView(ctx context.Context) error
	Focus(ctx context.Context) error

	// DispatchClickSequence dispatches the full synthetic pointer/mouse
	// sequence (pointerdown, mousedown, pointerup, mouseup, click) at the
	// element's visual center.
	DispatchClickSequence(ctx context.Context) error

	// NativeActivate invokes the element's native activation behavior
	// (element.click()). The interact layer withholds this for file-picker
	// inputs, where browsers require a genuine user gesture.
	NativeActivate(ctx context.Context) error

	// PasteInsert clears the field and inserts text through a synthetic
	// paste path. Returns true when the field's value reflects text
	// afterwards.
	PasteInsert(ctx context.Context, text string) (bool, error)

	// SetNativeValue assigns text through the element's inherited value
	// setter, bypassing per-instance shadowing, then dispatches input.
	SetNativeValue(ctx context.Context, text string) error

	DispatchChange(ctx context.Context) error
	SetChecked(ctx context.Context, checked bool) error

	// SelectOptionByLabel selects the <select> option whose label folds to
	// a match of label. Returns false when no option matches.
	SelectOptionByLabel(ctx context.Context, label string) (bool, error)

	// Scrollable reports whether the element can scroll vertically.
	Scrollable(ctx context.Context) (bool, error)

	// ScrollToBottom scrolls the element's own scroll area to its end,
	// forcing lazy-loaded list content to materialize.
	ScrollToBottom(ctx context.Context) error
}
