// Package artifact discovers a downloadable document's URL from multiple
// candidate sources and derives a canonical, human-recognizable filename per
// provider convention.
package artifact

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/wait"
)

// DocumentPattern matches document-like resource URLs.
var DocumentPattern = regexp.MustCompile(`(?i)pdf|download|facture`)

var (
	urlAttrs       = []string{"href", "data-href", "data-url"}
	scriptAbsURLRe = regexp.MustCompile(`(?i)https?://[^"'\s]+(?:\.pdf|download[^"'\s]*)`)
	scriptRelURLRe = regexp.MustCompile(`(?i)/[^"'\s]*(?:\.pdf|download[^"'\s]*)`)
)

// SnapshotResources captures the set of resource URLs the document has
// loaded, taken immediately before a triggering click so new loads can be
// diffed out afterwards.
func SnapshotResources(ctx context.Context, page browser.Page) (map[string]struct{}, error) {
	urls, err := page.ResourceURLs(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		snapshot[u] = struct{}{}
	}
	return snapshot, nil
}

// ResolveURL finds the document URL behind control, trying sources in fixed
// priority order: URL-bearing attributes on the control, the enclosing
// anchor, a page-wide scan, then network resources newly observed since the
// before snapshot. Returns "" when nothing resolves.
func ResolveURL(ctx context.Context, page browser.Page, control browser.Element, before map[string]struct{}) (string, error) {
	base, err := page.Location(ctx)
	if err != nil {
		return "", err
	}

	if control != nil {
		for _, attr := range urlAttrs {
			value, ok, err := control.Attr(ctx, attr)
			if err != nil {
				return "", err
			}
			if ok {
				if direct := normalizeURL(base, value); direct != "" {
					return direct, nil
				}
			}
		}

		anchor, err := control.Closest(ctx, "a[href]")
		if err != nil {
			return "", err
		}
		if anchor != nil {
			href, ok, err := anchor.Attr(ctx, "href")
			if err != nil {
				return "", err
			}
			if ok {
				if parent := normalizeURL(base, href); parent != "" {
					return parent, nil
				}
			}
		}
	}

	html, err := page.Content(ctx)
	if err != nil {
		return "", err
	}
	if candidate := ScanPage(html, base); candidate != "" {
		return candidate, nil
	}

	fresh, err := NewResource(ctx, page, before, DocumentPattern)
	if err != nil {
		return "", err
	}
	return fresh, nil
}

// ScanPage scans snapshot HTML for a download affordance: an anchor flagged
// as a known download link, any anchor pointing at a PDF or download path,
// and finally a regex pass over inline script text.
func ScanPage(html string, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var found string
	doc.Find("a[data-e2e='download-link'][href], a[href*='.pdf'], a[href*='download']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if candidate := normalizeURL(base, href); candidate != "" {
			found = candidate
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	var scripts strings.Builder
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		scripts.WriteString(sel.Text())
		scripts.WriteString(" ")
	})
	text := scripts.String()
	if m := scriptAbsURLRe.FindString(text); m != "" {
		return normalizeURL(base, m)
	}
	if m := scriptRelURLRe.FindString(text); m != "" {
		return normalizeURL(base, m)
	}
	return ""
}

// NewResource returns the first resource URL loaded since before that
// matches pattern, or "".
func NewResource(ctx context.Context, page browser.Page, before map[string]struct{}, pattern *regexp.Regexp) (string, error) {
	urls, err := page.ResourceURLs(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range urls {
		if _, seen := before[u]; seen {
			continue
		}
		if pattern.MatchString(u) {
			return u, nil
		}
	}
	return "", nil
}

// WaitForURL polls ResolveURL until a URL surfaces or timeout elapses.
func WaitForURL(ctx context.Context, page browser.Page, control browser.Element, before map[string]struct{}, timeout time.Duration) (string, bool, error) {
	return wait.Until(ctx, timeout, 200*time.Millisecond, func(ctx context.Context) (string, bool, error) {
		resolved, err := ResolveURL(ctx, page, control, before)
		if err != nil {
			return "", false, err
		}
		return resolved, resolved != "", nil
	})
}

// WaitForResource polls the resource-timing diff alone; used when the
// triggering control never carries a URL and only the network reveals one.
func WaitForResource(ctx context.Context, page browser.Page, before map[string]struct{}, pattern *regexp.Regexp, timeout time.Duration) (string, bool, error) {
	return wait.Until(ctx, timeout, 200*time.Millisecond, func(ctx context.Context) (string, bool, error) {
		fresh, err := NewResource(ctx, page, before, pattern)
		if err != nil {
			return "", false, err
		}
		return fresh, fresh != "", nil
	})
}

func normalizeURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	return base.ResolveReference(ref).String()
}
