// Package locate implements element resolution over an unreliable document:
// ordered selector candidates filtered by visibility, with free-text
// matching as the fallback when markup churns. Class names and attributes
// change more often than visible label text, so selector candidates are the
// fast path and folded-text search is the defense.
package locate

import (
	"context"
	"time"

	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/textmatch"
	"github.com/billfetch/billfetch/pkg/wait"
)

// ClickableSelector matches elements that activate on click.
const ClickableSelector = "button,a,[role='button']"

// TextBearingSelector is the default scan set for free-text matching.
const TextBearingSelector = "button,a,div,span,label,h1,h2,h3,p"

// Pick returns the first visible element matching any candidate, trying
// candidates in declared order. Returns nil when nothing matches.
func Pick(ctx context.Context, page browser.Page, candidates []string) (browser.Element, error) {
	return pick(ctx, page, candidates, false)
}

// PickHidden is Pick without the visibility filter. Used to read values out
// of temporarily invisible fields.
func PickHidden(ctx context.Context, page browser.Page, candidates []string) (browser.Element, error) {
	return pick(ctx, page, candidates, true)
}

func pick(ctx context.Context, page browser.Page, candidates []string, allowHidden bool) (browser.Element, error) {
	for _, selector := range candidates {
		elements, err := page.Query(ctx, selector)
		if err != nil {
			return nil, err
		}
		for _, el := range elements {
			if allowHidden {
				return el, nil
			}
			visible, err := el.Visible(ctx)
			if err != nil {
				return nil, err
			}
			if visible {
				return el, nil
			}
		}
	}
	return nil, nil
}

// PickAll returns the visible matches of the first candidate that yields
// any, preserving document order.
func PickAll(ctx context.Context, page browser.Page, candidates []string) ([]browser.Element, error) {
	for _, selector := range candidates {
		elements, err := page.Query(ctx, selector)
		if err != nil {
			return nil, err
		}
		var visible []browser.Element
		for _, el := range elements {
			ok, err := el.Visible(ctx)
			if err != nil {
				return nil, err
			}
			if ok {
				visible = append(visible, el)
			}
		}
		if len(visible) > 0 {
			return visible, nil
		}
	}
	return nil, nil
}

// ScopeUnder prefixes each candidate with a scope selector unless the
// candidate already carries it. Used to constrain a candidate list to a
// panel, the way invoice CTAs are scoped to their tab panel.
func ScopeUnder(scope string, candidates []string) []string {
	scoped := make([]string, 0, len(candidates))
	for _, selector := range candidates {
		if len(selector) >= len(scope) && selector[:len(scope)] == scope {
			scoped = append(scoped, selector)
			continue
		}
		scoped = append(scoped, scope+" "+selector)
	}
	return scoped
}

// WaitVisible polls Pick until a candidate resolves or timeout elapses.
// A timeout yields nil, false with no error.
func WaitVisible(ctx context.Context, page browser.Page, candidates []string, timeout time.Duration) (browser.Element, bool, error) {
	return wait.Until(ctx, timeout, wait.DefaultInterval, func(ctx context.Context) (browser.Element, bool, error) {
		el, err := Pick(ctx, page, candidates)
		if err != nil {
			return nil, false, err
		}
		return el, el != nil, nil
	})
}

// FindByText scans scope-matched elements for one whose folded text contains
// the folded phrase. Visibility is required.
func FindByText(ctx context.Context, page browser.Page, phrase, scope string) (browser.Element, error) {
	if scope == "" {
		scope = TextBearingSelector
	}
	elements, err := page.Query(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, el := range elements {
		visible, err := el.Visible(ctx)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if textmatch.ContainsFold(text, phrase) {
			return el, nil
		}
	}
	return nil, nil
}

// FindClickableByText resolves phrase to a clickable target: the free-text
// match itself when interactive, otherwise its nearest interactive ancestor,
// otherwise the matched node.
func FindClickableByText(ctx context.Context, page browser.Page, phrase string) (browser.Element, error) {
	el, err := FindByText(ctx, page, phrase, "")
	if err != nil || el == nil {
		return nil, err
	}
	return ClickableTarget(ctx, el)
}

// WaitForText polls FindClickableByText with a selector fallback: an element
// matched by candidates also wins if its text carries the phrase.
func WaitForText(ctx context.Context, page browser.Page, phrase string, candidates []string, timeout time.Duration) (browser.Element, bool, error) {
	return wait.Until(ctx, timeout, wait.DefaultInterval, func(ctx context.Context) (browser.Element, bool, error) {
		byText, err := FindClickableByText(ctx, page, phrase)
		if err != nil {
			return nil, false, err
		}
		if byText != nil {
			return byText, true, nil
		}
		bySelector, err := Pick(ctx, page, candidates)
		if err != nil {
			return nil, false, err
		}
		if bySelector != nil {
			text, err := bySelector.Text(ctx)
			if err != nil {
				return nil, false, err
			}
			if textmatch.ContainsFold(text, phrase) {
				target, err := ClickableTarget(ctx, bySelector)
				if err != nil {
					return nil, false, err
				}
				return target, true, nil
			}
		}
		return nil, false, nil
	})
}

// ClickableTarget returns el when it is itself interactive, else its nearest
// interactive ancestor, else el unchanged.
func ClickableTarget(ctx context.Context, el browser.Element) (browser.Element, error) {
	interactive, err := el.Matches(ctx, ClickableSelector)
	if err != nil {
		return nil, err
	}
	if interactive {
		return el, nil
	}
	ancestor, err := el.Closest(ctx, ClickableSelector)
	if err != nil {
		return nil, err
	}
	if ancestor != nil {
		return ancestor, nil
	}
	return el, nil
}
