package expense

import (
	"context"
	"time"

	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/interact"
	"github.com/billfetch/billfetch/pkg/locate"
	"github.com/billfetch/billfetch/pkg/textmatch"
	"github.com/billfetch/billfetch/pkg/wait"
)

// expenseTypeWrapperSelectors resolve the clickable shell around the
// expense-type input; clicking the shell opens the dropdown overlay.
var expenseTypeWrapperSelectors = []string{
	"[data-testid='label-Expense-type']",
	"[data-testid='expense-type-form']",
}

// categoryOptionSelector is the scan set for dropdown options. The overlay
// renders options as plain divs as often as role='option' nodes.
const categoryOptionSelector = "[role='option'],li,button,div,span"

// categoryLabels returns the configured category synonyms, locale variants
// in preference order.
func (w *Workflow) categoryLabels() []string {
	if len(w.prof.CategoryLabels) > 0 {
		return w.prof.CategoryLabels
	}
	return []string{"work from home", "télétravail"}
}

// matchesCategory reports whether text names the wanted category: the
// explicit target first, then any configured locale synonym.
func (w *Workflow) matchesCategory(text, target string) bool {
	if target != "" && textmatch.ContainsFold(text, target) {
		return true
	}
	for _, label := range w.categoryLabels() {
		if textmatch.ContainsFold(text, label) {
			return true
		}
	}
	return false
}

// ensureCategorySelected drives the searchable expense-type dropdown until
// its input reflects the wanted category: open the overlay, scroll its
// option list to the end so lazy-loaded options materialize, type the label
// as a filter query, then click the best text match. Reports true when the
// input's value names the category afterwards.
func (w *Workflow) ensureCategorySelected(ctx context.Context, label string) (bool, error) {
	input, err := locate.Pick(ctx, w.page, w.prof.TransactionForm.ExpenseType)
	if err != nil || input == nil {
		return false, err
	}

	current, err := input.Value(ctx)
	if err != nil {
		return false, err
	}
	if w.matchesCategory(current, label) {
		return true, nil
	}

	w.openCategoryDropdown(ctx, input)
	wait.Sleep(ctx, 200*time.Millisecond)
	w.scrollCategoryListToEnd(ctx)

	interact.SetValue(ctx, input, label, w.log)

	option, ok, err := wait.Until(ctx, w.t.CategoryOption, 250*time.Millisecond,
		func(ctx context.Context) (browser.Element, bool, error) {
			el, err := w.findCategoryOption(ctx, label)
			return el, el != nil, err
		})
	if err != nil || !ok {
		return false, err
	}
	interact.Click(ctx, option, w.log)
	wait.Sleep(ctx, w.t.ShortSettle)

	// Re-resolve the input: the overlay click can replace the node.
	input, err = locate.Pick(ctx, w.page, w.prof.TransactionForm.ExpenseType)
	if err != nil || input == nil {
		return false, err
	}
	updated, err := input.Value(ctx)
	if err != nil {
		return false, err
	}
	return w.matchesCategory(updated, label), nil
}

// selectCategoryByLabel is the looser post-upload selection pass: reopen
// the dropdown on every tick and click the first matching option, without
// typing a filter query.
func (w *Workflow) selectCategoryByLabel(ctx context.Context, label string) (bool, error) {
	_, ok, err := wait.Until(ctx, w.t.CategorySelect, 300*time.Millisecond,
		func(ctx context.Context) (struct{}, bool, error) {
			input, err := locate.Pick(ctx, w.page, w.prof.TransactionForm.ExpenseType)
			if err != nil {
				return struct{}{}, false, err
			}
			if input == nil {
				return struct{}{}, false, nil
			}

			interact.Click(ctx, input, w.log)
			if err := input.Focus(ctx); err != nil {
				w.log.Debug("expense type focus failed")
			}
			wait.Sleep(ctx, 200*time.Millisecond)

			option, err := w.findCategoryOption(ctx, label)
			if err != nil {
				return struct{}{}, false, err
			}
			if option == nil {
				return struct{}{}, false, nil
			}
			interact.Click(ctx, option, w.log)
			return struct{}{}, true, nil
		})
	return ok, err
}

func (w *Workflow) openCategoryDropdown(ctx context.Context, input browser.Element) {
	wrapper, err := locate.Pick(ctx, w.page, expenseTypeWrapperSelectors)
	if err != nil || wrapper == nil {
		wrapper = input
	}
	interact.Click(ctx, wrapper, w.log)
	if err := input.Focus(ctx); err != nil {
		w.log.Debug("expense type focus failed")
	}
}

// scrollCategoryListToEnd finds the overlay's scrollable option container
// and pins it to the bottom twice, giving lazy loading a chance to append.
func (w *Workflow) scrollCategoryListToEnd(ctx context.Context) bool {
	scroller, ok, err := wait.Until(ctx, w.t.CategoryScroll, 150*time.Millisecond,
		func(ctx context.Context) (browser.Element, bool, error) {
			el, err := w.findCategoryScroller(ctx)
			return el, el != nil, err
		})
	if err != nil || !ok {
		return false
	}
	if err := scroller.ScrollToBottom(ctx); err != nil {
		return false
	}
	wait.Sleep(ctx, 150*time.Millisecond)
	if err := scroller.ScrollToBottom(ctx); err != nil {
		return false
	}
	return true
}

func (w *Workflow) findCategoryScroller(ctx context.Context) (browser.Element, error) {
	elements, err := w.page.Query(ctx, "*")
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
		scrollable, err := el.Scrollable(ctx)
		if err != nil {
			return nil, err
		}
		if scrollable {
			return el, nil
		}
	}
	return nil, nil
}

// findCategoryOption scans the overlay for a visible option whose folded
// text names the category. Very short and very long texts are skipped so
// container nodes whose concatenated text happens to match do not win.
func (w *Workflow) findCategoryOption(ctx context.Context, label string) (browser.Element, error) {
	elements, err := w.page.Query(ctx, categoryOptionSelector)
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
		folded := textmatch.Fold(text)
		if len(folded) < 2 || len(folded) > 80 {
			continue
		}
		if w.matchesCategory(folded, label) {
			return el, nil
		}
	}
	return nil, nil
}
