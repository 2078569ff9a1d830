package expense

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/interact"
	"github.com/billfetch/billfetch/pkg/locate"
	"github.com/billfetch/billfetch/pkg/wait"
)

// customDescriptionSelector is the composer's free-form description field.
// Only the on-form autofill targets it; the configured description
// candidates cover the upload surface.
const customDescriptionSelector = "[data-testid='custom-field-customField3'] input"

// OnTransactionForm reports whether path is the transaction composer route.
func OnTransactionForm(path string) bool {
	return strings.Contains(path, transactionFormPath)
}

// Watch consumes page lifecycle events and re-arms the composer autofill
// whenever the application transitions into the transaction-form route. The
// composer can appear through a history-API transition or through mutation
// alone, so both event kinds are handled. Blocks until ctx is done or the
// event stream closes.
func (w *Workflow) Watch(ctx context.Context) error {
	events, stop, err := w.page.Events(ctx)
	if err != nil {
		return err
	}
	defer stop()

	// The document may already sit on the form when watching starts.
	if loc, err := w.page.Location(ctx); err == nil && OnTransactionForm(loc.Path) {
		w.AutofillOnForm(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case browser.EventNavigated:
				if OnTransactionForm(ev.Path) {
					// A fresh route supersedes any stale attempt.
					w.guard.Reset()
					w.AutofillOnForm(ctx)
				}
			case browser.EventMutated:
				if w.guard.Done() {
					continue
				}
				loc, err := w.page.Location(ctx)
				if err != nil {
					w.log.Debug("location read failed", zap.Error(err))
					continue
				}
				if OnTransactionForm(loc.Path) {
					w.AutofillOnForm(ctx)
				}
			}
		}
	}
}

// AutofillOnForm runs the guarded on-form autofill: select the expense
// category, then write the standing description. The guard admits at most
// one attempt at a time and suppresses re-runs after completion; a timed-out
// attempt releases its claim so a later trigger may retry.
func (w *Workflow) AutofillOnForm(ctx context.Context) bool {
	if !w.guard.TryStart() {
		return w.guard.Done()
	}

	_, ok, err := wait.Until(ctx, w.t.AutofillWindow, w.t.AutofillTick,
		func(ctx context.Context) (struct{}, bool, error) {
			done, err := w.tryAutofill(ctx)
			return struct{}{}, done, err
		})
	if err != nil || !ok {
		if err != nil {
			w.log.Debug("on-form autofill aborted", zap.Error(err))
		}
		w.guard.Reset()
		return false
	}
	w.guard.MarkDone()
	w.log.Debug("on-form autofill completed")
	return true
}

// tryAutofill is one autofill attempt: both steps must land in order.
func (w *Workflow) tryAutofill(ctx context.Context) (bool, error) {
	selected, err := w.ensureCategorySelected(ctx, w.categoryLabels()[0])
	if err != nil || !selected {
		return false, err
	}

	input, ok, err := wait.Until(ctx, w.t.DescriptionOnForm, 300*time.Millisecond,
		func(ctx context.Context) (browser.Element, bool, error) {
			el, err := locate.PickHidden(ctx, w.page, []string{customDescriptionSelector})
			return el, el != nil, err
		})
	if err != nil || !ok {
		return false, err
	}
	interact.SetValue(ctx, input, uploadDescriptionText, w.log)
	return true, nil
}
