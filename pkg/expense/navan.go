// Package expense drives the Navan expense tool: probing its session,
// opening the transaction composer, autofilling draft fields, and the
// receipt-upload flow that ends in a searchable expense-type dropdown.
// Navan is a single-page Angular application, so the package also ships a
// route watcher that re-arms composer autofill on history transitions.
package expense

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/artifact"
	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/interact"
	"github.com/billfetch/billfetch/pkg/locate"
	"github.com/billfetch/billfetch/pkg/profile"
	"github.com/billfetch/billfetch/pkg/textmatch"
	"github.com/billfetch/billfetch/pkg/wait"
)

const (
	transactionFormPath = "/transactions/new-redesign/"
	uploadReceiptsPath  = "/transactions/upload-receipts"
	googleSSOHost       = "accounts.google.com"

	autofillReceiptLabel  = "autofill from a receipt"
	newTransactionLabel   = "new transaction"
	createSingleTxnLabel  = "create a single transaction"
	draftTagLabel         = "draft"
	uploadDescriptionText = "monthly invoice"
)

// timings bounds every wait in the workflow. The upload surface renders
// slowly after the file lands, hence the long settles.
type timings struct {
	SessionSettle      time.Duration
	ComposerSettle     time.Duration
	MenuOpenSettle     time.Duration
	ShortSettle        time.Duration
	DirectProbe        time.Duration
	MenuButton         time.Duration
	MenuOption         time.Duration
	UploadSettle       time.Duration
	UploadEntry        time.Duration
	DescriptionPrefill time.Duration
	DateField          time.Duration
	FinalizeSettle     time.Duration
	CategorySelect     time.Duration
	CategoryOption     time.Duration
	CategoryScroll     time.Duration
	AutofillWindow     time.Duration
	AutofillTick       time.Duration
	DescriptionOnForm  time.Duration
}

func defaultTimings() timings {
	return timings{
		SessionSettle:      500 * time.Millisecond,
		ComposerSettle:     600 * time.Millisecond,
		MenuOpenSettle:     500 * time.Millisecond,
		ShortSettle:        400 * time.Millisecond,
		DirectProbe:        1500 * time.Millisecond,
		MenuButton:         15 * time.Second,
		MenuOption:         5 * time.Second,
		UploadSettle:       15 * time.Second,
		UploadEntry:        5 * time.Second,
		DescriptionPrefill: 25 * time.Second,
		DateField:          10 * time.Second,
		FinalizeSettle:     15 * time.Second,
		CategorySelect:     20 * time.Second,
		CategoryOption:     8 * time.Second,
		CategoryScroll:     3 * time.Second,
		AutofillWindow:     60 * time.Second,
		AutofillTick:       500 * time.Millisecond,
		DescriptionOnForm:  10 * time.Second,
	}
}

// Options configures a Workflow.
type Options struct {
	Page   browser.Page
	Config *profile.Config
	Log    *zap.Logger
}

// Workflow drives the expense tool on one live page.
type Workflow struct {
	page  browser.Page
	prof  profile.Profile
	log   *zap.Logger
	guard Guard
	t     timings
}

// New builds a Workflow over opts.Page using the expense tool's selector
// profile.
func New(opts Options) *Workflow {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow{
		page: opts.Page,
		prof: opts.Config.For(profile.Navan),
		log:  log.Named("navan"),
		t:    defaultTimings(),
	}
}

// CheckSession reports whether the expense tool's session is active. Login
// runs through Google SSO, which this workflow never automates.
func (w *Workflow) CheckSession(ctx context.Context) (*action.SessionResult, error) {
	wait.Sleep(ctx, w.t.SessionSettle)

	loc, err := w.page.Location(ctx)
	if err != nil {
		return nil, action.NewError(action.CodeActionFailed, "read location: %v", err)
	}
	if strings.Contains(loc.Path, "/login") || strings.Contains(loc.Hostname(), googleSSOHost) {
		return nil, action.NewError(action.CodeManualStepRequired,
			"expense tool session not active, complete Google SSO first")
	}
	return &action.SessionResult{Authenticated: true}, nil
}

// ClickNewTransaction opens the transaction composer. It prefers the direct
// "autofill from a receipt" affordance when already visible, and only falls
// back to opening the new-transaction menu when it is not.
func (w *Workflow) ClickNewTransaction(ctx context.Context) (*action.ComposerResult, error) {
	loc, err := w.page.Location(ctx)
	if err != nil {
		return nil, action.NewError(action.CodeActionFailed, "read location: %v", err)
	}
	if strings.Contains(loc.Path, uploadReceiptsPath) {
		return &action.ComposerResult{
			Clicked:                    true,
			AutofillReceiptClicked:     true,
			SkippedNewTransactionClick: true,
			DirectUploadPage:           true,
		}, nil
	}

	option, ok, err := locate.WaitForText(ctx, w.page, autofillReceiptLabel,
		w.prof.Home.AutofillFromReceipt, w.t.DirectProbe)
	if err != nil {
		return nil, err
	}
	if ok {
		interact.Click(ctx, option, w.log)
		wait.Sleep(ctx, w.t.ComposerSettle)
		return &action.ComposerResult{
			Clicked:                    true,
			AutofillReceiptClicked:     true,
			SkippedNewTransactionClick: true,
		}, nil
	}

	button, ok, err := wait.Until(ctx, w.t.MenuButton, wait.DefaultInterval,
		func(ctx context.Context) (browser.Element, bool, error) {
			el, err := w.findNewTransactionButton(ctx)
			return el, el != nil, err
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, action.NewError(action.CodeElementNotFound, "new transaction button not found")
	}
	interact.Click(ctx, button, w.log)
	wait.Sleep(ctx, w.t.MenuOpenSettle)

	option, ok, err = locate.WaitForText(ctx, w.page, autofillReceiptLabel,
		w.prof.Home.AutofillFromReceipt, w.t.MenuOption)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, action.NewError(action.CodeElementNotFound, "autofill from a receipt option not found")
	}
	interact.Click(ctx, option, w.log)
	wait.Sleep(ctx, w.t.ComposerSettle)
	return &action.ComposerResult{Clicked: true, AutofillReceiptClicked: true}, nil
}

// findNewTransactionButton resolves the exact "New transaction" button,
// scoped to the add-transaction menu when that container exists.
func (w *Workflow) findNewTransactionButton(ctx context.Context) (browser.Element, error) {
	candidates, err := locate.PickAll(ctx, w.page, w.prof.Home.NewTransaction)
	if err != nil {
		return nil, err
	}
	for _, el := range candidates {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if textmatch.ContainsFold(text, newTransactionLabel) {
			return el, nil
		}
	}
	return nil, nil
}

// AutofillTransaction fills the composer's fields from a caller-supplied
// draft. Empty draft fields are skipped rather than cleared.
func (w *Workflow) AutofillTransaction(ctx context.Context, draft *action.Draft) (*action.ComposerResult, error) {
	if draft == nil {
		return nil, action.NewError(action.CodeActionFailed, "no draft provided for transaction autofill")
	}

	form := w.prof.TransactionForm
	w.setField(ctx, form.Merchant, draft.Merchant)
	w.setField(ctx, form.Amount, formatAmount(draft.Amount))
	w.setField(ctx, form.Currency, draft.Currency)
	w.setField(ctx, form.Date, draft.TransactionDateISO)
	if draft.TaxAmount != nil {
		w.setField(ctx, form.Tax, formatAmount(*draft.TaxAmount))
	}
	w.setField(ctx, form.Description, draft.Description)
	return &action.ComposerResult{Autofilled: true}, nil
}

// UploadDocument drives the receipt-upload transaction flow after a human
// has dropped the file: click through to a single transaction, wait for the
// OCR description prefill, pin the description, apply extraction hints, and
// select the expense type.
func (w *Workflow) UploadDocument(ctx context.Context, doc *artifact.Artifact) (*action.ComposerResult, error) {
	var hints artifact.Hints
	if doc != nil && doc.Hints != nil {
		hints = *doc.Hints
	}

	wait.Sleep(ctx, w.t.UploadSettle)

	created, err := w.clickCreateSingleTransaction(ctx)
	if err != nil {
		return nil, err
	}
	if !created {
		return &action.ComposerResult{
			ManualUploadRequired: true,
			Reason:               "create_single_transaction_not_found",
			Document:             doc,
		}, nil
	}

	if err := w.waitForDescriptionPrefill(ctx); err != nil {
		return nil, err
	}
	w.setField(ctx, w.prof.TransactionForm.Description, uploadDescriptionText)

	hintsApplied, err := w.applyHints(ctx, hints)
	if err != nil {
		return nil, err
	}
	typeSelected, err := w.finalizeExpenseType(ctx, hints.ExpenseType)
	if err != nil {
		return nil, err
	}
	return &action.ComposerResult{
		Uploaded:            true,
		Clicked:             true,
		ExpenseTypeSelected: typeSelected,
		HintsApplied:        hintsApplied,
		Document:            doc,
	}, nil
}

// clickCreateSingleTransaction finds and clicks the exact "Create a single
// transaction" entry of the upload surface.
func (w *Workflow) clickCreateSingleTransaction(ctx context.Context) (bool, error) {
	button, ok, err := wait.Until(ctx, w.t.UploadEntry, 250*time.Millisecond,
		func(ctx context.Context) (browser.Element, bool, error) {
			el, err := w.findCreateSingleTransaction(ctx)
			return el, el != nil, err
		})
	if err != nil || !ok {
		return false, err
	}
	interact.Click(ctx, button, w.log)
	wait.Sleep(ctx, 250*time.Millisecond)
	return true, nil
}

func (w *Workflow) findCreateSingleTransaction(ctx context.Context) (browser.Element, error) {
	el, err := locate.Pick(ctx, w.page, w.prof.Home.CreateSingleTransaction)
	if err != nil {
		return nil, err
	}
	if el != nil {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if textmatch.EqualFold(text, createSingleTxnLabel) {
			return locate.ClickableTarget(ctx, el)
		}
	}

	el, err = locate.FindClickableByText(ctx, w.page, createSingleTxnLabel)
	if err != nil {
		return nil, err
	}
	if el != nil {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if textmatch.EqualFold(text, createSingleTxnLabel) {
			return el, nil
		}
	}

	// Label match over every button, loosest last: the entry sometimes
	// renders outside its usual container.
	buttons, err := w.page.Query(ctx, "button")
	if err != nil {
		return nil, err
	}
	for _, b := range buttons {
		text, err := b.Text(ctx)
		if err != nil {
			return nil, err
		}
		if textmatch.EqualFold(text, createSingleTxnLabel) {
			return b, nil
		}
	}
	return nil, nil
}

// waitForDescriptionPrefill blocks until the OCR pipeline has written any
// description. The field may still be hidden behind an accordion at that
// point, so visibility is not required.
func (w *Workflow) waitForDescriptionPrefill(ctx context.Context) error {
	_, _, err := wait.Until(ctx, w.t.DescriptionPrefill, 400*time.Millisecond,
		func(ctx context.Context) (struct{}, bool, error) {
			el, err := locate.PickHidden(ctx, w.page, w.prof.TransactionForm.Description)
			if err != nil || el == nil {
				return struct{}{}, false, err
			}
			value, err := el.Value(ctx)
			if err != nil {
				return struct{}{}, false, err
			}
			return struct{}{}, strings.TrimSpace(value) != "", nil
		})
	return err
}

// applyHints writes extraction hints into the composer. Only the
// transaction date is hint-driven today.
func (w *Workflow) applyHints(ctx context.Context, hints artifact.Hints) (bool, error) {
	if hints.TransactionDateISO == "" {
		return false, nil
	}
	el, ok, err := locate.WaitVisible(ctx, w.page, w.prof.TransactionForm.Date, w.t.DateField)
	if err != nil || !ok {
		return false, err
	}
	interact.SetValue(ctx, el, hints.TransactionDateISO, w.log)
	return true, nil
}

// finalizeExpenseType waits out the post-upload re-render, dismisses the
// draft tag, then selects the expense type.
func (w *Workflow) finalizeExpenseType(ctx context.Context, hint string) (bool, error) {
	wait.Sleep(ctx, w.t.FinalizeSettle)
	if err := w.clickDraftTag(ctx); err != nil {
		return false, err
	}
	wait.Sleep(ctx, w.t.ShortSettle)

	label := hint
	if label == "" {
		label = w.categoryLabels()[0]
	}
	return w.selectCategoryByLabel(ctx, label)
}

func (w *Workflow) clickDraftTag(ctx context.Context) error {
	el, err := locate.Pick(ctx, w.page, w.prof.TransactionForm.DraftTag)
	if err != nil {
		return err
	}
	if el != nil {
		text, err := el.Text(ctx)
		if err != nil {
			return err
		}
		if textmatch.EqualFold(text, draftTagLabel) {
			if container, err := el.Closest(ctx, "div.tag-container"); err == nil && container != nil {
				el = container
			}
			interact.Click(ctx, el, w.log)
			return nil
		}
	}

	el, err = locate.FindByText(ctx, w.page, draftTagLabel, "div,span")
	if err != nil {
		return err
	}
	if el != nil {
		text, err := el.Text(ctx)
		if err != nil {
			return err
		}
		if textmatch.EqualFold(text, draftTagLabel) {
			interact.Click(ctx, el, w.log)
		}
	}
	return nil
}

func (w *Workflow) setField(ctx context.Context, candidates []string, value string) {
	if value == "" {
		return
	}
	el, err := locate.Pick(ctx, w.page, candidates)
	if err != nil {
		w.log.Debug("field lookup failed", zap.Error(err))
		return
	}
	if el == nil {
		w.log.Debug("field not found", zap.Strings("candidates", candidates))
		return
	}
	interact.SetValue(ctx, el, value, w.log)
}

func formatAmount(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
