package expense

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/artifact"
	"github.com/billfetch/billfetch/pkg/browser/fakepage"
	"github.com/billfetch/billfetch/pkg/profile"
)

func newTestWorkflow(t *testing.T, page *fakepage.Page) *Workflow {
	t.Helper()
	cfg, err := profile.Load("")
	require.NoError(t, err)
	w := New(Options{Page: page, Config: cfg, Log: zap.NewNop()})
	w.t = fastTimings()
	return w
}

// fastTimings keeps every bounded wait short enough for tests while
// preserving the ordering the real timings enforce.
func fastTimings() timings {
	return timings{
		SessionSettle:      time.Millisecond,
		ComposerSettle:     time.Millisecond,
		MenuOpenSettle:     time.Millisecond,
		ShortSettle:        time.Millisecond,
		DirectProbe:        50 * time.Millisecond,
		MenuButton:         150 * time.Millisecond,
		MenuOption:         150 * time.Millisecond,
		UploadSettle:       time.Millisecond,
		UploadEntry:        150 * time.Millisecond,
		DescriptionPrefill: 200 * time.Millisecond,
		DateField:          150 * time.Millisecond,
		FinalizeSettle:     time.Millisecond,
		CategorySelect:     200 * time.Millisecond,
		CategoryOption:     200 * time.Millisecond,
		CategoryScroll:     50 * time.Millisecond,
		AutofillWindow:     time.Second,
		AutofillTick:       10 * time.Millisecond,
		DescriptionOnForm:  100 * time.Millisecond,
	}
}

func TestCheckSession(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		blocked bool
	}{
		{"active session", "https://app.navan.com/transactions", false},
		{"login route", "https://app.navan.com/login", true},
		{"google sso redirect", "https://accounts.google.com/o/oauth2/auth", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := fakepage.New(tt.url, fakepage.El("main"))
			w := newTestWorkflow(t, page)

			result, err := w.CheckSession(context.Background())
			if tt.blocked {
				var aerr *action.Error
				require.ErrorAs(t, err, &aerr)
				assert.Equal(t, action.CodeManualStepRequired, aerr.Code)
				return
			}
			require.NoError(t, err)
			assert.True(t, result.Authenticated)
		})
	}
}

func TestClickNewTransactionOnUploadSurface(t *testing.T) {
	page := fakepage.New("https://app.navan.com/transactions/upload-receipts", fakepage.El("main"))
	w := newTestWorkflow(t, page)

	result, err := w.ClickNewTransaction(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Clicked)
	assert.True(t, result.AutofillReceiptClicked)
	assert.True(t, result.SkippedNewTransactionClick)
	assert.True(t, result.DirectUploadPage)
}

func TestClickNewTransactionPrefersDirectAffordance(t *testing.T) {
	autofill := fakepage.El("button").With(func(n *fakepage.Node) {
		n.TextContent = "Autofill from a receipt"
	})
	page := fakepage.New("https://app.navan.com/home", fakepage.El("main", autofill))
	w := newTestWorkflow(t, page)

	result, err := w.ClickNewTransaction(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Clicked)
	assert.True(t, result.AutofillReceiptClicked)
	assert.True(t, result.SkippedNewTransactionClick)
	assert.False(t, result.DirectUploadPage)
	assert.NotZero(t, autofill.ClickSequences)
}

func TestClickNewTransactionFallsBackToMenu(t *testing.T) {
	root := fakepage.El("main")
	menuButton := fakepage.El("button",
		fakepage.El("span").With(func(n *fakepage.Node) {
			n.Classes = []string{"text"}
			n.TextContent = "New transaction"
		}),
	).With(func(n *fakepage.Node) {
		n.Classes = []string{"black"}
		n.Attrs["type"] = "button"
	})
	menuButton.OnClick = func() {
		root.Append(fakepage.El("button").With(func(n *fakepage.Node) {
			n.TextContent = "Autofill from a receipt"
		}))
	}
	root.Append(menuButton)
	page := fakepage.New("https://app.navan.com/home", root)
	w := newTestWorkflow(t, page)

	result, err := w.ClickNewTransaction(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Clicked)
	assert.True(t, result.AutofillReceiptClicked)
	assert.False(t, result.SkippedNewTransactionClick)
	assert.NotZero(t, menuButton.ClickSequences)
}

func TestClickNewTransactionFailsWithoutAnyAffordance(t *testing.T) {
	page := fakepage.New("https://app.navan.com/home", fakepage.El("main"))
	w := newTestWorkflow(t, page)

	_, err := w.ClickNewTransaction(context.Background())
	var aerr *action.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, action.CodeElementNotFound, aerr.Code)
}

func composerFields() (merchant, amount, currency, date, tax, description *fakepage.Node) {
	merchant = fakepage.El("input").With(func(n *fakepage.Node) { n.Attrs["name"] = "merchant" })
	amount = fakepage.El("input").With(func(n *fakepage.Node) { n.Attrs["name"] = "amount" })
	currency = fakepage.El("input").With(func(n *fakepage.Node) { n.Attrs["name"] = "currency" })
	date = fakepage.El("input").With(func(n *fakepage.Node) { n.Attrs["name"] = "date" })
	tax = fakepage.El("input").With(func(n *fakepage.Node) { n.Attrs["name"] = "tax" })
	description = fakepage.El("textarea").With(func(n *fakepage.Node) { n.Attrs["name"] = "description" })
	return
}

func TestAutofillTransactionFillsDraftFields(t *testing.T) {
	merchant, amount, currency, date, tax, description := composerFields()
	root := fakepage.El("main", merchant, amount, currency, date, tax, description)
	page := fakepage.New("https://app.navan.com/transactions/new-redesign/42", root)
	w := newTestWorkflow(t, page)

	taxAmount := 4.17
	result, err := w.AutofillTransaction(context.Background(), &action.Draft{
		Merchant:           "Orange",
		Amount:             24.99,
		Currency:           "EUR",
		TransactionDateISO: "2024-03-01",
		TaxAmount:          &taxAmount,
		Description:        "internet subscription",
	})
	require.NoError(t, err)
	assert.True(t, result.Autofilled)
	assert.Equal(t, "Orange", merchant.Val)
	assert.Equal(t, "24.99", amount.Val)
	assert.Equal(t, "EUR", currency.Val)
	assert.Equal(t, "2024-03-01", date.Val)
	assert.Equal(t, "4.17", tax.Val)
	assert.Equal(t, "internet subscription", description.Val)
}

func TestAutofillTransactionSkipsAbsentTax(t *testing.T) {
	merchant, amount, currency, date, tax, description := composerFields()
	root := fakepage.El("main", merchant, amount, currency, date, tax, description)
	page := fakepage.New("https://app.navan.com/transactions/new-redesign/42", root)
	w := newTestWorkflow(t, page)

	result, err := w.AutofillTransaction(context.Background(), &action.Draft{
		Merchant: "Free",
		Amount:   19.99,
		Currency: "EUR",
	})
	require.NoError(t, err)
	assert.True(t, result.Autofilled)
	assert.Empty(t, tax.Val)
	assert.Empty(t, tax.PasteInserts)
	assert.Empty(t, description.Val)
}

func TestAutofillTransactionRejectsNilDraft(t *testing.T) {
	page := fakepage.New("https://app.navan.com/transactions/new-redesign/42", fakepage.El("main"))
	w := newTestWorkflow(t, page)

	_, err := w.AutofillTransaction(context.Background(), nil)
	var aerr *action.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, action.CodeActionFailed, aerr.Code)
}

func TestUploadDocumentReportsManualWhenEntryNeverAppears(t *testing.T) {
	page := fakepage.New("https://app.navan.com/transactions/upload-receipts", fakepage.El("main"))
	w := newTestWorkflow(t, page)

	result, err := w.UploadDocument(context.Background(), &artifact.Artifact{FileName: "facture.pdf"})
	require.NoError(t, err)
	assert.False(t, result.Uploaded)
	assert.True(t, result.ManualUploadRequired)
	assert.Equal(t, "create_single_transaction_not_found", result.Reason)
}

func TestUploadDocumentDrivesSingleTransactionFlow(t *testing.T) {
	createButton := fakepage.El("button").With(func(n *fakepage.Node) {
		n.Attrs["data-testid"] = "create-single-transaction"
		n.TextContent = "Create a single transaction"
	})
	description := fakepage.El("textarea").With(func(n *fakepage.Node) {
		n.Attrs["name"] = "description"
		n.Val = "Facture Orange mars 2024"
	})
	date := fakepage.El("input").With(func(n *fakepage.Node) { n.Attrs["name"] = "date" })
	draftTag := fakepage.El("div").With(func(n *fakepage.Node) {
		n.Classes = []string{"tag-container", "gray"}
		n.TextContent = "Draft"
	})
	typeInput := fakepage.El("input").With(func(n *fakepage.Node) {
		n.Aliases = []string{"[data-testid='expense-type-form'] input[type='text']"}
	})
	option := fakepage.El("li").With(func(n *fakepage.Node) {
		n.Attrs["role"] = "option"
		n.TextContent = "Télétravail"
	})
	options := fakepage.El("ul", option)
	root := fakepage.El("main", createButton, description, date, draftTag, typeInput, options)
	page := fakepage.New("https://app.navan.com/transactions/upload-receipts", root)
	w := newTestWorkflow(t, page)

	doc := &artifact.Artifact{
		FileName:             "facture_123_2024-03-01.pdf",
		ManualUploadRequired: true,
		Hints: &artifact.Hints{
			ExpenseType:        "work from home",
			TransactionDateISO: "2024-03-01",
		},
	}
	result, err := w.UploadDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, result.Uploaded)
	assert.True(t, result.Clicked)
	assert.True(t, result.HintsApplied)
	assert.True(t, result.ExpenseTypeSelected)
	assert.Same(t, doc, result.Document)

	assert.NotZero(t, createButton.ClickSequences)
	assert.Equal(t, "monthly invoice", description.Val)
	assert.Equal(t, "2024-03-01", date.Val)
	assert.NotZero(t, draftTag.ClickSequences)
	assert.NotZero(t, option.ClickSequences)
}

func TestEnsureCategorySelectedViaDropdown(t *testing.T) {
	root := fakepage.El("main")
	typeInput := fakepage.El("input").With(func(n *fakepage.Node) {
		n.Aliases = []string{"[data-testid='expense-type-form'] input[type='text']"}
	})
	option := fakepage.El("li").With(func(n *fakepage.Node) {
		n.TextContent = "Télétravail"
	})
	scroller := fakepage.El("ul", option).With(func(n *fakepage.Node) {
		n.CanScroll = true
	})
	wrapper := fakepage.El("div").With(func(n *fakepage.Node) {
		n.Attrs["data-testid"] = "label-Expense-type"
	})
	// The overlay only materializes once the wrapper opens the dropdown.
	wrapper.OnClick = func() { root.Append(scroller) }
	root.Append(wrapper)
	root.Append(typeInput)
	page := fakepage.New("https://app.navan.com/transactions/new-redesign/42", root)
	w := newTestWorkflow(t, page)

	selected, err := w.ensureCategorySelected(context.Background(), "work from home")
	require.NoError(t, err)
	assert.True(t, selected)
	assert.NotZero(t, option.ClickSequences)
	assert.Equal(t, 2, scroller.ScrolledBottom)
}

func TestEnsureCategorySelectedShortCircuitsWhenAlreadySet(t *testing.T) {
	typeInput := fakepage.El("input").With(func(n *fakepage.Node) {
		n.Aliases = []string{"[data-testid='expense-type-form'] input[type='text']"}
		n.Val = "Work from home"
	})
	page := fakepage.New("https://app.navan.com/transactions/new-redesign/42", fakepage.El("main", typeInput))
	w := newTestWorkflow(t, page)

	selected, err := w.ensureCategorySelected(context.Background(), "work from home")
	require.NoError(t, err)
	assert.True(t, selected)
	assert.Empty(t, typeInput.PasteInserts)
}
