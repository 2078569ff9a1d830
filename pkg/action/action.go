// Package action defines the inbound and outbound contracts of the
// automation core: the closed set of action kinds, their payloads and result
// shapes, the error taxonomy, and a dispatcher that turns handler outcomes
// (including panics) into structured responses.
package action

import (
	"github.com/billfetch/billfetch/pkg/artifact"
	"github.com/billfetch/billfetch/pkg/profile"
)

// Kind identifies one operation of a workflow.
type Kind string

const (
	KindCheckProviderSession      Kind = "CHECK_PROVIDER_SESSION"       // KindCheckProviderSession probes whether a provider session is active.
	KindCheckProviderBillingReady Kind = "CHECK_PROVIDER_BILLING_READY" // KindCheckProviderBillingReady probes whether the billing page is usable.
	KindAuthProvider              Kind = "AUTH_PROVIDER"                // KindAuthProvider attempts (or prepares) a provider login.
	KindNavigateBilling           Kind = "NAVIGATE_BILLING"             // KindNavigateBilling drives the page to the invoice area.
	KindDownloadAndExtractBill    Kind = "DOWNLOAD_AND_EXTRACT_BILL"    // KindDownloadAndExtractBill resolves and fetches the invoice document.
	KindCheckSession              Kind = "CHECK_SESSION"                // KindCheckSession probes the expense tool's session.
	KindClickNewTransaction       Kind = "CLICK_NEW_TRANSACTION"        // KindClickNewTransaction opens the expense tool's transaction composer.
	KindAutofillTransaction       Kind = "AUTOFILL_TRANSACTION"         // KindAutofillTransaction fills the composer from a draft.
	KindUploadDocument            Kind = "UPLOAD_DOCUMENT"              // KindUploadDocument drives the receipt-upload transaction flow.
)

// Draft carries caller-supplied transaction fields for the expense composer.
type Draft struct {
	Merchant           string   `json:"merchant,omitempty"`
	Amount             float64  `json:"amount,omitempty"`
	Currency           string   `json:"currency,omitempty"`
	TransactionDateISO string   `json:"transactionDateISO,omitempty"`
	TaxAmount          *float64 `json:"taxAmount,omitempty"`
	Description        string   `json:"description,omitempty"`
}

// Payload is the action-specific request body. Only the fields relevant to
// the request's Kind are consulted.
type Payload struct {
	// Provider selects the workflow variant and selector profile.
	Provider profile.Identity `json:"provider,omitempty"`

	// Username and Password feed AUTH_PROVIDER.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// AccountType disambiguates multi-contract accounts during billing
	// navigation ("mobile_internet" or "home_internet").
	AccountType string `json:"accountType,omitempty"`

	// Draft feeds AUTOFILL_TRANSACTION.
	Draft *Draft `json:"draft,omitempty"`

	// Document feeds UPLOAD_DOCUMENT.
	Document *artifact.Artifact `json:"document,omitempty"`
}

// Request is one inbound action invocation.
type Request struct {
	// ID correlates the response with the request in logs.
	ID string `json:"id,omitempty"`

	Kind    Kind    `json:"action"`
	Payload Payload `json:"payload"`
}

// SessionResult is the outcome of session and authentication operations.
type SessionResult struct {
	Authenticated bool `json:"authenticated"`

	// ManualLoginRequired signals that a human must finish the login. Not a
	// failure: the fields that could be prefilled were prefilled.
	ManualLoginRequired bool `json:"manualLoginRequired,omitempty"`

	// CaptchaRequired and SMSCodeRequired report detected challenges.
	CaptchaRequired bool `json:"captchaRequired,omitempty"`
	SMSCodeRequired bool `json:"smsCodeRequired,omitempty"`

	// SkippedLogin reports the fast path taken when a session was already
	// active and no credentials were submitted.
	SkippedLogin bool `json:"skippedLogin,omitempty"`

	// Diagnostics is a human-readable summary of the auth inference, for
	// providers whose session state has no single canonical signal.
	Diagnostics string `json:"diagnostics,omitempty"`
}

// BillingReadyResult is the outcome of a billing readiness probe.
type BillingReadyResult struct {
	Ready bool `json:"ready"`

	// Diagnostics summarizes the readiness inference for providers without
	// a canonical signal.
	Diagnostics string `json:"diagnostics,omitempty"`
}

// NavigationResult is the outcome of billing navigation.
type NavigationResult struct {
	Navigated bool   `json:"navigated"`
	DetailURL string `json:"detailUrl,omitempty"`

	// AccountID is the billing account resolved during contract selection,
	// when the provider encodes one.
	AccountID string `json:"accountId,omitempty"`
}

// DownloadResult is the outcome of download-and-extract.
type DownloadResult struct {
	Document *artifact.Artifact `json:"document"`

	// BillText is the page's visible text at extraction time, kept for
	// downstream hint derivation.
	BillText string `json:"billText,omitempty"`
}

// ComposerResult is the outcome of composer and upload operations in the
// expense tool.
type ComposerResult struct {
	Clicked      bool `json:"clicked,omitempty"`
	Uploaded     bool `json:"uploaded,omitempty"`
	Autofilled   bool `json:"autofilled,omitempty"`
	HintsApplied bool `json:"hintsApplied,omitempty"`

	// AutofillReceiptClicked and SkippedNewTransactionClick report which
	// path opened the composer: the direct autofill affordance, or the
	// intermediate new-transaction menu.
	AutofillReceiptClicked     bool `json:"autofillReceiptClicked,omitempty"`
	SkippedNewTransactionClick bool `json:"skippedNewTransactionClick,omitempty"`

	// DirectUploadPage reports that the page already was the upload
	// surface, so no composer affordance needed clicking at all.
	DirectUploadPage bool `json:"directUploadPage,omitempty"`

	// ExpenseTypeSelected reports the outcome of the category dropdown.
	ExpenseTypeSelected bool `json:"expenseTypeSelected,omitempty"`

	// ManualUploadRequired signals the flow stopped where a human must
	// take over, such as an upload entry point that never appeared.
	ManualUploadRequired bool `json:"manualUploadRequired,omitempty"`

	// Document echoes the artifact the upload flow was driven with.
	Document *artifact.Artifact `json:"document,omitempty"`

	// Reason explains a non-error shortfall, such as an upload flow that
	// stops at the file chooser for the human.
	Reason string `json:"reason,omitempty"`
}

// Response is the single reply to a Request.
type Response struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}
