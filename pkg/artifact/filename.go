package artifact

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/billfetch/billfetch/pkg/profile"
)

// Artifact is the downloadable document produced by a provider workflow,
// together with its derived metadata. Constructed once per successful
// download-and-extract call; immutable afterwards.
type Artifact struct {
	FileName             string `json:"name"`
	MimeType             string `json:"mimeType"`
	SourceURL            string `json:"sourceUrl"`
	ManualUploadRequired bool   `json:"manualUploadRequired"`
	Hints                *Hints `json:"hints,omitempty"`
}

// Hints carries metadata derived during extraction for the downstream
// expense-entry workflow.
type Hints struct {
	ExpenseType        string `json:"expenseType,omitempty"`
	TransactionDateISO string `json:"transactionDateISO,omitempty"`
}

// NameHints feeds page-derived values into filename derivation.
type NameHints struct {
	// AccountID is the billing account identifier read from the page
	// location, when the provider encodes one there.
	AccountID string

	// BillDateISO is the bill's date as YYYY-MM-DD, when readable from the
	// page.
	BillDateISO string
}

var (
	monthKeyRe      = regexp.MustCompile(`^\d{6}$`)
	freeInvoiceRe   = regexp.MustCompile(`(?i)facture_pdf\.pl$`)
	freeMobileIDRe  = regexp.MustCompile(`(?i)/api/SI/invoice/(\d+)\b`)
	navigoPathRe    = regexp.MustCompile(`(?i)attestation|prelev`)
	utfFilenameRe   = regexp.MustCompile(`(?i)filename\*=UTF-8''([^;]+)`)
	plainFilenameRe = regexp.MustCompile(`(?i)filename="?([^";]+)"?`)
)

// DeriveFileName produces the canonical filename for a document at rawURL,
// applying rules in priority order: provider URL-parameter decoding first
// (most precise and most stable), then Content-Disposition, then the URL's
// last path segment, then a content-type-appropriate default. Deterministic:
// the same inputs always yield the same name.
func DeriveFileName(id profile.Identity, rawURL, contentType, contentDisposition string, hints NameHints, now time.Time) string {
	if id == profile.Orange && hints.AccountID != "" && hints.BillDateISO != "" {
		return fmt.Sprintf("facture_%s_%s.pdf", hints.AccountID, hints.BillDateISO)
	}

	switch id {
	case profile.Free:
		if name := freeFileName(rawURL); name != "" {
			return name
		}
	case profile.FreeMobile:
		if name := freeMobileFileName(rawURL); name != "" {
			return name
		}
	case profile.Navigo:
		if name := navigoFileName(rawURL, now); name != "" {
			return name
		}
	}

	if name := FileNameFromDisposition(contentDisposition); name != "" {
		return name
	}
	if name := fileNameFromURL(rawURL); name != "" {
		return name
	}
	if strings.Contains(contentType, "html") {
		return "orange-bill.html"
	}
	return "orange-bill.pdf"
}

// freeFileName decodes the invoice number and billing month from a Free
// invoice endpoint URL.
func freeFileName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	query := parsed.Query()
	if !freeInvoiceRe.MatchString(parsed.Path) && !query.Has("no_facture") {
		return ""
	}

	noFacture := strings.TrimSpace(query.Get("no_facture"))
	mois := strings.TrimSpace(query.Get("mois"))
	switch {
	case noFacture != "" && monthKeyRe.MatchString(mois):
		return fmt.Sprintf("facture_%s_%s.pdf", noFacture, mois)
	case noFacture != "":
		return fmt.Sprintf("facture_%s.pdf", noFacture)
	case monthKeyRe.MatchString(mois):
		return fmt.Sprintf("facture_%s.pdf", mois)
	}
	return "facture_free.pdf"
}

func freeMobileFileName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	m := freeMobileIDRe.FindStringSubmatch(parsed.Path)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("facture_free_mobile_%s.pdf", m[1])
}

func navigoFileName(rawURL string, now time.Time) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	query := parsed.Query()
	documentID := strings.TrimSpace(query.Get("id"))
	if documentID == "" {
		documentID = strings.TrimSpace(query.Get("documentId"))
	}
	if documentID != "" {
		return fmt.Sprintf("attestation_navigo_%s.pdf", documentID)
	}
	if navigoPathRe.MatchString(parsed.Path) {
		return fmt.Sprintf("attestation_navigo_%s.pdf", now.Format("2006-01"))
	}
	return ""
}

// FileNameFromDisposition extracts a filename from a Content-Disposition
// header value, preferring the UTF-8 encoded form over the plain form.
func FileNameFromDisposition(value string) string {
	if value == "" {
		return ""
	}
	if m := utfFilenameRe.FindStringSubmatch(value); m != nil {
		name := strings.ReplaceAll(m[1], `"`, "")
		if decoded, err := url.QueryUnescape(name); err == nil {
			return decoded
		}
		return name
	}
	if m := plainFilenameRe.FindStringSubmatch(value); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func fileNameFromURL(rawURL string) string {
	trimmed := rawURL
	if idx := strings.IndexByte(trimmed, '?'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	segments := strings.Split(trimmed, "/")
	last := segments[len(segments)-1]
	if last != "" && strings.Contains(last, ".") {
		return last
	}
	return ""
}
