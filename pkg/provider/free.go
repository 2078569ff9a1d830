package provider

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/artifact"
	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/interact"
	"github.com/billfetch/billfetch/pkg/locate"
	"github.com/billfetch/billfetch/pkg/textmatch"
	"github.com/billfetch/billfetch/pkg/wait"
)

var freeMonthInHrefRe = regexp.MustCompile(`(?i)[?&]mois=(\d{6})\b`)

// freeWorkflow drives the Free ADSL subscriber area. The session rides in
// URL query parameters, so navigation stays on the current page and only
// verifies an invoice link is reachable; invoice links are scored by their
// billing month, preferring the current month.
type freeWorkflow struct {
	env
}

func (w *freeWorkflow) authenticated(ctx context.Context) (bool, error) {
	visible, err := w.loginFieldsVisible(ctx)
	if err != nil {
		return false, err
	}
	return !visible, nil
}

func (w *freeWorkflow) CheckSession(ctx context.Context) (*action.SessionResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	return &action.SessionResult{Authenticated: ok}, nil
}

func (w *freeWorkflow) CheckBillingReady(ctx context.Context) (*action.BillingReadyResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	return &action.BillingReadyResult{Ready: ok}, nil
}

func (w *freeWorkflow) Authenticate(ctx context.Context, creds Credentials) (*action.SessionResult, error) {
	return w.env.genericAuthenticate(ctx, creds, w.authenticated)
}

func (w *freeWorkflow) NavigateBilling(ctx context.Context, opts NavigateOptions) (*action.NavigationResult, error) {
	invoices, err := locate.PickAll(ctx, w.page, w.prof.Billing.InvoiceLinks)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, action.NewError(action.CodeElementNotFound, "could not find free invoice link (facture_pdf.pl)")
	}
	loc, err := w.location(ctx)
	if err != nil {
		return nil, err
	}
	return &action.NavigationResult{Navigated: true, DetailURL: loc.String()}, nil
}

func (w *freeWorkflow) DownloadAndExtract(ctx context.Context) (*action.DownloadResult, error) {
	control, err := w.bestInvoiceControl(ctx, 12*time.Second)
	if err != nil {
		return nil, err
	}
	if control == nil {
		return nil, action.NewError(action.CodeElementNotFound, "could not find free PDF download button")
	}

	href, fileName, didClick, err := w.resolveAndName(ctx, control, artifact.NameHints{})
	if err != nil {
		return nil, err
	}

	// Free invoice links open the PDF in a new tab; force a real download in
	// the current page context instead.
	if href != "" {
		if _, err := artifact.ForceDownload(ctx, w.page, href, fileName, w.dir, w.log); err != nil {
			return nil, action.NewError(action.CodeNetworkFailure, "failed to download invoice PDF: %v", err)
		}
	} else if !didClick {
		interact.Click(ctx, control, w.log)
	}
	return w.extractionResult(ctx, fileName, href, nil)
}

// bestInvoiceControl polls for invoice links and prefers the current billing
// month, then the most recent month, then document order.
func (w *freeWorkflow) bestInvoiceControl(ctx context.Context, timeout time.Duration) (browser.Element, error) {
	control, _, err := wait.Until(ctx, timeout, 200*time.Millisecond, func(ctx context.Context) (browser.Element, bool, error) {
		links, err := locate.PickAll(ctx, w.page, w.prof.Billing.DownloadButton)
		if err != nil {
			return nil, false, err
		}
		if len(links) == 0 {
			return nil, false, nil
		}
		best, err := w.pickByMonth(ctx, links)
		if err != nil {
			return nil, false, err
		}
		return best, best != nil, nil
	})
	return control, err
}

func (w *freeWorkflow) pickByMonth(ctx context.Context, links []browser.Element) (browser.Element, error) {
	currentKey := textmatch.CurrentMonthKey(w.now())

	best := links[0]
	bestKey := 0
	for _, link := range links {
		key, err := w.invoiceMonthKey(ctx, link)
		if err != nil {
			return nil, err
		}
		if key == currentKey {
			return link, nil
		}
		if n, err := strconv.Atoi(key); err == nil && n > bestKey {
			best = link
			bestKey = n
		}
	}
	return best, nil
}

// invoiceMonthKey reads the YYYYMM billing month off an invoice link: the
// mois query parameter first, then a French month-year in its title or text.
func (w *freeWorkflow) invoiceMonthKey(ctx context.Context, link browser.Element) (string, error) {
	href, _, err := link.Attr(ctx, "href")
	if err != nil {
		return "", err
	}
	if m := freeMonthInHrefRe.FindStringSubmatch(href); m != nil {
		return m[1], nil
	}

	title, _, err := link.Attr(ctx, "title")
	if err != nil {
		return "", err
	}
	text, err := link.Text(ctx)
	if err != nil {
		return "", err
	}
	return textmatch.ExtractMonthKey(title + " " + text), nil
}
