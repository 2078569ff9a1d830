package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/artifact"
	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/interact"
	"github.com/billfetch/billfetch/pkg/locate"
	"github.com/billfetch/billfetch/pkg/textmatch"
	"github.com/billfetch/billfetch/pkg/wait"
)

const (
	orangeClientHost        = "espace-client.orange.fr"
	orangeContractSelection = "https://espace-client.orange.fr/selectionner-un-contrat"
)

var (
	orangeAccountIDRe   = regexp.MustCompile(`^\d{6,}$`)
	orangeBillingPathRe = regexp.MustCompile(`/facture-paiement/(\d+)`)
)

// orangeWorkflow drives the Orange client area: contract selection by
// account type, then a canonical billing detail URL built from the account
// id embedded in the selected card.
type orangeWorkflow struct {
	env
}

func (w *orangeWorkflow) authenticated(ctx context.Context) (bool, error) {
	loc, err := w.location(ctx)
	if err != nil {
		return false, err
	}
	if !strings.Contains(loc.Hostname(), orangeClientHost) {
		return false, nil
	}
	visible, err := w.loginFieldsVisible(ctx)
	if err != nil {
		return false, err
	}
	return !visible, nil
}

func (w *orangeWorkflow) CheckSession(ctx context.Context) (*action.SessionResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	return &action.SessionResult{Authenticated: ok}, nil
}

func (w *orangeWorkflow) CheckBillingReady(ctx context.Context) (*action.BillingReadyResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	return &action.BillingReadyResult{Ready: ok}, nil
}

func (w *orangeWorkflow) Authenticate(ctx context.Context, creds Credentials) (*action.SessionResult, error) {
	return w.env.genericAuthenticate(ctx, creds, w.authenticated)
}

func (w *orangeWorkflow) NavigateBilling(ctx context.Context, opts NavigateOptions) (*action.NavigationResult, error) {
	accountType := "home_internet"
	if opts.AccountType == "mobile_internet" {
		accountType = "mobile_internet"
	}

	loc, err := w.location(ctx)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(loc.String(), orangeContractSelection) {
		return nil, action.NewError(action.CodeActionFailed, "orange is not on the contract selection page")
	}

	card, err := w.waitForAccountCard(ctx, accountType, 15*time.Second)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, action.NewError(action.CodeElementNotFound, "could not find orange account card for type %s", accountType)
	}

	accountID, err := w.extractAccountID(ctx, card)
	if err != nil {
		return nil, err
	}
	if accountID == "" {
		return nil, action.NewError(action.CodeElementNotFound, "could not extract orange account id from selected card")
	}

	detailURL := fmt.Sprintf("https://espace-client.orange.fr/facture-paiement/%s/detail-facture", accountID)
	return &action.NavigationResult{Navigated: true, AccountID: accountID, DetailURL: detailURL}, nil
}

// waitForAccountCard polls the contract list for a card whose label matches
// the requested account type.
func (w *orangeWorkflow) waitForAccountCard(ctx context.Context, accountType string, timeout time.Duration) (browser.Element, error) {
	card, _, err := wait.Until(ctx, timeout, 250*time.Millisecond, func(ctx context.Context) (browser.Element, bool, error) {
		items, err := locate.PickAll(ctx, w.page, w.prof.Billing.AccountItems)
		if err != nil {
			return nil, false, err
		}
		for _, item := range items {
			text, err := item.Text(ctx)
			if err != nil {
				return nil, false, err
			}
			if matchesAccountType(text, accountType) {
				return item, true, nil
			}
		}
		return nil, false, nil
	})
	return card, err
}

func matchesAccountType(text, accountType string) bool {
	if accountType == "mobile_internet" {
		return textmatch.ContainsFold(text, "forfait mobile")
	}
	return textmatch.ContainsFold(text, "offre internet")
}

// extractAccountID reads the account id off a contract card: a numeric
// data-e2e attribute first, then the billing path segment of its href.
func (w *orangeWorkflow) extractAccountID(ctx context.Context, card browser.Element) (string, error) {
	dataE2E, ok, err := card.Attr(ctx, "data-e2e")
	if err != nil {
		return "", err
	}
	if ok && orangeAccountIDRe.MatchString(dataE2E) {
		return dataE2E, nil
	}

	href, ok, err := card.Attr(ctx, "href")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	if m := orangeBillingPathRe.FindStringSubmatch(href); m != nil {
		return m[1], nil
	}
	return "", nil
}

func (w *orangeWorkflow) DownloadAndExtract(ctx context.Context) (*action.DownloadResult, error) {
	control, err := w.downloadControl(ctx, 12*time.Second)
	if err != nil {
		return nil, err
	}
	if control == nil {
		return nil, action.NewError(action.CodeElementNotFound, "could not find orange PDF download button")
	}

	hints, err := w.nameHints(ctx, control)
	if err != nil {
		return nil, err
	}
	href, fileName, didClick, err := w.resolveAndName(ctx, control, hints)
	if err != nil {
		return nil, err
	}
	if !didClick {
		interact.Click(ctx, control, w.log)
	}
	return w.extractionResult(ctx, fileName, href, nil)
}

// nameHints reads the account id from the page path and the bill date from
// the download control's label, falling back to the whole page text.
func (w *orangeWorkflow) nameHints(ctx context.Context, control browser.Element) (artifact.NameHints, error) {
	var hints artifact.NameHints

	loc, err := w.location(ctx)
	if err != nil {
		return hints, err
	}
	if m := orangeBillingPathRe.FindStringSubmatch(loc.Path); m != nil {
		hints.AccountID = m[1]
	}

	text, err := control.Text(ctx)
	if err != nil {
		return hints, err
	}
	if strings.TrimSpace(text) == "" {
		text, err = w.page.BodyText(ctx)
		if err != nil {
			return hints, err
		}
	}
	hints.BillDateISO = textmatch.ExtractDateISO(text)
	return hints, nil
}
