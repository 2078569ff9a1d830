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

const navigoCardHost = "www.jegeremacartenavigo.iledefrance-mobilites.fr"

var (
	navigoLoginPathRe    = regexp.MustCompile(`/auth/realms/connect/login-actions/authenticate`)
	navigoPrelevPathRe   = regexp.MustCompile(`(?i)/prelevements/([^/?#]+)`)
	navigoDetailPathRe   = regexp.MustCompile(`(?i)/espace_client/detail/([^/?#]+)`)
	navigoDetailHrefRe   = regexp.MustCompile(`(?i)/espace_client/detail/([^/?#]+)`)
	navigoResourceRe     = regexp.MustCompile(`(?i)prelev|attestation|certificate|pdf`)
	navigoDownloadButton = []string{"button#download-certificate-btn", ".dropdown-menu #download-certificate-btn"}
	navigoPeriodInput    = []string{"ul.dropdown-menu input[name='period'][value='3']", "input[name='period'][value='3']"}
)

// navigoWorkflow drives the Île-de-France Mobilités transit portal: inferred
// authentication, prélèvements URL resolution from the current route or the
// annual contract list, and an attestation flow gated on a reporting-period
// radio that enables the download button.
type navigoWorkflow struct {
	env
}

func (w *navigoWorkflow) authenticated(ctx context.Context) (bool, error) {
	loc, err := w.location(ctx)
	if err != nil {
		return false, err
	}
	host := loc.Hostname()
	if !strings.Contains(host, "iledefrance-mobilites.fr") {
		return false, nil
	}

	loginField, err := locate.PickHidden(ctx, w.page, []string{"#id-Mail", "#id-pwd", "#form-log"})
	if err != nil {
		return false, err
	}
	if loginField != nil {
		return false, nil
	}
	if navigoLoginPathRe.MatchString(loc.Path) {
		return false, nil
	}

	inMonEspace := strings.Contains(host, "mon-espace.iledefrance-mobilites.fr")
	inCardArea := strings.Contains(host, "jegeremacartenavigo.iledefrance-mobilites.fr")
	if !inMonEspace && !inCardArea {
		return false, nil
	}

	text, err := w.page.BodyText(ctx)
	if err != nil {
		return false, err
	}
	folded := textmatch.Fold(text)
	return strings.Contains(folded, "mon espace personnel") ||
		strings.Contains(folded, "mon navigo") ||
		strings.Contains(folded, "mes services") ||
		strings.Contains(folded, "deconnexion"), nil
}

func (w *navigoWorkflow) CheckSession(ctx context.Context) (*action.SessionResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	return &action.SessionResult{Authenticated: ok}, nil
}

func (w *navigoWorkflow) CheckBillingReady(ctx context.Context) (*action.BillingReadyResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &action.BillingReadyResult{Ready: false}, nil
	}
	text, err := w.page.BodyText(ctx)
	if err != nil {
		return nil, err
	}
	ready := textmatch.ContainsFold(text, "mon navigo") ||
		textmatch.ContainsFold(text, "mes services") ||
		textmatch.ContainsFold(text, "bienvenue")
	return &action.BillingReadyResult{Ready: ready}, nil
}

func (w *navigoWorkflow) Authenticate(ctx context.Context, creds Credentials) (*action.SessionResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return &action.SessionResult{Authenticated: true, SkippedLogin: true}, nil
	}

	username, _, err := locate.WaitVisible(ctx, w.page, w.prof.Login.Username, 8*time.Second)
	if err != nil {
		return nil, err
	}
	if username == nil {
		ok, err := w.authenticated(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return &action.SessionResult{Authenticated: true, SkippedLogin: true}, nil
		}
		return nil, action.NewError(action.CodeElementNotFound, "could not locate navigo username field")
	}
	w.prefill(ctx, username, creds.Username)

	password, _, err := locate.WaitVisible(ctx, w.page, w.prof.Login.Password, 8*time.Second)
	if err != nil {
		return nil, err
	}
	if password == nil {
		return nil, action.NewError(action.CodeElementNotFound, "could not locate navigo password field")
	}
	w.prefill(ctx, password, creds.Password)

	submit, err := locate.Pick(ctx, w.page, w.prof.Login.Submit)
	if err != nil {
		return nil, err
	}
	if submit == nil {
		return nil, action.NewError(action.CodeElementNotFound, "could not locate navigo login button")
	}
	if creds.Password == "" && !interact.HasValue(ctx, password) {
		return &action.SessionResult{Authenticated: false, ManualLoginRequired: true}, nil
	}
	interact.Click(ctx, submit, w.log)

	w.settle(ctx, 1200*time.Millisecond)
	ok, err = w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return &action.SessionResult{Authenticated: true}, nil
	}
	return &action.SessionResult{Authenticated: false, ManualLoginRequired: true}, nil
}

func (w *navigoWorkflow) NavigateBilling(ctx context.Context, opts NavigateOptions) (*action.NavigationResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, action.NewError(action.CodeActionFailed, "navigo user is not authenticated")
	}
	if err := w.waitForRoutingHints(ctx, 4*time.Second); err != nil {
		return nil, err
	}

	prelevURL, err := w.resolvePrelevementsURL(ctx)
	if err != nil {
		return nil, err
	}
	if prelevURL != "" {
		return &action.NavigationResult{Navigated: true, DetailURL: prelevURL}, nil
	}

	entryURL, err := w.resolveBillingEntryURL(ctx)
	if err != nil {
		return nil, err
	}
	if entryURL != "" {
		return &action.NavigationResult{Navigated: true, DetailURL: entryURL}, nil
	}

	opened, err := w.clickBillingPath(ctx, 8*time.Second)
	if err != nil {
		return nil, err
	}
	if !opened {
		summary, serr := w.pageDiagnostics(ctx)
		if serr != nil {
			summary = serr.Error()
		}
		return nil, action.NewError(action.CodeElementNotFound, "could not open navigo billing section | %s", summary)
	}
	loc, err := w.location(ctx)
	if err != nil {
		return nil, err
	}
	return &action.NavigationResult{Navigated: true, DetailURL: loc.String()}, nil
}

// waitForRoutingHints gives the SPA a moment to render something the
// navigation logic can act on.
func (w *navigoWorkflow) waitForRoutingHints(ctx context.Context, timeout time.Duration) error {
	_, _, err := wait.Until(ctx, timeout, wait.DefaultInterval, func(ctx context.Context) (struct{}, bool, error) {
		loc, err := w.location(ctx)
		if err != nil {
			return struct{}{}, false, err
		}
		if navigoDetailPathRe.MatchString(loc.Path) || navigoPrelevPathRe.MatchString(loc.Path) {
			return struct{}{}, true, nil
		}
		detailLink, err := locate.PickHidden(ctx, w.page, []string{"a[href*='/espace_client/detail/']"})
		if err != nil {
			return struct{}{}, false, err
		}
		if detailLink != nil {
			return struct{}{}, true, nil
		}
		monNavigo, err := w.anchorByText(ctx, "mon navigo")
		if err != nil {
			return struct{}{}, false, err
		}
		return struct{}{}, monNavigo != nil, nil
	})
	return err
}

// resolvePrelevementsURL builds the prélèvements URL from the current route,
// then from a contract detail route, then from the annual contract list.
func (w *navigoWorkflow) resolvePrelevementsURL(ctx context.Context) (string, error) {
	loc, err := w.location(ctx)
	if err != nil {
		return "", err
	}
	if navigoPrelevPathRe.MatchString(loc.Path) {
		return loc.String(), nil
	}
	if m := navigoDetailPathRe.FindStringSubmatch(loc.Path); m != nil {
		return fmt.Sprintf("https://%s/prelevements/%s", navigoCardHost, m[1]), nil
	}

	contractID, err := w.annualContractID(ctx)
	if err != nil {
		return "", err
	}
	if contractID != "" {
		return fmt.Sprintf("https://%s/prelevements/%s", navigoCardHost, contractID), nil
	}
	return "", nil
}

// resolveBillingEntryURL returns the href of the "mon navigo" anchor.
func (w *navigoWorkflow) resolveBillingEntryURL(ctx context.Context) (string, error) {
	anchor, err := w.anchorByText(ctx, "mon navigo")
	if err != nil || anchor == nil {
		return "", err
	}
	href, ok, err := anchor.Attr(ctx, "href")
	if err != nil || !ok || href == "" {
		return "", err
	}
	loc, err := w.location(ctx)
	if err != nil {
		return "", err
	}
	ref, err := loc.Parse(href)
	if err != nil {
		return "", nil
	}
	return ref.String(), nil
}

// anchorByText returns the first anchor whose folded text contains phrase,
// hidden anchors included.
func (w *navigoWorkflow) anchorByText(ctx context.Context, phrase string) (browser.Element, error) {
	anchors, err := w.page.Query(ctx, "a[href]")
	if err != nil {
		return nil, err
	}
	for _, anchor := range anchors {
		text, err := anchor.Text(ctx)
		if err != nil {
			return nil, err
		}
		if textmatch.ContainsFold(text, phrase) {
			return anchor, nil
		}
	}
	return nil, nil
}

// annualContractID reads the contract id from the annual subscription link:
// the active one preferred, any annual one otherwise.
func (w *navigoWorkflow) annualContractID(ctx context.Context) (string, error) {
	links, err := w.page.Query(ctx, "a[href*='/espace_client/detail/']")
	if err != nil {
		return "", err
	}

	var anyAnnual string
	for _, link := range links {
		text, err := link.Text(ctx)
		if err != nil {
			return "", err
		}
		if !textmatch.ContainsFold(text, "navigo annuel") {
			continue
		}
		href, ok, err := link.Attr(ctx, "href")
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		m := navigoDetailHrefRe.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		if textmatch.ContainsFold(text, "actif") {
			return m[1], nil
		}
		if anyAnnual == "" {
			anyAnnual = m[1]
		}
	}
	return anyAnnual, nil
}

// annualActiveEntry returns the visible "navigo annuel ... actif" detail
// link, when present.
func (w *navigoWorkflow) annualActiveEntry(ctx context.Context) (browser.Element, error) {
	links, err := w.page.Query(ctx, "a[href]")
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		visible, err := link.Visible(ctx)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		text, err := link.Text(ctx)
		if err != nil {
			return nil, err
		}
		if !textmatch.ContainsFold(text, "navigo annuel") || !textmatch.ContainsFold(text, "actif") {
			continue
		}
		href, ok, err := link.Attr(ctx, "href")
		if err != nil {
			return nil, err
		}
		if ok && navigoDetailHrefRe.MatchString(href) {
			return link, nil
		}
	}
	return nil, nil
}

// prelevementsEntryPresent reports the prélèvements affordances by page text.
func (w *navigoWorkflow) prelevementsEntryPresent(ctx context.Context) (bool, error) {
	text, err := w.page.BodyText(ctx)
	if err != nil {
		return false, err
	}
	return textmatch.ContainsFold(text, "consulter mes prelevements") ||
		textmatch.ContainsFold(text, "telecharger mes attestations de prelevements"), nil
}

// clickBillingPath clicks toward the billing section via "mon navigo" until
// an annual contract entry or a prélèvements affordance shows up.
func (w *navigoWorkflow) clickBillingPath(ctx context.Context, timeout time.Duration) (bool, error) {
	_, ok, err := wait.Until(ctx, timeout, 250*time.Millisecond, func(ctx context.Context) (struct{}, bool, error) {
		monNavigo, err := locate.FindClickableByText(ctx, w.page, "mon navigo")
		if err != nil {
			return struct{}{}, false, err
		}
		if monNavigo != nil {
			interact.Click(ctx, monNavigo, w.log)
			w.settle(ctx, 800*time.Millisecond)
		}

		annual, err := w.annualActiveEntry(ctx)
		if err != nil {
			return struct{}{}, false, err
		}
		if annual != nil {
			return struct{}{}, true, nil
		}
		present, err := w.prelevementsEntryPresent(ctx)
		if err != nil {
			return struct{}{}, false, err
		}
		return struct{}{}, present, nil
	})
	return ok, err
}

func (w *navigoWorkflow) DownloadAndExtract(ctx context.Context) (*action.DownloadResult, error) {
	before, err := artifact.SnapshotResources(ctx, w.page)
	if err != nil {
		return nil, err
	}

	control, err := w.bestAttestationControl(ctx, 20*time.Second)
	if err != nil {
		return nil, err
	}
	if control == nil {
		return nil, action.NewError(action.CodeElementNotFound, "could not find navigo attestation download button")
	}

	// The attestation button triggers a background fetch; the URL only shows
	// up in the resource log after the click.
	interact.Click(ctx, control, w.log)
	href, _, err := artifact.WaitForResource(ctx, w.page, before, navigoResourceRe, 8*time.Second)
	if err != nil {
		return nil, err
	}

	nameSource := href
	if nameSource == "" {
		loc, lerr := w.location(ctx)
		if lerr != nil {
			return nil, lerr
		}
		nameSource = loc.String()
	}
	fileName := artifact.DeriveFileName(w.id, nameSource, "application/pdf", "", artifact.NameHints{}, w.now())

	hints := &artifact.Hints{
		ExpenseType:        "commuter benefits",
		TransactionDateISO: textmatch.MonthStartISO(w.now()),
	}
	return w.extractionResult(ctx, fileName, href, hints)
}

// bestAttestationControl walks the attestation flow until the download
// button is present and enabled.
func (w *navigoWorkflow) bestAttestationControl(ctx context.Context, timeout time.Duration) (browser.Element, error) {
	opened, err := w.openAttestationFlow(ctx, timeout)
	if err != nil {
		return nil, err
	}
	if !opened {
		return nil, nil
	}

	button, err := locate.Pick(ctx, w.page, navigoDownloadButton)
	if err != nil || button == nil {
		return nil, err
	}
	disabled, err := button.Disabled(ctx)
	if err != nil {
		return nil, err
	}
	if disabled {
		return nil, nil
	}
	return button, nil
}

// openAttestationFlow drives the UI toward an enabled attestation download:
// open the active annual contract, open the prélèvements view, open the
// attestation menu, select the 3-month reporting period, and re-check the
// button, which stays disabled until a period is selected.
func (w *navigoWorkflow) openAttestationFlow(ctx context.Context, timeout time.Duration) (bool, error) {
	_, ok, err := wait.Until(ctx, timeout, 250*time.Millisecond, func(ctx context.Context) (struct{}, bool, error) {
		annual, err := w.annualActiveEntry(ctx)
		if err != nil {
			return struct{}{}, false, err
		}
		if annual != nil {
			interact.Click(ctx, annual, w.log)
			w.settle(ctx, time.Second)
		}

		prelev, err := locate.FindClickableByText(ctx, w.page, "consulter mes prelevements")
		if err != nil {
			return struct{}{}, false, err
		}
		if prelev != nil {
			interact.Click(ctx, prelev, w.log)
			w.settle(ctx, time.Second)
		}

		download, err := locate.Pick(ctx, w.page, []string{"#label-download"})
		if err != nil {
			return struct{}{}, false, err
		}
		if download == nil {
			download, err = locate.FindClickableByText(ctx, w.page, "telecharger mes attestations de prelevements")
			if err != nil {
				return struct{}{}, false, err
			}
		}
		if download != nil {
			interact.Click(ctx, download, w.log)
			w.settle(ctx, 800*time.Millisecond)
		}

		if err := w.selectReportingPeriod(ctx); err != nil {
			return struct{}{}, false, err
		}

		button, err := locate.Pick(ctx, w.page, navigoDownloadButton)
		if err != nil {
			return struct{}{}, false, err
		}
		if button != nil {
			disabled, err := button.Disabled(ctx)
			if err != nil {
				return struct{}{}, false, err
			}
			if disabled {
				period, err := locate.Pick(ctx, w.page, []string{"input[name='period'][value='3']"})
				if err != nil {
					return struct{}{}, false, err
				}
				if period != nil {
					interact.SelectRadio(ctx, period, w.log)
					w.settle(ctx, 400*time.Millisecond)
					disabled, err = button.Disabled(ctx)
					if err != nil {
						return struct{}{}, false, err
					}
				}
			}
			if !disabled {
				return struct{}{}, true, nil
			}
		}

		link, err := locate.PickHidden(ctx, w.page, []string{
			"a[href*='attestation'][href*='prelevement']",
			"a[href*='attestation'][href*='pdf']",
			"a[href*='prelevement'][href*='pdf']",
		})
		if err != nil {
			return struct{}{}, false, err
		}
		if link != nil {
			return struct{}{}, true, nil
		}

		text, err := w.page.BodyText(ctx)
		if err != nil {
			return struct{}{}, false, err
		}
		if textmatch.ContainsFold(text, "3 derniers mois") {
			present, err := w.prelevementsEntryPresent(ctx)
			if err != nil {
				return struct{}{}, false, err
			}
			if present {
				return struct{}{}, true, nil
			}
		}
		return struct{}{}, false, nil
	})
	return ok, err
}

// selectReportingPeriod selects the 3-month period: the exact radio input
// first, then a dropdown of periods, then a bare option by label.
func (w *navigoWorkflow) selectReportingPeriod(ctx context.Context) error {
	period, err := locate.Pick(ctx, w.page, navigoPeriodInput)
	if err != nil {
		return err
	}
	if period != nil {
		interact.SelectRadio(ctx, period, w.log)
		w.settle(ctx, 400*time.Millisecond)
		return nil
	}

	dropdown, err := locate.Pick(ctx, w.page, []string{
		"select",
		"button[aria-haspopup='listbox']",
		"div[role='combobox']",
		"input[role='combobox']",
	})
	if err != nil {
		return err
	}
	if dropdown != nil {
		if err := w.selectLastThreeMonths(ctx, dropdown); err != nil {
			return err
		}
		w.settle(ctx, 600*time.Millisecond)
		return nil
	}

	option, err := locate.FindClickableByText(ctx, w.page, "3 derniers mois")
	if err != nil {
		return err
	}
	if option != nil {
		interact.Click(ctx, option, w.log)
		w.settle(ctx, 800*time.Millisecond)
	}
	return nil
}

func (w *navigoWorkflow) selectLastThreeMonths(ctx context.Context, dropdown browser.Element) error {
	tag, err := dropdown.TagName(ctx)
	if err != nil {
		return err
	}
	if tag == "select" {
		selected, err := dropdown.SelectOptionByLabel(ctx, "3 derniers mois")
		if err != nil {
			return err
		}
		if selected {
			return dropdown.DispatchChange(ctx)
		}
	}

	interact.Click(ctx, dropdown, w.log)
	w.settle(ctx, 300*time.Millisecond)
	option, err := locate.FindClickableByText(ctx, w.page, "3 derniers mois")
	if err != nil {
		return err
	}
	if option != nil {
		interact.Click(ctx, option, w.log)
	}
	return nil
}

// pageDiagnostics summarizes what the page offers when billing navigation
// fails, to make the failure actionable.
func (w *navigoWorkflow) pageDiagnostics(ctx context.Context) (string, error) {
	loc, err := w.location(ctx)
	if err != nil {
		return "", err
	}
	text, err := w.page.BodyText(ctx)
	if err != nil {
		return "", err
	}
	folded := textmatch.Fold(text)

	var candidates []string
	nodes, err := w.page.Query(ctx, "a[href],button,[role='button']")
	if err != nil {
		return "", err
	}
	for _, node := range nodes {
		if len(candidates) >= 20 {
			break
		}
		label, err := node.Text(ctx)
		if err != nil {
			return "", err
		}
		label = textmatch.Fold(label)
		if len(label) > 80 {
			label = label[:80]
		}
		href, _, err := node.Attr(ctx, "href")
		if err != nil {
			return "", err
		}
		line := label
		if href != "" {
			line = label + " -> " + href
		}
		for _, keyword := range []string{"navigo", "prelev", "attestation", "facture", "justificatif"} {
			if strings.Contains(line, keyword) {
				candidates = append(candidates, line)
				break
			}
		}
	}

	return fmt.Sprintf("href=%s path=%s hasMonNavigoText=%t hasPrelevementsText=%t hasAttestationsText=%t candidates=[%s]",
		loc.String(), loc.Path,
		strings.Contains(folded, "mon navigo"),
		strings.Contains(folded, "prelevement"),
		strings.Contains(folded, "attestation"),
		strings.Join(candidates, " | ")), nil
}
