package provider

import (
	"context"
	"net/url"
	"time"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/artifact"
	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/interact"
	"github.com/billfetch/billfetch/pkg/locate"
	"github.com/billfetch/billfetch/pkg/wait"
)

var captchaSelectors = []string{
	"iframe[src*='captcha']",
	".g-recaptcha",
	"#captcha",
	"[id*='captcha']",
	"[class*='captcha']",
	"input[name*='captcha']",
}

// captchaPresent reports any captcha affordance in the document, visible or
// not: an invisible widget still blocks scripted submission.
func (e *env) captchaPresent(ctx context.Context) (bool, error) {
	el, err := locate.PickHidden(ctx, e.page, captchaSelectors)
	if err != nil {
		return false, err
	}
	return el != nil, nil
}

// loginFieldsVisible reports whether either credential field of the
// provider's login form is currently visible.
func (e *env) loginFieldsVisible(ctx context.Context) (bool, error) {
	username, err := locate.Pick(ctx, e.page, e.prof.Login.Username)
	if err != nil {
		return false, err
	}
	if username != nil {
		return true, nil
	}
	password, err := locate.Pick(ctx, e.page, e.prof.Login.Password)
	if err != nil {
		return false, err
	}
	return password != nil, nil
}

// location returns the page's current URL.
func (e *env) location(ctx context.Context) (*url.URL, error) {
	loc, err := e.page.Location(ctx)
	if err != nil {
		return nil, action.NewError(action.CodeActionFailed, "read page location: %v", err)
	}
	return loc, nil
}

// prefill writes value into el when value is non-empty.
func (e *env) prefill(ctx context.Context, el browser.Element, value string) {
	if el == nil || value == "" {
		return
	}
	interact.SetValue(ctx, el, value, e.log)
}

// settle pauses for d, bounded by ctx. Portals need a beat after a submit
// before their next state is readable.
func (e *env) settle(ctx context.Context, d time.Duration) {
	wait.Sleep(ctx, d)
}

// downloadControl is the generic control lookup: the first visible download
// button candidate within timeout.
func (e *env) downloadControl(ctx context.Context, timeout time.Duration) (browser.Element, error) {
	el, _, err := locate.WaitVisible(ctx, e.page, e.prof.Billing.DownloadButton, timeout)
	return el, err
}

// resolveAndName resolves the document URL behind control and derives its
// filename. When no URL resolves up front, the control is clicked and the
// resolver polls for one; didClick reports whether that happened.
func (e *env) resolveAndName(ctx context.Context, control browser.Element, hints artifact.NameHints) (href, fileName string, didClick bool, err error) {
	before, err := artifact.SnapshotResources(ctx, e.page)
	if err != nil {
		return "", "", false, err
	}

	href, err = artifact.ResolveURL(ctx, e.page, control, before)
	if err != nil {
		return "", "", false, err
	}
	if href == "" {
		interact.Click(ctx, control, e.log)
		didClick = true
		href, _, err = artifact.WaitForURL(ctx, e.page, control, before, 8*time.Second)
		if err != nil {
			return "", "", false, err
		}
	}

	nameSource := href
	if nameSource == "" {
		loc, lerr := e.location(ctx)
		if lerr != nil {
			return "", "", false, lerr
		}
		nameSource = loc.String()
	}
	fileName = artifact.DeriveFileName(e.id, nameSource, "application/pdf", "", hints, e.now())
	return href, fileName, didClick, nil
}

// extractionResult assembles the download result shared by all variants.
func (e *env) extractionResult(ctx context.Context, fileName, href string, hints *artifact.Hints) (*action.DownloadResult, error) {
	billText, err := e.page.BodyText(ctx)
	if err != nil {
		return nil, err
	}
	return &action.DownloadResult{
		BillText: billText,
		Document: &artifact.Artifact{
			FileName:             fileName,
			MimeType:             "application/pdf",
			SourceURL:            href,
			ManualUploadRequired: true,
			Hints:                hints,
		},
	}, nil
}
