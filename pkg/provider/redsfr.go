package provider

import (
	"context"
	"time"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/artifact"
	"github.com/billfetch/billfetch/pkg/interact"
	"github.com/billfetch/billfetch/pkg/locate"
	"github.com/billfetch/billfetch/pkg/textmatch"
)

// redSFRWorkflow drives the Red by SFR client area. Its login page is
// captcha-prone, so authentication only prefills the credential fields and
// hands the submit to the human.
type redSFRWorkflow struct {
	env
}

func (w *redSFRWorkflow) authenticated(ctx context.Context) (bool, error) {
	visible, err := w.loginFieldsVisible(ctx)
	if err != nil {
		return false, err
	}
	return !visible, nil
}

func (w *redSFRWorkflow) CheckSession(ctx context.Context) (*action.SessionResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	return &action.SessionResult{Authenticated: ok}, nil
}

func (w *redSFRWorkflow) CheckBillingReady(ctx context.Context) (*action.BillingReadyResult, error) {
	text, err := w.page.BodyText(ctx)
	if err != nil {
		return nil, err
	}
	if textmatch.ContainsFold(text, "vos factures") || textmatch.ContainsFold(text, "facture fixe") {
		return &action.BillingReadyResult{Ready: true}, nil
	}
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	return &action.BillingReadyResult{Ready: ok}, nil
}

func (w *redSFRWorkflow) Authenticate(ctx context.Context, creds Credentials) (*action.SessionResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return &action.SessionResult{Authenticated: true, SkippedLogin: true}, nil
	}

	username, _, err := locate.WaitVisible(ctx, w.page, w.prof.Login.Username, 6*time.Second)
	if err != nil {
		return nil, err
	}
	w.prefill(ctx, username, creds.Username)

	password, _, err := locate.WaitVisible(ctx, w.page, w.prof.Login.Password, 6*time.Second)
	if err != nil {
		return nil, err
	}
	w.prefill(ctx, password, creds.Password)

	// The captcha makes a scripted submit pointless; the human logs in with
	// the prefilled form.
	return &action.SessionResult{Authenticated: false, ManualLoginRequired: true}, nil
}

func (w *redSFRWorkflow) NavigateBilling(ctx context.Context, opts NavigateOptions) (*action.NavigationResult, error) {
	loc, err := w.location(ctx)
	if err != nil {
		return nil, err
	}
	return &action.NavigationResult{Navigated: true, DetailURL: loc.String()}, nil
}

func (w *redSFRWorkflow) DownloadAndExtract(ctx context.Context) (*action.DownloadResult, error) {
	control, err := w.downloadControl(ctx, 12*time.Second)
	if err != nil {
		return nil, err
	}
	if control == nil {
		return nil, action.NewError(action.CodeElementNotFound, "could not find red by sfr PDF download button")
	}

	href, fileName, didClick, err := w.resolveAndName(ctx, control, artifact.NameHints{})
	if err != nil {
		return nil, err
	}
	if !didClick {
		interact.Click(ctx, control, w.log)
	}
	return w.extractionResult(ctx, fileName, href, nil)
}
