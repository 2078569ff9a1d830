package provider

import (
	"context"
	"time"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/artifact"
	"github.com/billfetch/billfetch/pkg/interact"
	"github.com/billfetch/billfetch/pkg/locate"
)

// genericWorkflow is the default variant for unrecognized portals: login
// fields absent means authenticated, single-form login with a two-step
// fallback, and a discoverable invoice link for navigation.
type genericWorkflow struct {
	env
}

func (w *genericWorkflow) authenticated(ctx context.Context) (bool, error) {
	visible, err := w.loginFieldsVisible(ctx)
	if err != nil {
		return false, err
	}
	return !visible, nil
}

func (w *genericWorkflow) CheckSession(ctx context.Context) (*action.SessionResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	return &action.SessionResult{Authenticated: ok}, nil
}

func (w *genericWorkflow) CheckBillingReady(ctx context.Context) (*action.BillingReadyResult, error) {
	ok, err := w.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	return &action.BillingReadyResult{Ready: ok}, nil
}

func (w *genericWorkflow) Authenticate(ctx context.Context, creds Credentials) (*action.SessionResult, error) {
	return w.env.genericAuthenticate(ctx, creds, w.authenticated)
}

// genericAuthenticate is the shared login flow: single form first, then the
// two-step continue-and-wait-for-password fallback. authenticated supplies
// the variant's session predicate for the skipped-login fast path.
func (e *env) genericAuthenticate(ctx context.Context, creds Credentials, authenticated func(context.Context) (bool, error)) (*action.SessionResult, error) {
	ok, err := authenticated(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return &action.SessionResult{Authenticated: true, SkippedLogin: true}, nil
	}

	captcha, err := e.captchaPresent(ctx)
	if err != nil {
		return nil, err
	}
	if captcha {
		return &action.SessionResult{Authenticated: false, CaptchaRequired: true}, nil
	}

	username, _, err := locate.WaitVisible(ctx, e.page, e.prof.Login.Username, 8*time.Second)
	if err != nil {
		return nil, err
	}
	if username == nil {
		ok, err := authenticated(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return &action.SessionResult{Authenticated: true, SkippedLogin: true}, nil
		}
		return nil, action.NewError(action.CodeElementNotFound, "could not locate provider username field")
	}
	e.prefill(ctx, username, creds.Username)

	// Some portals expose both fields on one form; others split them into a
	// username step and a password step.
	password, err := locate.Pick(ctx, e.page, e.prof.Login.Password)
	if err != nil {
		return nil, err
	}
	if password == nil {
		firstSubmit, err := locate.Pick(ctx, e.page, e.prof.Login.Submit)
		if err != nil {
			return nil, err
		}
		if firstSubmit != nil {
			interact.Click(ctx, firstSubmit, e.log)
		}
		password, _, err = locate.WaitVisible(ctx, e.page, e.prof.Login.Password, 10*time.Second)
		if err != nil {
			return nil, err
		}
	}
	if password == nil {
		return nil, action.NewError(action.CodeElementNotFound, "could not locate provider password field after username step")
	}
	e.prefill(ctx, password, creds.Password)

	if creds.Password == "" && !interact.HasValue(ctx, password) {
		return &action.SessionResult{Authenticated: false, ManualLoginRequired: true}, nil
	}

	submit, err := locate.Pick(ctx, e.page, e.prof.Login.Submit)
	if err != nil {
		return nil, err
	}
	if submit == nil {
		return nil, action.NewError(action.CodeElementNotFound, "could not locate provider submit button")
	}
	interact.Click(ctx, submit, e.log)

	e.settle(ctx, 1500*time.Millisecond)
	captcha, err = e.captchaPresent(ctx)
	if err != nil {
		return nil, err
	}
	if captcha {
		return &action.SessionResult{Authenticated: false, CaptchaRequired: true}, nil
	}
	return &action.SessionResult{Authenticated: true}, nil
}

func (w *genericWorkflow) NavigateBilling(ctx context.Context, opts NavigateOptions) (*action.NavigationResult, error) {
	entry, _, err := locate.WaitVisible(ctx, w.page, w.defaults.Billing.InvoiceLinks, 8*time.Second)
	if err != nil {
		return nil, err
	}
	loc, err := w.location(ctx)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		href, ok, err := entry.Attr(ctx, "href")
		if err != nil {
			return nil, err
		}
		if ok && href != "" {
			if ref, perr := loc.Parse(href); perr == nil {
				return &action.NavigationResult{Navigated: true, DetailURL: ref.String()}, nil
			}
		}
		interact.Click(ctx, entry, w.log)
	}
	return &action.NavigationResult{Navigated: true, DetailURL: loc.String()}, nil
}

func (w *genericWorkflow) DownloadAndExtract(ctx context.Context) (*action.DownloadResult, error) {
	control, err := w.downloadControl(ctx, 12*time.Second)
	if err != nil {
		return nil, err
	}
	if control == nil {
		return nil, action.NewError(action.CodeElementNotFound, "could not find provider PDF download button")
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
