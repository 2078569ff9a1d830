// Package provider implements one workflow variant per billing portal. Each
// variant is a self-contained strategy behind the same four-operation
// interface, selected by identity; the portals share almost nothing beyond
// the locate/interact/wait primitives, so there is no common base flow.
package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/profile"
)

// Credentials feeds an authentication attempt. Either field may be empty;
// empty fields are left for the human instead of being submitted blank.
type Credentials struct {
	Username string
	Password string
}

// NavigateOptions tunes billing navigation.
type NavigateOptions struct {
	// AccountType disambiguates multi-contract accounts:
	// "mobile_internet" or "home_internet" (the default).
	AccountType string
}

// Workflow is the four-operation capability every provider variant
// implements, plus the billing readiness probe.
type Workflow interface {
	CheckSession(ctx context.Context) (*action.SessionResult, error)
	CheckBillingReady(ctx context.Context) (*action.BillingReadyResult, error)
	Authenticate(ctx context.Context, creds Credentials) (*action.SessionResult, error)
	NavigateBilling(ctx context.Context, opts NavigateOptions) (*action.NavigationResult, error)
	DownloadAndExtract(ctx context.Context) (*action.DownloadResult, error)
}

// Options configures a workflow instance.
type Options struct {
	Page   browser.Page
	Config *profile.Config
	Log    *zap.Logger

	// DownloadDir receives force-downloaded documents.
	DownloadDir string

	// Now supplies the clock; defaults to time.Now.
	Now func() time.Time
}

// New returns the workflow variant for id. Unknown identities get the
// generic variant with the default selector profile.
func New(id profile.Identity, opts Options) Workflow {
	e := newEnv(id, opts)
	switch id {
	case profile.Orange:
		return &orangeWorkflow{env: e}
	case profile.Free:
		return &freeWorkflow{env: e}
	case profile.FreeMobile:
		return &freeMobileWorkflow{env: e}
	case profile.Navigo:
		return &navigoWorkflow{env: e}
	case profile.RedSFR:
		return &redSFRWorkflow{env: e}
	default:
		return &genericWorkflow{env: e}
	}
}

// env bundles the shared dependencies of a workflow variant.
type env struct {
	id       profile.Identity
	page     browser.Page
	prof     profile.Profile
	defaults profile.Profile
	log      *zap.Logger
	dir      string
	now      func() time.Time
}

func newEnv(id profile.Identity, opts Options) env {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return env{
		id:       id,
		page:     opts.Page,
		prof:     opts.Config.For(id),
		defaults: opts.Config.For(profile.Generic),
		log:      log.Named(string(id)),
		dir:      opts.DownloadDir,
		now:      now,
	}
}
