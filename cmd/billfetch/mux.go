package main

import (
	"context"
	"time"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/expense"
	"github.com/billfetch/billfetch/pkg/provider"
)

// buildMux wires every action kind to a workflow over page. Provider
// operations build their variant per request from the payload's provider
// field; the expense operations share one workflow instance, returned so
// the watch command can reuse its guard state.
func buildMux(a *app, page browser.Page) (*action.Mux, *expense.Workflow) {
	mux := action.NewMux(a.log)

	providerFor := func(req action.Request) provider.Workflow {
		return provider.New(req.Payload.Provider, provider.Options{
			Page:        page,
			Config:      a.cfg,
			Log:         a.log,
			DownloadDir: flagDownloadDir,
			Now:         time.Now,
		})
	}

	mux.Handle(action.KindCheckProviderSession, func(ctx context.Context, req action.Request) (any, error) {
		return providerFor(req).CheckSession(ctx)
	})
	mux.Handle(action.KindAuthProvider, func(ctx context.Context, req action.Request) (any, error) {
		return providerFor(req).Authenticate(ctx, provider.Credentials{
			Username: req.Payload.Username,
			Password: req.Payload.Password,
		})
	})
	mux.Handle(action.KindCheckProviderBillingReady, func(ctx context.Context, req action.Request) (any, error) {
		return providerFor(req).CheckBillingReady(ctx)
	})
	mux.Handle(action.KindNavigateBilling, func(ctx context.Context, req action.Request) (any, error) {
		return providerFor(req).NavigateBilling(ctx, provider.NavigateOptions{
			AccountType: req.Payload.AccountType,
		})
	})
	mux.Handle(action.KindDownloadAndExtractBill, func(ctx context.Context, req action.Request) (any, error) {
		return providerFor(req).DownloadAndExtract(ctx)
	})

	exp := expense.New(expense.Options{Page: page, Config: a.cfg, Log: a.log})

	mux.Handle(action.KindCheckSession, func(ctx context.Context, req action.Request) (any, error) {
		return exp.CheckSession(ctx)
	})
	mux.Handle(action.KindClickNewTransaction, func(ctx context.Context, req action.Request) (any, error) {
		return exp.ClickNewTransaction(ctx)
	})
	mux.Handle(action.KindAutofillTransaction, func(ctx context.Context, req action.Request) (any, error) {
		return exp.AutofillTransaction(ctx, req.Payload.Draft)
	})
	mux.Handle(action.KindUploadDocument, func(ctx context.Context, req action.Request) (any, error) {
		return exp.UploadDocument(ctx, req.Payload.Document)
	})

	return mux, exp
}
