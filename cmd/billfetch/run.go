package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/profile"
)

var flagRunProvider string

var runCmd = &cobra.Command{
	Use:   "run <action>",
	Short: "Execute a single action against a portal page",
	Long: `run opens the portal of --provider (or the expense tool for the
CHECK_SESSION / CLICK_NEW_TRANSACTION / AUTOFILL_TRANSACTION /
UPLOAD_DOCUMENT actions) and executes exactly one action, printing the
structured response. The fetch and expense commands sequence these for
the common flows; run exists for driving one step at a time.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: actionNames(),
	RunE:      runOne,
}

func init() {
	runCmd.Flags().StringVar(&flagRunProvider, "provider", "", "billing portal identity (required for provider actions)")
	runCmd.Flags().StringVar(&flagUsername, "username", "", "portal login for AUTH_PROVIDER")
	runCmd.Flags().StringVar(&flagPassword, "password", "", "portal password for AUTH_PROVIDER")
	runCmd.Flags().StringVar(&flagAccountType, "account-type", "", "contract to select for NAVIGATE_BILLING")

	rootCmd.AddCommand(runCmd)
}

func actionNames() []string {
	kinds := []action.Kind{
		action.KindCheckProviderSession,
		action.KindCheckProviderBillingReady,
		action.KindAuthProvider,
		action.KindNavigateBilling,
		action.KindDownloadAndExtractBill,
		action.KindCheckSession,
		action.KindClickNewTransaction,
		action.KindAutofillTransaction,
		action.KindUploadDocument,
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

func expenseKind(kind action.Kind) bool {
	switch kind {
	case action.KindCheckSession, action.KindClickNewTransaction,
		action.KindAutofillTransaction, action.KindUploadDocument:
		return true
	}
	return false
}

func runOne(cmd *cobra.Command, args []string) error {
	kind := action.Kind(strings.ToUpper(args[0]))

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	payload := action.Payload{
		Username:    credential(flagUsername, "BILLFETCH_USERNAME"),
		Password:    credential(flagPassword, "BILLFETCH_PASSWORD"),
		AccountType: flagAccountType,
	}

	id := profile.Navan
	if !expenseKind(kind) {
		id = profile.Identity(flagRunProvider)
		if !knownProvider(id) {
			return fmt.Errorf("action %s needs --provider, run \"billfetch providers\" for the list", kind)
		}
		payload.Provider = id
	}

	startURL, err := portalURL(a.cfg, id)
	if err != nil {
		return err
	}
	page, err := a.openPortal(startURL)
	if err != nil {
		return err
	}

	mux, _ := buildMux(a, page)
	resp := mux.Dispatch(cmd.Context(), action.Request{Kind: kind, Payload: payload})
	if err := a.render.Response(kind, &resp); err != nil {
		a.log.Warn("render failed", zap.Error(err))
	}
	if !resp.OK {
		return fmt.Errorf("%s failed", kind)
	}
	return nil
}
