package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/hints"
	"github.com/billfetch/billfetch/pkg/profile"
)

var (
	flagUsername    string
	flagPassword    string
	flagAccountType string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <provider>",
	Short: "Download the latest invoice from a billing portal",
	Long: `fetch opens the provider's portal in a persistent browser session and
runs the full retrieval sequence: session check, login, billing
navigation, and invoice download. Credentials come from the flags or
from BILLFETCH_USERNAME / BILLFETCH_PASSWORD; when a CAPTCHA or SMS
challenge appears, the flow pauses for the human to solve it.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&flagUsername, "username", "", "portal login (falls back to BILLFETCH_USERNAME)")
	fetchCmd.Flags().StringVar(&flagPassword, "password", "", "portal password (falls back to BILLFETCH_PASSWORD)")
	fetchCmd.Flags().StringVar(&flagAccountType, "account-type", "", "contract to select on multi-contract accounts (mobile_internet or home_internet)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	id := profile.Identity(args[0])
	if !knownProvider(id) {
		return fmt.Errorf("unknown provider %q, run \"billfetch providers\" for the list", args[0])
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	startURL, err := portalURL(a.cfg, id)
	if err != nil {
		return err
	}
	page, err := a.openPortal(startURL)
	if err != nil {
		return err
	}

	mux, _ := buildMux(a, page)
	ctx := cmd.Context()

	dispatch := func(kind action.Kind, payload action.Payload) (action.Response, error) {
		payload.Provider = id
		resp := mux.Dispatch(ctx, action.Request{Kind: kind, Payload: payload})
		if err := a.render.Response(kind, &resp); err != nil {
			a.log.Warn("render failed", zap.Error(err))
		}
		return resp, ctx.Err()
	}

	resp, err := dispatch(action.KindCheckProviderSession, action.Payload{})
	if err != nil {
		return err
	}

	if session, ok := resp.Data.(*action.SessionResult); !ok || !session.Authenticated {
		resp, err = dispatch(action.KindAuthProvider, action.Payload{
			Username: credential(flagUsername, "BILLFETCH_USERNAME"),
			Password: credential(flagPassword, "BILLFETCH_PASSWORD"),
		})
		if err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("authentication failed")
		}
		if session, ok := resp.Data.(*action.SessionResult); ok && needsHuman(session) {
			waitForHuman(cmd, session)
		}
	}

	if resp, err = dispatch(action.KindCheckProviderBillingReady, action.Payload{}); err != nil {
		return err
	}
	if ready, ok := resp.Data.(*action.BillingReadyResult); ok && !ready.Ready {
		a.log.Warn("billing page not reported ready, attempting navigation anyway",
			zap.String("diagnostics", ready.Diagnostics))
	}

	if resp, err = dispatch(action.KindNavigateBilling, action.Payload{AccountType: flagAccountType}); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("billing navigation failed")
	}

	if resp, err = dispatch(action.KindDownloadAndExtractBill, action.Payload{}); err != nil {
		return err
	}
	result, ok := resp.Data.(*action.DownloadResult)
	if !ok || result.Document == nil {
		return fmt.Errorf("invoice download failed")
	}

	attachHints(ctx, a, id, result)
	a.render.OfferManualUpload(result.Document)
	return nil
}

func knownProvider(id profile.Identity) bool {
	for _, known := range profile.Known() {
		if id == known {
			return true
		}
	}
	return false
}

func credential(flagValue, envKey string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envKey)
}

func needsHuman(session *action.SessionResult) bool {
	return session.ManualLoginRequired || session.CaptchaRequired || session.SMSCodeRequired
}

// waitForHuman blocks until the user confirms the in-browser challenge is
// done. CAPTCHA and SMS codes are never automated.
func waitForHuman(cmd *cobra.Command, session *action.SessionResult) {
	switch {
	case session.CaptchaRequired:
		fmt.Fprintln(cmd.OutOrStdout(), "a CAPTCHA is blocking the login, solve it in the browser window and press Enter")
	case session.SMSCodeRequired:
		fmt.Fprintln(cmd.OutOrStdout(), "an SMS code is required, enter it in the browser window and press Enter")
	default:
		fmt.Fprintln(cmd.OutOrStdout(), "finish the login in the browser window and press Enter")
	}
	bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
}

// attachHints fills in expense-entry hints for the downloaded document when
// extraction produced none: a deterministic pass over the bill text, then an
// optional model-backed category refinement when an API key is configured.
func attachHints(ctx context.Context, a *app, id profile.Identity, result *action.DownloadResult) {
	if result.Document.Hints != nil {
		return
	}
	derived := hints.Derive(id, result.BillText, time.Now())

	if classifier := hints.NewClassifier(os.Getenv("OPENAI_API_KEY"), a.log); classifier.Enabled() && result.BillText != "" {
		labels := []string{"work from home", "commuter benefits"}
		if label, err := classifier.Classify(ctx, result.BillText, labels); err == nil {
			derived.ExpenseType = label
		} else {
			a.log.Warn("category classification failed, keeping derived category", zap.Error(err))
		}
	}

	result.Document.Hints = &derived
}
