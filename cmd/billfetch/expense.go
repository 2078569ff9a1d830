package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/artifact"
	"github.com/billfetch/billfetch/pkg/expense"
	"github.com/billfetch/billfetch/pkg/profile"
)

var (
	flagMerchant    string
	flagAmount      float64
	flagCurrency    string
	flagDate        string
	flagTax         float64
	flagDescription string

	flagFileName    string
	flagSourceURL   string
	flagMimeType    string
	flagExpenseType string
	flagHintDate    string
)

var expenseCmd = &cobra.Command{
	Use:   "expense",
	Short: "Drive the Navan expense tool",
	Long: `expense opens the Navan expense tool in the persistent browser session
and drives the transaction composer. Login runs through Google SSO and
is never automated; run "expense check-session" first when in doubt.`,
}

var expenseCheckSessionCmd = &cobra.Command{
	Use:   "check-session",
	Short: "Probe whether the expense tool's session is active",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExpenseAction(cmd, action.KindCheckSession, action.Payload{})
	},
}

var expenseNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Open the transaction composer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExpenseAction(cmd, action.KindClickNewTransaction, action.Payload{})
	},
}

var expenseAutofillCmd = &cobra.Command{
	Use:   "autofill",
	Short: "Fill the open transaction composer from the flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		draft := &action.Draft{
			Merchant:           flagMerchant,
			Amount:             flagAmount,
			Currency:           flagCurrency,
			TransactionDateISO: flagDate,
			Description:        flagDescription,
		}
		if cmd.Flags().Changed("tax") {
			tax := flagTax
			draft.TaxAmount = &tax
		}
		return runExpenseAction(cmd, action.KindAutofillTransaction, action.Payload{Draft: draft})
	},
}

var expenseUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Drive the receipt-upload transaction flow for a downloaded invoice",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := &artifact.Artifact{
			FileName:  flagFileName,
			MimeType:  flagMimeType,
			SourceURL: flagSourceURL,
		}
		if flagExpenseType != "" || flagHintDate != "" {
			doc.Hints = &artifact.Hints{
				ExpenseType:        flagExpenseType,
				TransactionDateISO: flagHintDate,
			}
		}
		return runExpenseAction(cmd, action.KindUploadDocument, action.Payload{Document: doc})
	},
}

var expenseWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Autofill the transaction form whenever it appears, until interrupted",
	Long: `watch keeps the browser open and observes route changes and page
mutations. Each time the transaction form route appears it runs one
autofill pass (expense category plus the custom description field) and
then stays quiet until the route changes again. Stop with Ctrl-C.`,
	RunE: runExpenseWatch,
}

func init() {
	expenseAutofillCmd.Flags().StringVar(&flagMerchant, "merchant", "", "merchant name")
	expenseAutofillCmd.Flags().Float64Var(&flagAmount, "amount", 0, "transaction amount")
	expenseAutofillCmd.Flags().StringVar(&flagCurrency, "currency", "EUR", "currency code")
	expenseAutofillCmd.Flags().StringVar(&flagDate, "date", "", "transaction date as YYYY-MM-DD")
	expenseAutofillCmd.Flags().Float64Var(&flagTax, "tax", 0, "tax amount")
	expenseAutofillCmd.Flags().StringVar(&flagDescription, "description", "", "transaction description")

	expenseUploadCmd.Flags().StringVar(&flagFileName, "file-name", "", "invoice filename")
	expenseUploadCmd.Flags().StringVar(&flagSourceURL, "source-url", "", "invoice source URL")
	expenseUploadCmd.Flags().StringVar(&flagMimeType, "mime-type", "application/pdf", "invoice MIME type")
	expenseUploadCmd.Flags().StringVar(&flagExpenseType, "expense-type", "", "expense category label to select")
	expenseUploadCmd.Flags().StringVar(&flagHintDate, "date", "", "transaction date hint as YYYY-MM-DD")
	expenseUploadCmd.MarkFlagRequired("file-name")

	expenseCmd.AddCommand(expenseCheckSessionCmd)
	expenseCmd.AddCommand(expenseNewCmd)
	expenseCmd.AddCommand(expenseAutofillCmd)
	expenseCmd.AddCommand(expenseUploadCmd)
	expenseCmd.AddCommand(expenseWatchCmd)
}

// openExpense starts the browser on the expense tool and wires the mux.
func openExpense(a *app) (*action.Mux, *expense.Workflow, error) {
	startURL, err := portalURL(a.cfg, profile.Navan)
	if err != nil {
		return nil, nil, err
	}
	page, err := a.openPortal(startURL)
	if err != nil {
		return nil, nil, err
	}
	mux, exp := buildMux(a, page)
	return mux, exp, nil
}

func runExpenseAction(cmd *cobra.Command, kind action.Kind, payload action.Payload) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	mux, _, err := openExpense(a)
	if err != nil {
		return err
	}

	resp := mux.Dispatch(cmd.Context(), action.Request{Kind: kind, Payload: payload})
	if err := a.render.Response(kind, &resp); err != nil {
		a.log.Warn("render failed", zap.Error(err))
	}
	if !resp.OK {
		return fmt.Errorf("%s failed", kind)
	}
	return nil
}

func runExpenseWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	_, exp, err := openExpense(a)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Fprintln(cmd.OutOrStdout(), "watching for the transaction form, stop with Ctrl-C")
	if err := exp.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
