// Package hints derives expense metadata from a downloaded bill: the
// transaction date and an expense-type label consumed by the expense-entry
// workflow. Rule-based derivation always works offline; an optional LLM
// classifier refines the label when an API key is configured, and is never
// required for workflow success.
package hints

import (
	"time"

	"github.com/billfetch/billfetch/pkg/artifact"
	"github.com/billfetch/billfetch/pkg/profile"
	"github.com/billfetch/billfetch/pkg/textmatch"
)

// Derive builds hints from the provider identity and the bill's visible
// text. The date comes from the text when one is readable (ISO forms first,
// then French "12 mars 2024" and month-only forms), else the start of the
// current month.
func Derive(id profile.Identity, billText string, now time.Time) artifact.Hints {
	h := artifact.Hints{ExpenseType: CategoryFor(id)}

	if date := textmatch.ExtractDateISO(billText); date != "" {
		h.TransactionDateISO = date
	} else if key := textmatch.ExtractMonthKey(billText); key != "" {
		h.TransactionDateISO = key[:4] + "-" + key[4:] + "-01"
	} else {
		h.TransactionDateISO = textmatch.MonthStartISO(now)
	}
	return h
}

// CategoryFor returns the rule-based expense-type label for a provider.
// Transit passes are commuter benefits; every billing portal this tool
// drives otherwise bills home connectivity.
func CategoryFor(id profile.Identity) string {
	if id == profile.Navigo {
		return "commuter benefits"
	}
	return "work from home"
}
