// Package profile holds the externally-supplied selector configuration:
// ordered selector candidates per logical field, keyed by provider identity,
// with provider-specific overrides merged key-level over defaults.
package profile

import (
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Identity selects one provider workflow variant and one selector profile.
type Identity string

const (
	Orange     Identity = "orange"
	Free       Identity = "free"
	FreeMobile Identity = "free_mobile"
	Navigo     Identity = "navigo"
	RedSFR     Identity = "redsfr"
	Navan      Identity = "navan"

	// Generic is the fallback for unknown identities: default profile,
	// generic workflow.
	Generic Identity = "generic"
)

// Known lists the provider identities with a dedicated workflow variant.
func Known() []Identity {
	return []Identity{Orange, Free, FreeMobile, Navigo, RedSFR}
}

// Login groups the selector candidates of an authentication form.
type Login struct {
	Username []string `yaml:"username"`
	Password []string `yaml:"password"`
	Submit   []string `yaml:"submit"`
}

// Billing groups the selector candidates of a billing page.
type Billing struct {
	DownloadButton []string `yaml:"downloadButton"`
	InvoiceLinks   []string `yaml:"invoiceLinks"`
	AccountItems   []string `yaml:"accountItems"`
}

// Home groups the selector candidates of the expense tool's landing page.
type Home struct {
	AutofillFromReceipt     []string `yaml:"autofillFromReceipt"`
	NewTransaction          []string `yaml:"newTransaction"`
	CreateSingleTransaction []string `yaml:"createSingleTransaction"`
}

// TransactionForm groups the selector candidates of the expense tool's
// transaction composer fields.
type TransactionForm struct {
	Merchant    []string `yaml:"merchant"`
	Amount      []string `yaml:"amount"`
	Currency    []string `yaml:"currency"`
	Date        []string `yaml:"date"`
	Tax         []string `yaml:"tax"`
	Description []string `yaml:"description"`
	ExpenseType []string `yaml:"expenseType"`
	DraftTag    []string `yaml:"draftTag"`
}

// Profile is the full selector profile of one provider.
type Profile struct {
	// Hosts are glob patterns matched against page hostnames to detect
	// which provider a page belongs to.
	Hosts []string `yaml:"hosts"`

	Login   Login   `yaml:"login"`
	Billing Billing `yaml:"billing"`

	// Home and TransactionForm only carry values for the expense tool's
	// profile; provider profiles leave them empty.
	Home            Home            `yaml:"home"`
	TransactionForm TransactionForm `yaml:"transactionForm"`

	// CategoryLabels are the synonym labels tried when selecting an
	// expense category, in preference order. Locale synonyms are
	// configuration, not logic.
	CategoryLabels []string `yaml:"categoryLabels"`
}

// Config is the process-wide selector configuration.
type Config struct {
	Defaults  Profile              `yaml:"defaults"`
	Providers map[Identity]Profile `yaml:"providers"`
}

// Load reads a YAML config from path and merges it over the embedded
// defaults. A missing path returns the embedded defaults unchanged.
func Load(path string) (*Config, error) {
	cfg, err := parse(defaultsYAML)
	if err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read selector config: %w", err)
	}
	override, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse selector config %s: %w", path, err)
	}

	cfg.Defaults = mergeProfile(cfg.Defaults, override.Defaults)
	for id, p := range override.Providers {
		cfg.Providers[id] = mergeProfile(cfg.Providers[id], p)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[Identity]Profile)
	}
	return &cfg, nil
}

// For resolves the effective profile of id: the provider's overrides merged
// key-level over the defaults. Unknown identities get the default profile.
func (c *Config) For(id Identity) Profile {
	specific, ok := c.Providers[id]
	if !ok {
		return c.Defaults
	}
	return mergeProfile(c.Defaults, specific)
}

// mergeProfile overlays override on base: a key the override defines
// replaces the base's value wholesale, every other key inherits.
func mergeProfile(base, override Profile) Profile {
	merged := base
	if len(override.Hosts) > 0 {
		merged.Hosts = override.Hosts
	}
	if len(override.Login.Username) > 0 {
		merged.Login.Username = override.Login.Username
	}
	if len(override.Login.Password) > 0 {
		merged.Login.Password = override.Login.Password
	}
	if len(override.Login.Submit) > 0 {
		merged.Login.Submit = override.Login.Submit
	}
	if len(override.Billing.DownloadButton) > 0 {
		merged.Billing.DownloadButton = override.Billing.DownloadButton
	}
	if len(override.Billing.InvoiceLinks) > 0 {
		merged.Billing.InvoiceLinks = override.Billing.InvoiceLinks
	}
	if len(override.Billing.AccountItems) > 0 {
		merged.Billing.AccountItems = override.Billing.AccountItems
	}
	if len(override.Home.AutofillFromReceipt) > 0 {
		merged.Home.AutofillFromReceipt = override.Home.AutofillFromReceipt
	}
	if len(override.Home.NewTransaction) > 0 {
		merged.Home.NewTransaction = override.Home.NewTransaction
	}
	if len(override.Home.CreateSingleTransaction) > 0 {
		merged.Home.CreateSingleTransaction = override.Home.CreateSingleTransaction
	}
	if len(override.TransactionForm.Merchant) > 0 {
		merged.TransactionForm.Merchant = override.TransactionForm.Merchant
	}
	if len(override.TransactionForm.Amount) > 0 {
		merged.TransactionForm.Amount = override.TransactionForm.Amount
	}
	if len(override.TransactionForm.Currency) > 0 {
		merged.TransactionForm.Currency = override.TransactionForm.Currency
	}
	if len(override.TransactionForm.Date) > 0 {
		merged.TransactionForm.Date = override.TransactionForm.Date
	}
	if len(override.TransactionForm.Tax) > 0 {
		merged.TransactionForm.Tax = override.TransactionForm.Tax
	}
	if len(override.TransactionForm.Description) > 0 {
		merged.TransactionForm.Description = override.TransactionForm.Description
	}
	if len(override.TransactionForm.ExpenseType) > 0 {
		merged.TransactionForm.ExpenseType = override.TransactionForm.ExpenseType
	}
	if len(override.TransactionForm.DraftTag) > 0 {
		merged.TransactionForm.DraftTag = override.TransactionForm.DraftTag
	}
	if len(override.CategoryLabels) > 0 {
		merged.CategoryLabels = override.CategoryLabels
	}
	return merged
}

// DetectHost maps a page hostname to the provider identity whose host
// patterns match it. Returns Generic when no provider claims the host.
func (c *Config) DetectHost(hostname string) Identity {
	hostname = strings.ToLower(hostname)
	for id, p := range c.Providers {
		for _, pattern := range p.Hosts {
			g, err := glob.Compile(strings.ToLower(pattern))
			if err != nil {
				continue
			}
			if g.Match(hostname) {
				return id
			}
		}
	}
	return Generic
}
