package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Defaults.Login.Username)
	assert.NotEmpty(t, cfg.Defaults.Billing.DownloadButton)
	for _, id := range Known() {
		_, ok := cfg.Providers[id]
		assert.True(t, ok, "missing provider profile for %s", id)
	}
}

func TestForMergesOverrideKeyLevel(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	orange := cfg.For(Orange)
	// Overridden keys replace wholesale.
	assert.Equal(t, "input#login", orange.Login.Username[0])
	// Keys the override does not define inherit from the defaults.
	assert.Equal(t, cfg.Defaults.Billing.InvoiceLinks, orange.Billing.InvoiceLinks)
	assert.Equal(t, cfg.Defaults.CategoryLabels, orange.CategoryLabels)
}

func TestForCarriesExpenseToolSelectors(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	navan := cfg.For(Navan)
	assert.NotEmpty(t, navan.Home.AutofillFromReceipt)
	assert.NotEmpty(t, navan.Home.NewTransaction)
	assert.NotEmpty(t, navan.TransactionForm.Merchant)
	assert.NotEmpty(t, navan.TransactionForm.ExpenseType)

	// The billing portals never define composer selectors and inherit
	// the (empty) defaults.
	orange := cfg.For(Orange)
	assert.Empty(t, orange.TransactionForm.Merchant)
}

func TestForUnknownIdentityFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	p := cfg.For(Identity("unknown_portal"))
	assert.Equal(t, cfg.Defaults, p)
}

func TestLoadUserOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "selectors.yaml")
	data := []byte(`
providers:
  orange:
    login:
      username:
        - "input#new-login"
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	orange := cfg.For(Orange)
	assert.Equal(t, []string{"input#new-login"}, orange.Login.Username)
	// Untouched keys keep their embedded values.
	assert.Equal(t, "input#password", orange.Login.Password[0])
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Defaults.Login.Username)
}

func TestDetectHost(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		host string
		want Identity
	}{
		{"espace-client.orange.fr", Orange},
		{"mobile.free.fr", FreeMobile},
		{"adsl.free.fr", Free},
		{"www.jegeremacartenavigo.iledefrance-mobilites.fr", Navigo},
		{"espace-client-red.sfr.fr", RedSFR},
		{"app.navan.com", Navan},
		{"example.com", Generic},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.DetectHost(tt.host))
		})
	}
}
