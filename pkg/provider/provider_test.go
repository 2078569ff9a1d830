package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/browser/fakepage"
	"github.com/billfetch/billfetch/pkg/profile"
)

var fixedNow = time.Date(2024, 3, 17, 9, 30, 0, 0, time.UTC)

func newWorkflow(t *testing.T, id profile.Identity, page *fakepage.Page) (Workflow, string) {
	t.Helper()
	cfg, err := profile.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	w := New(id, Options{
		Page:        page,
		Config:      cfg,
		DownloadDir: dir,
		Now:         func() time.Time { return fixedNow },
	})
	return w, dir
}

func TestNewSelectsVariantByIdentity(t *testing.T) {
	page := fakepage.New("https://example.test/", fakepage.El("body"))
	cfg, err := profile.Load("")
	require.NoError(t, err)

	opts := Options{Page: page, Config: cfg}
	if _, ok := New(profile.Orange, opts).(*orangeWorkflow); !ok {
		t.Fatal("orange identity should select the orange variant")
	}
	if _, ok := New(profile.Navigo, opts).(*navigoWorkflow); !ok {
		t.Fatal("navigo identity should select the navigo variant")
	}
	if _, ok := New(profile.Identity("unknown"), opts).(*genericWorkflow); !ok {
		t.Fatal("unknown identity should fall back to the generic variant")
	}
}

func TestOrangeNavigateBillingSelectsContractByAccountType(t *testing.T) {
	mobileCard := fakepage.El("a").With(func(n *fakepage.Node) {
		n.Attrs["data-e2e"] = "123456789"
		n.Attrs["href"] = "/facture-paiement/123456789"
		n.TextContent = "Forfait mobile 120 Go"
	})
	internetCard := fakepage.El("a").With(func(n *fakepage.Node) {
		n.Attrs["data-e2e"] = "987654321"
		n.Attrs["href"] = "/facture-paiement/987654321"
		n.TextContent = "Offre internet Livebox"
	})
	page := fakepage.New(
		"https://espace-client.orange.fr/selectionner-un-contrat",
		fakepage.El("body", internetCard, mobileCard))

	w, _ := newWorkflow(t, profile.Orange, page)
	result, err := w.NavigateBilling(context.Background(), NavigateOptions{AccountType: "mobile_internet"})
	require.NoError(t, err)
	assert.True(t, result.Navigated)
	assert.Equal(t, "123456789", result.AccountID)
	assert.Equal(t, "https://espace-client.orange.fr/facture-paiement/123456789/detail-facture", result.DetailURL)
}

func TestOrangeNavigateBillingDefaultsToInternetContract(t *testing.T) {
	mobileCard := fakepage.El("a").With(func(n *fakepage.Node) {
		n.Attrs["data-e2e"] = "123456789"
		n.Attrs["href"] = "/facture-paiement/123456789"
		n.TextContent = "Forfait mobile 120 Go"
	})
	internetCard := fakepage.El("a").With(func(n *fakepage.Node) {
		n.Attrs["data-e2e"] = "987654321"
		n.Attrs["href"] = "/facture-paiement/987654321"
		n.TextContent = "Offre internet Livebox"
	})
	page := fakepage.New(
		"https://espace-client.orange.fr/selectionner-un-contrat",
		fakepage.El("body", mobileCard, internetCard))

	w, _ := newWorkflow(t, profile.Orange, page)
	result, err := w.NavigateBilling(context.Background(), NavigateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "987654321", result.AccountID)
}

func TestOrangeNavigateBillingRequiresContractSelectionPage(t *testing.T) {
	page := fakepage.New("https://espace-client.orange.fr/accueil", fakepage.El("body"))

	w, _ := newWorkflow(t, profile.Orange, page)
	_, err := w.NavigateBilling(context.Background(), NavigateOptions{})
	require.Error(t, err)
}

func TestFreeDownloadPrefersCurrentMonthInvoice(t *testing.T) {
	older := fakepage.El("a").With(func(n *fakepage.Node) {
		n.Attrs["href"] = "https://adsl.free.fr/facture_pdf.pl?no_facture=8812345&mois=202402"
		n.TextContent = "Facture février 2024"
	})
	current := fakepage.El("a").With(func(n *fakepage.Node) {
		n.Attrs["href"] = "https://adsl.free.fr/facture_pdf.pl?no_facture=8812345&mois=202403"
		n.TextContent = "Facture mars 2024"
	})
	page := fakepage.New("https://adsl.free.fr/moncompte/", fakepage.El("body", older, current))
	page.Fetches["https://adsl.free.fr/facture_pdf.pl?no_facture=8812345&mois=202403"] = &browser.FetchResult{
		Status:      200,
		Body:        []byte("%PDF-1.4 fake"),
		ContentType: "application/pdf",
	}

	w, dir := newWorkflow(t, profile.Free, page)
	result, err := w.DownloadAndExtract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "facture_8812345_202403.pdf", result.Document.FileName)
	assert.Equal(t, "https://adsl.free.fr/facture_pdf.pl?no_facture=8812345&mois=202403", result.Document.SourceURL)
	assert.True(t, result.Document.ManualUploadRequired)

	saved := filepath.Join(dir, "facture_8812345_202403.pdf")
	if _, err := os.Stat(saved); err != nil {
		t.Fatalf("expected forced download at %s: %v", saved, err)
	}
}

func TestFreeDownloadFallsBackToMostRecentMonth(t *testing.T) {
	older := fakepage.El("a").With(func(n *fakepage.Node) {
		n.Attrs["href"] = "https://adsl.free.fr/facture_pdf.pl?no_facture=8812345&mois=202311"
	})
	newer := fakepage.El("a").With(func(n *fakepage.Node) {
		n.Attrs["href"] = "https://adsl.free.fr/facture_pdf.pl?no_facture=8812345&mois=202401"
	})
	page := fakepage.New("https://adsl.free.fr/moncompte/", fakepage.El("body", older, newer))
	page.Fetches["https://adsl.free.fr/facture_pdf.pl?no_facture=8812345&mois=202401"] = &browser.FetchResult{
		Status: 200,
		Body:   []byte("%PDF-1.4 fake"),
	}

	w, _ := newWorkflow(t, profile.Free, page)
	result, err := w.DownloadAndExtract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "facture_8812345_202401.pdf", result.Document.FileName)
}

func TestGenericAuthenticateEmptyPasswordRequiresManualLogin(t *testing.T) {
	username := fakepage.El("input").With(func(n *fakepage.Node) {
		n.Attrs["name"] = "login"
	})
	password := fakepage.El("input").With(func(n *fakepage.Node) {
		n.Attrs["type"] = "password"
	})
	submit := fakepage.El("button").With(func(n *fakepage.Node) {
		n.Attrs["type"] = "submit"
	})
	page := fakepage.New("https://portal.example/login", fakepage.El("body", username, password, submit))

	w, _ := newWorkflow(t, profile.Generic, page)
	result, err := w.Authenticate(context.Background(), Credentials{Username: "someone@example.com"})
	require.NoError(t, err)
	assert.False(t, result.Authenticated)
	assert.True(t, result.ManualLoginRequired)
	assert.False(t, result.CaptchaRequired)

	assert.Zero(t, submit.ClickSequences, "submit must not be clicked without a password")
	assert.Zero(t, submit.NativeClicks)
	assert.Equal(t, "someone@example.com", username.Val)
}

func TestGenericAuthenticateSkipsLoginWhenSessionActive(t *testing.T) {
	page := fakepage.New("https://portal.example/account", fakepage.El("body"))

	w, _ := newWorkflow(t, profile.Generic, page)
	result, err := w.Authenticate(context.Background(), Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.True(t, result.Authenticated)
	assert.True(t, result.SkippedLogin)
}

func TestGenericAuthenticateReportsCaptcha(t *testing.T) {
	captcha := fakepage.El("div").With(func(n *fakepage.Node) {
		n.Classes = []string{"g-recaptcha"}
	})
	username := fakepage.El("input").With(func(n *fakepage.Node) {
		n.Attrs["name"] = "login"
	})
	page := fakepage.New("https://portal.example/login", fakepage.El("body", captcha, username))

	w, _ := newWorkflow(t, profile.Generic, page)
	result, err := w.Authenticate(context.Background(), Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.False(t, result.Authenticated)
	assert.True(t, result.CaptchaRequired)
}

func TestFreeMobileCheckSessionReportsOTPChallenge(t *testing.T) {
	otpInput := fakepage.El("input").With(func(n *fakepage.Node) {
		n.ID = "otp-code"
	})
	page := fakepage.New("https://mobile.free.fr/account/v2/login", fakepage.El("body", otpInput))
	page.Body = "Saisissez le code reçu par SMS pour continuer"

	w, _ := newWorkflow(t, profile.FreeMobile, page)
	result, err := w.CheckSession(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Authenticated)
	assert.True(t, result.SMSCodeRequired)
	assert.Contains(t, result.Diagnostics, "otp=true")
}

func TestFreeMobileAuthenticateDetectsOTPAfterSubmit(t *testing.T) {
	username := fakepage.El("input").With(func(n *fakepage.Node) {
		n.ID = "login-username"
	})
	password := fakepage.El("input").With(func(n *fakepage.Node) {
		n.ID = "login-password"
	})
	body := fakepage.El("body", username, password)
	page := fakepage.New("https://mobile.free.fr/account/v2/login", body)
	submit := fakepage.El("button").With(func(n *fakepage.Node) {
		n.ID = "login-submit"
		n.OnClick = func() {
			body.Append(fakepage.El("input").With(func(otp *fakepage.Node) {
				otp.Attrs["autocomplete"] = "one-time-code"
			}))
			page.Body = "Saisissez le code reçu par SMS"
		}
	})
	body.Append(submit)

	w, _ := newWorkflow(t, profile.FreeMobile, page)
	result, err := w.Authenticate(context.Background(), Credentials{Username: "0612345678", Password: "secret"})
	require.NoError(t, err)
	assert.False(t, result.Authenticated)
	assert.True(t, result.SMSCodeRequired)
	assert.True(t, result.ManualLoginRequired)
}

func TestFreeMobileCheckSessionAuthenticatedByMarkers(t *testing.T) {
	userNode := fakepage.El("span").With(func(n *fakepage.Node) {
		n.ID = "user-name"
		n.TextContent = "Jean"
	})
	page := fakepage.New("https://mobile.free.fr/account/v2", fakepage.El("body", userNode))
	page.Body = "Conso et factures"

	w, _ := newWorkflow(t, profile.FreeMobile, page)
	result, err := w.CheckSession(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Authenticated)
	assert.False(t, result.SMSCodeRequired)
}

func TestNavigoDownloadEnablesButtonViaPeriodRadio(t *testing.T) {
	button := fakepage.El("button").With(func(n *fakepage.Node) {
		n.ID = "download-certificate-btn"
		n.DisabledFlag = true
	})
	radio := fakepage.El("input").With(func(n *fakepage.Node) {
		n.Attrs["name"] = "period"
		n.Attrs["value"] = "3"
		n.Attrs["type"] = "radio"
		n.OnSetChecked = func(checked bool) {
			if checked {
				button.DisabledFlag = false
			}
		}
	})
	page := fakepage.New(
		"https://www.jegeremacartenavigo.iledefrance-mobilites.fr/prelevements/CT-42",
		fakepage.El("body", radio, button))
	button.OnClick = func() {
		page.Resources = append(page.Resources,
			"https://www.jegeremacartenavigo.iledefrance-mobilites.fr/api/attestation?documentId=77")
	}

	w, _ := newWorkflow(t, profile.Navigo, page)
	result, err := w.DownloadAndExtract(context.Background())
	require.NoError(t, err)

	assert.True(t, radio.Checked, "the 3-month period radio must be selected first")
	assert.Equal(t, "attestation_navigo_77.pdf", result.Document.FileName)
	require.NotNil(t, result.Document.Hints)
	assert.Equal(t, "commuter benefits", result.Document.Hints.ExpenseType)
	assert.Equal(t, "2024-03-01", result.Document.Hints.TransactionDateISO)
}

func TestNavigoNavigateBillingBuildsPrelevementsURLFromDetailRoute(t *testing.T) {
	page := fakepage.New(
		"https://www.jegeremacartenavigo.iledefrance-mobilites.fr/espace_client/detail/CT-42",
		fakepage.El("body"))
	page.Body = "Mon espace personnel Navigo annuel"

	w, _ := newWorkflow(t, profile.Navigo, page)
	result, err := w.NavigateBilling(context.Background(), NavigateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://www.jegeremacartenavigo.iledefrance-mobilites.fr/prelevements/CT-42", result.DetailURL)
}

func TestNavigoNavigateBillingResolvesAnnualContractFromList(t *testing.T) {
	annual := fakepage.El("a").With(func(n *fakepage.Node) {
		n.Attrs["href"] = "/espace_client/detail/CT-99"
		n.TextContent = "Navigo Annuel - Actif"
	})
	page := fakepage.New(
		"https://www.jegeremacartenavigo.iledefrance-mobilites.fr/espace_client/home",
		fakepage.El("body", annual))
	page.Body = "Mon Navigo Mes services"

	w, _ := newWorkflow(t, profile.Navigo, page)
	result, err := w.NavigateBilling(context.Background(), NavigateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://www.jegeremacartenavigo.iledefrance-mobilites.fr/prelevements/CT-99", result.DetailURL)
}

func TestRedSFRAuthenticatePrefillsAndDefersToHuman(t *testing.T) {
	username := fakepage.El("input").With(func(n *fakepage.Node) {
		n.ID = "username"
	})
	password := fakepage.El("input").With(func(n *fakepage.Node) {
		n.ID = "password"
		n.Attrs["type"] = "password"
	})
	submit := fakepage.El("button").With(func(n *fakepage.Node) {
		n.ID = "identifier"
	})
	page := fakepage.New("https://www.red-by-sfr.fr/login", fakepage.El("body", username, password, submit))

	w, _ := newWorkflow(t, profile.RedSFR, page)
	result, err := w.Authenticate(context.Background(), Credentials{Username: "client", Password: "secret"})
	require.NoError(t, err)
	assert.False(t, result.Authenticated)
	assert.True(t, result.ManualLoginRequired)
	assert.Equal(t, "client", username.Val)
	assert.Equal(t, "secret", password.Val)
	assert.Zero(t, submit.ClickSequences)
}

func TestRedSFRBillingReadyByHeadingText(t *testing.T) {
	page := fakepage.New("https://www.red-by-sfr.fr/espace-client", fakepage.El("body"))
	page.Body = "Vos factures et paiements"

	w, _ := newWorkflow(t, profile.RedSFR, page)
	result, err := w.CheckBillingReady(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Ready)
}

func TestFreeNavigateBillingRequiresInvoiceLink(t *testing.T) {
	page := fakepage.New("https://adsl.free.fr/moncompte/", fakepage.El("body"))

	w, _ := newWorkflow(t, profile.Free, page)
	_, err := w.NavigateBilling(context.Background(), NavigateOptions{})
	require.Error(t, err)
}
