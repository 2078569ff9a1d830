package textmatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"accents stripped", "Télécharger mes Attestations de Prélèvements", "telecharger mes attestations de prelevements"},
		{"whitespace collapsed", "  vos \t factures \n ", "vos factures"},
		{"case folded", "Mon Navigo", "mon navigo"},
		{"mixed", "  Déconnexion  ", "deconnexion"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.in))
		})
	}
}

func TestFoldIsIdempotent(t *testing.T) {
	inputs := []string{
		"Prélèvements  Août",
		"déjà   normalisé",
		"plain ascii",
	}
	for _, in := range inputs {
		once := Fold(in)
		assert.Equal(t, once, Fold(once))
	}
}

func TestEqualFold(t *testing.T) {
	assert.True(t, EqualFold("Télétravail", "teletravail"))
	assert.True(t, EqualFold("3  Derniers  Mois", "3 derniers mois"))
	assert.False(t, EqualFold("mes factures", "vos factures"))
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Consulter mes prélèvements mensuels", "prelevements"))
	assert.False(t, ContainsFold("Mes codes promo", "code de verification"))
}

func TestFrenchMonthNumber(t *testing.T) {
	assert.Equal(t, "02", FrenchMonthNumber("Février"))
	assert.Equal(t, "08", FrenchMonthNumber("août"))
	assert.Equal(t, "12", FrenchMonthNumber("decembre"))
	assert.Equal(t, "", FrenchMonthNumber("mardi"))
}

func TestExtractDateISO(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"iso form wins", "facture du 2024-03-12 émise le 5 mars 2024", "2024-03-12"},
		{"french form", "émise le 5 mars 2024", "2024-03-05"},
		{"french accented month", "1 août 2023", "2023-08-01"},
		{"none", "pas de date ici", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDateISO(tt.text))
		})
	}
}

func TestExtractMonthKey(t *testing.T) {
	assert.Equal(t, "202403", ExtractMonthKey("Facture Mars 2024"))
	assert.Equal(t, "202308", ExtractMonthKey("août 2023"))
	assert.Equal(t, "", ExtractMonthKey("facture"))
}

func TestMonthHelpers(t *testing.T) {
	now := time.Date(2024, 3, 17, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "202403", CurrentMonthKey(now))
	assert.Equal(t, "2024-03-01", MonthStartISO(now))
}
