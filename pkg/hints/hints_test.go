package hints

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/billfetch/billfetch/pkg/profile"
)

var fixedNow = time.Date(2024, 3, 17, 9, 30, 0, 0, time.UTC)

func TestDeriveTransactionDate(t *testing.T) {
	tests := []struct {
		name     string
		billText string
		want     string
	}{
		{
			name:     "iso date wins",
			billText: "Facture du 2024-02-15 pour la ligne fixe",
			want:     "2024-02-15",
		},
		{
			name:     "french full date",
			billText: "Votre facture du 12 mars 2024 est disponible",
			want:     "2024-03-12",
		},
		{
			name:     "french month only maps to month start",
			billText: "Facture de février 2024",
			want:     "2024-02-01",
		},
		{
			name:     "no date falls back to current month start",
			billText: "Montant total: 24,99 EUR",
			want:     "2024-03-01",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Derive(profile.Orange, tt.billText, fixedNow)
			assert.Equal(t, tt.want, h.TransactionDateISO)
		})
	}
}

func TestDeriveCategory(t *testing.T) {
	assert.Equal(t, "commuter benefits", Derive(profile.Navigo, "", fixedNow).ExpenseType)
	assert.Equal(t, "work from home", Derive(profile.Orange, "", fixedNow).ExpenseType)
	assert.Equal(t, "work from home", Derive(profile.Free, "", fixedNow).ExpenseType)
}

func TestClassifierDisabledWithoutKey(t *testing.T) {
	c := NewClassifier("", nil)
	assert.Nil(t, c)
	assert.False(t, c.Enabled())

	_, err := c.Classify(context.Background(), "facture", []string{"work from home"})
	assert.Error(t, err)
}

func TestTruncateByRunesWithoutTokenizer(t *testing.T) {
	c := &Classifier{limit: 2}

	assert.Equal(t, "court", c.truncate("court"))

	long := "éèêëàâä un texte bien trop long pour le budget"
	got := c.truncate(long)
	assert.Equal(t, string([]rune(long)[:8]), got)
}
