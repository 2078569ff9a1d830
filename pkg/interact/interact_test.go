package interact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/browser/fakepage"
)

func queryOne(t *testing.T, page *fakepage.Page, selector string) browser.Element {
	t.Helper()
	els, err := page.Query(context.Background(), selector)
	require.NoError(t, err)
	require.Len(t, els, 1)
	return els[0]
}

func TestClickDispatchesSequenceAndNativeActivation(t *testing.T) {
	button := fakepage.El("button").With(func(n *fakepage.Node) { n.ID = "submit" })
	page := fakepage.New("https://portal.example", fakepage.El("body", button))

	Click(context.Background(), queryOne(t, page, "#submit"), nil)

	assert.Equal(t, 1, button.Scrolled)
	assert.Equal(t, 1, button.ClickSequences)
	assert.Equal(t, 1, button.NativeClicks)
}

func TestClickWithholdsNativeActivationOnFileInput(t *testing.T) {
	input := fakepage.El("input").With(func(n *fakepage.Node) {
		n.ID = "receipt"
		n.Attrs["type"] = "file"
	})
	page := fakepage.New("https://expense.example", fakepage.El("body", input))

	Click(context.Background(), queryOne(t, page, "#receipt"), nil)

	assert.Equal(t, 1, input.ClickSequences)
	assert.Zero(t, input.NativeClicks)
}

func TestSetValuePrefersPastePath(t *testing.T) {
	input := fakepage.El("input").With(func(n *fakepage.Node) { n.ID = "username" })
	page := fakepage.New("https://portal.example", fakepage.El("body", input))

	SetValue(context.Background(), queryOne(t, page, "#username"), "jdupont", nil)

	assert.Equal(t, []string{"jdupont"}, input.PasteInserts)
	assert.Empty(t, input.NativeSets)
	assert.Equal(t, "jdupont", input.Val)
	assert.GreaterOrEqual(t, input.ChangeDispatch, 1)
}

func TestSetValueFallsBackToNativeSetter(t *testing.T) {
	input := fakepage.El("input").With(func(n *fakepage.Node) {
		n.ID = "password"
		n.RejectPaste = true
	})
	page := fakepage.New("https://portal.example", fakepage.El("body", input))

	SetValue(context.Background(), queryOne(t, page, "#password"), "s3cret", nil)

	assert.Equal(t, []string{"s3cret"}, input.PasteInserts)
	assert.Equal(t, []string{"s3cret"}, input.NativeSets)
	assert.Equal(t, "s3cret", input.Val)
	assert.GreaterOrEqual(t, input.ChangeDispatch, 1)
}

func TestHasValue(t *testing.T) {
	input := fakepage.El("input").With(func(n *fakepage.Node) {
		n.ID = "field"
		n.Val = "  "
	})
	page := fakepage.New("https://portal.example", fakepage.El("body", input))
	el := queryOne(t, page, "#field")

	assert.False(t, HasValue(context.Background(), el))
	input.Val = "filled"
	assert.True(t, HasValue(context.Background(), el))
	assert.False(t, HasValue(context.Background(), nil))
}

func TestSelectRadioPrefersEnclosingLabel(t *testing.T) {
	radio := fakepage.El("input").With(func(n *fakepage.Node) {
		n.Attrs["type"] = "radio"
		n.Attrs["name"] = "period"
		n.Attrs["value"] = "3"
	})
	label := fakepage.El("label", radio)
	page := fakepage.New("https://transit.example", fakepage.El("body", label))

	SelectRadio(context.Background(), queryOne(t, page, "input[name='period']"), nil)

	assert.True(t, radio.Checked)
	assert.Equal(t, 1, label.ClickSequences)
	assert.Zero(t, radio.ClickSequences)
}

func TestSelectRadioClicksInputWithoutLabel(t *testing.T) {
	radio := fakepage.El("input").With(func(n *fakepage.Node) {
		n.Attrs["type"] = "radio"
		n.Attrs["name"] = "period"
	})
	page := fakepage.New("https://transit.example", fakepage.El("body", radio))

	SelectRadio(context.Background(), queryOne(t, page, "input[name='period']"), nil)

	assert.True(t, radio.Checked)
	assert.Equal(t, 1, radio.ClickSequences)
}
