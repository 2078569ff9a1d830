package locate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billfetch/billfetch/pkg/browser/fakepage"
)

func loginTree() (*fakepage.Node, *fakepage.Node, *fakepage.Node) {
	hiddenUser := fakepage.El("input").With(func(n *fakepage.Node) {
		n.ID = "login-legacy"
		n.Hidden = true
	})
	visibleUser := fakepage.El("input").With(func(n *fakepage.Node) {
		n.ID = "login-username"
		n.Attrs["name"] = "username"
	})
	root := fakepage.El("body",
		fakepage.El("form", hiddenUser, visibleUser),
	)
	return root, hiddenUser, visibleUser
}

func TestPickHonorsCandidateOrder(t *testing.T) {
	ctx := context.Background()
	root, _, visibleUser := loginTree()
	page := fakepage.New("https://portal.example/login", root)

	tests := []struct {
		name       string
		candidates []string
		wantNode   *fakepage.Node
	}{
		{
			name:       "first candidate matches only hidden element, second wins",
			candidates: []string{"#login-legacy", "#login-username"},
			wantNode:   visibleUser,
		},
		{
			name:       "earlier visible candidate wins over later",
			candidates: []string{"input[name='username']", "#login-legacy"},
			wantNode:   visibleUser,
		},
		{
			name:       "no candidate matches",
			candidates: []string{"#missing", ".absent"},
			wantNode:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := Pick(ctx, page, tt.candidates)
			require.NoError(t, err)
			if tt.wantNode == nil {
				assert.Nil(t, el)
				return
			}
			require.NotNil(t, el)
			assert.Same(t, tt.wantNode, fakepage.Unwrap(el))
		})
	}
}

func TestPickHiddenReturnsInvisibleMatch(t *testing.T) {
	ctx := context.Background()
	root, hiddenUser, _ := loginTree()
	page := fakepage.New("https://portal.example/login", root)

	el, err := PickHidden(ctx, page, []string{"#login-legacy"})
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Same(t, hiddenUser, fakepage.Unwrap(el))
}

func TestPickAllReturnsFirstNonEmptyCandidateSet(t *testing.T) {
	ctx := context.Background()
	a := fakepage.El("a").With(func(n *fakepage.Node) { n.Classes = []string{"invoice"} })
	b := fakepage.El("a").With(func(n *fakepage.Node) { n.Classes = []string{"invoice"} })
	hidden := fakepage.El("a").With(func(n *fakepage.Node) {
		n.Classes = []string{"archive"}
		n.Hidden = true
	})
	page := fakepage.New("https://portal.example/billing", fakepage.El("body", hidden, a, b))

	els, err := PickAll(ctx, page, []string{"a.archive", "a.invoice"})
	require.NoError(t, err)
	require.Len(t, els, 2)
	assert.Same(t, a, fakepage.Unwrap(els[0]))
	assert.Same(t, b, fakepage.Unwrap(els[1]))
}

func TestFindByTextFoldsDiacriticsAndWhitespace(t *testing.T) {
	ctx := context.Background()
	label := fakepage.El("span").With(func(n *fakepage.Node) {
		n.TextContent = "  Télécharger  mes attestations de Prélèvements "
	})
	page := fakepage.New("https://portal.example", fakepage.El("body", label))

	el, err := FindByText(ctx, page, "telecharger mes attestations de prelevements", "")
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Same(t, label, fakepage.Unwrap(el))
}

func TestFindByTextSkipsInvisible(t *testing.T) {
	ctx := context.Background()
	label := fakepage.El("span").With(func(n *fakepage.Node) {
		n.TextContent = "Mes factures"
		n.Hidden = true
	})
	page := fakepage.New("https://portal.example", fakepage.El("body", label))

	el, err := FindByText(ctx, page, "mes factures", "")
	require.NoError(t, err)
	assert.Nil(t, el)
}

func TestFindClickableByTextWalksToInteractiveAncestor(t *testing.T) {
	ctx := context.Background()
	span := fakepage.El("span").With(func(n *fakepage.Node) { n.TextContent = "Conso et factures" })
	button := fakepage.El("button", span)
	page := fakepage.New("https://portal.example", fakepage.El("body", button))

	el, err := FindClickableByText(ctx, page, "conso et factures")
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Same(t, button, fakepage.Unwrap(el))
}

func TestClickableTargetFallsBackToMatchedNode(t *testing.T) {
	ctx := context.Background()
	div := fakepage.El("div").With(func(n *fakepage.Node) { n.TextContent = "plain container" })
	page := fakepage.New("https://portal.example", fakepage.El("body", div))

	els, err := page.Query(ctx, "div")
	require.NoError(t, err)
	require.Len(t, els, 1)

	target, err := ClickableTarget(ctx, els[0])
	require.NoError(t, err)
	assert.Same(t, div, fakepage.Unwrap(target))
}

func TestWaitVisibleResolvesLateElement(t *testing.T) {
	ctx := context.Background()
	form := fakepage.El("body")
	page := fakepage.New("https://portal.example/login", form)

	// The password field appears only once the username step settles; the
	// first click hook stands in for that transition.
	password := fakepage.El("input").With(func(n *fakepage.Node) { n.ID = "password" })
	submit := fakepage.El("button").With(func(n *fakepage.Node) {
		n.ID = "continue"
		n.OnClick = func() { form.Append(password) }
	})
	form.Append(submit)

	els, err := page.Query(ctx, "#continue")
	require.NoError(t, err)
	require.Len(t, els, 1)
	require.NoError(t, els[0].DispatchClickSequence(ctx))

	el, ok, err := WaitVisible(ctx, page, []string{"#password"}, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, password, fakepage.Unwrap(el))
}

func TestWaitVisibleTimeoutIsNotAnError(t *testing.T) {
	ctx := context.Background()
	page := fakepage.New("https://portal.example", fakepage.El("body"))

	el, ok, err := WaitVisible(ctx, page, []string{"#never"}, 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, el)
}

func TestScopeUnder(t *testing.T) {
	scoped := ScopeUnder("#invoices", []string{"a[href*='invoice']", "#invoices ul li a"})
	assert.Equal(t, []string{"#invoices a[href*='invoice']", "#invoices ul li a"}, scoped)
}
