// Package fakepage provides an in-memory Page/Element implementation for
// tests. Trees are constructed by hand; selector support covers the simple
// compound forms tests need (tag, #id, .class, [attr] variants, comma
// lists), and any node can additionally declare selector aliases it matches,
// which stands in for engine-specific syntax.
package fakepage

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/textmatch"
)

// Option is one entry of a fake <select>.
type Option struct {
	Value string
	Label string
}

// Node is a fake DOM node. Interaction methods record what happened so tests
// can assert on dispatched behavior; hooks let tests mutate the tree in
// response, standing in for page logic.
type Node struct {
	Tag          string
	ID           string
	Classes      []string
	Attrs        map[string]string
	TextContent  string
	Val          string
	Hidden       bool
	DisabledFlag bool
	Checked      bool
	CanScroll    bool
	Options      []Option

	// Aliases are extra selector strings this node claims to match.
	Aliases []string

	Parent   *Node
	Children []*Node

	// Hooks run after the corresponding interaction.
	OnClick      func()
	OnSetChecked func(checked bool)

	// RejectPaste simulates a field that ignores the paste-like path.
	RejectPaste bool

	// Recorded interactions.
	ClickSequences  int
	NativeClicks    int
	PasteInserts    []string
	NativeSets      []string
	ChangeDispatch  int
	Focused         int
	Scrolled        int
	ScrolledBottom  int
	SelectedOptions []string
}

// El builds a node and attaches children.
func El(tag string, children ...*Node) *Node {
	n := &Node{Tag: tag, Attrs: map[string]string{}}
	for _, child := range children {
		child.Parent = n
		n.Children = append(n.Children, child)
	}
	return n
}

// With applies fn to the node and returns it, for fluent construction.
func (n *Node) With(fn func(*Node)) *Node {
	fn(n)
	return n
}

func (n *Node) walk(visit func(*Node)) {
	visit(n)
	for _, child := range n.Children {
		child.walk(visit)
	}
}

// Append attaches child under n after construction.
func (n *Node) Append(child *Node) *Node {
	child.Parent = n
	n.Children = append(n.Children, child)
	return n
}

// Text returns the node's text content, falling back to concatenated child
// text the way real textContent does.
func (n *Node) text() string {
	if n.TextContent != "" {
		return n.TextContent
	}
	var sb strings.Builder
	for _, child := range n.Children {
		sb.WriteString(child.text())
		sb.WriteString(" ")
	}
	return sb.String()
}

// matches evaluates one compound selector (no combinators) against the node.
func (n *Node) matches(selector string) bool {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return false
	}
	for _, alias := range n.Aliases {
		if alias == selector {
			return true
		}
	}
	// Combinators and pseudo-classes are alias-only territory.
	if strings.ContainsAny(selector, " >:~+") {
		return false
	}
	for _, part := range splitCompound(selector) {
		switch {
		case strings.HasPrefix(part, "#"):
			if n.ID != part[1:] {
				return false
			}
		case strings.HasPrefix(part, "."):
			if !contains(n.Classes, part[1:]) {
				return false
			}
		case strings.HasPrefix(part, "["):
			if !n.matchesAttr(strings.TrimSuffix(part[1:], "]")) {
				return false
			}
		case part == "*":
		default:
			if !strings.EqualFold(n.Tag, part) {
				return false
			}
		}
	}
	return true
}

func (n *Node) matchesAttr(expr string) bool {
	name, op, want := expr, "", ""
	for _, candidate := range []string{"*=", "^=", "$=", "="} {
		if idx := strings.Index(expr, candidate); idx >= 0 {
			name = expr[:idx]
			op = candidate
			want = strings.Trim(expr[idx+len(candidate):], `"'`)
			break
		}
	}
	got, ok := n.attrValue(name)
	if !ok {
		return false
	}
	switch op {
	case "":
		return true
	case "=":
		return got == want
	case "*=":
		return strings.Contains(got, want)
	case "^=":
		return strings.HasPrefix(got, want)
	case "$=":
		return strings.HasSuffix(got, want)
	}
	return false
}

func (n *Node) attrValue(name string) (string, bool) {
	switch name {
	case "id":
		if n.ID != "" {
			return n.ID, true
		}
	case "value":
		if n.Val != "" {
			return n.Val, true
		}
	}
	v, ok := n.Attrs[name]
	return v, ok
}

func splitCompound(selector string) []string {
	var parts []string
	var current strings.Builder
	inBracket := false
	for _, r := range selector {
		switch {
		case r == '[':
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			inBracket = true
			current.WriteRune(r)
		case r == ']':
			inBracket = false
			current.WriteRune(r)
			parts = append(parts, current.String())
			current.Reset()
		case (r == '.' || r == '#') && !inBracket && current.Len() > 0:
			parts = append(parts, current.String())
			current.Reset()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Page is the fake Page implementation.
type Page struct {
	Root      *Node
	URL       string
	Body      string
	HTML      string
	Resources []string
	Fetches   map[string]*browser.FetchResult

	mu       sync.Mutex
	watchers []chan browser.Event
}

// New creates a fake page rooted at root, located at rawURL.
func New(rawURL string, root *Node) *Page {
	return &Page{
		Root:    root,
		URL:     rawURL,
		Fetches: map[string]*browser.FetchResult{},
	}
}

func (p *Page) Location(ctx context.Context) (*url.URL, error) {
	return url.Parse(p.URL)
}

func (p *Page) Content(ctx context.Context) (string, error) {
	return p.HTML, nil
}

func (p *Page) BodyText(ctx context.Context) (string, error) {
	if p.Body != "" {
		return p.Body, nil
	}
	if p.Root == nil {
		return "", nil
	}
	return p.Root.text(), nil
}

func (p *Page) Query(ctx context.Context, selector string) ([]browser.Element, error) {
	if p.Root == nil {
		return nil, nil
	}
	var out []browser.Element
	for _, single := range strings.Split(selector, ",") {
		single = strings.TrimSpace(single)
		p.Root.walk(func(n *Node) {
			if n.matches(single) {
				out = append(out, &element{node: n})
			}
		})
	}
	return out, nil
}

func (p *Page) ResourceURLs(ctx context.Context) ([]string, error) {
	return append([]string(nil), p.Resources...), nil
}

func (p *Page) Fetch(ctx context.Context, rawURL string) (*browser.FetchResult, error) {
	if result, ok := p.Fetches[rawURL]; ok {
		return result, nil
	}
	return &browser.FetchResult{Status: 404}, nil
}

func (p *Page) Events(ctx context.Context) (<-chan browser.Event, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan browser.Event, 16)
	p.watchers = append(p.watchers, ch)
	stop := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, w := range p.watchers {
			if w == ch {
				p.watchers = append(p.watchers[:i], p.watchers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, stop, nil
}

// Emit delivers an event to all subscribers.
func (p *Page) Emit(event browser.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.watchers {
		select {
		case ch <- event:
		default:
		}
	}
}

type element struct {
	node *Node
}

// Unwrap returns the underlying node, for test assertions.
func Unwrap(el browser.Element) *Node {
	if fe, ok := el.(*element); ok {
		return fe.node
	}
	return nil
}

func (e *element) Attr(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.node.attrValue(name)
	return v, ok, nil
}

func (e *element) TagName(ctx context.Context) (string, error) {
	return strings.ToLower(e.node.Tag), nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	return e.node.text(), nil
}

func (e *element) Value(ctx context.Context) (string, error) {
	return e.node.Val, nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	return !e.node.Hidden, nil
}

func (e *element) Disabled(ctx context.Context) (bool, error) {
	return e.node.DisabledFlag, nil
}

func (e *element) Matches(ctx context.Context, selector string) (bool, error) {
	for _, single := range strings.Split(selector, ",") {
		if e.node.matches(strings.TrimSpace(single)) {
			return true, nil
		}
	}
	return false, nil
}

func (e *element) Closest(ctx context.Context, selector string) (browser.Element, error) {
	for n := e.node; n != nil; n = n.Parent {
		for _, single := range strings.Split(selector, ",") {
			if n.matches(strings.TrimSpace(single)) {
				return &element{node: n}, nil
			}
		}
	}
	return nil, nil
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	e.node.Scrolled++
	return nil
}

func (e *element) Focus(ctx context.Context) error {
	e.node.Focused++
	return nil
}

func (e *element) DispatchClickSequence(ctx context.Context) error {
	e.node.ClickSequences++
	if e.node.OnClick != nil {
		e.node.OnClick()
	}
	return nil
}

func (e *element) NativeActivate(ctx context.Context) error {
	e.node.NativeClicks++
	return nil
}

func (e *element) PasteInsert(ctx context.Context, text string) (bool, error) {
	e.node.PasteInserts = append(e.node.PasteInserts, text)
	if e.node.RejectPaste {
		return false, nil
	}
	e.node.Val = text
	return true, nil
}

func (e *element) SetNativeValue(ctx context.Context, text string) error {
	e.node.NativeSets = append(e.node.NativeSets, text)
	e.node.Val = text
	return nil
}

func (e *element) DispatchChange(ctx context.Context) error {
	e.node.ChangeDispatch++
	return nil
}

func (e *element) SetChecked(ctx context.Context, checked bool) error {
	e.node.Checked = checked
	if e.node.OnSetChecked != nil {
		e.node.OnSetChecked(checked)
	}
	return nil
}

func (e *element) SelectOptionByLabel(ctx context.Context, label string) (bool, error) {
	for _, opt := range e.node.Options {
		if textmatch.ContainsFold(opt.Label, label) {
			e.node.Val = opt.Value
			e.node.SelectedOptions = append(e.node.SelectedOptions, opt.Label)
			return true, nil
		}
	}
	return false, nil
}

func (e *element) Scrollable(ctx context.Context) (bool, error) {
	return e.node.CanScroll, nil
}

func (e *element) ScrollToBottom(ctx context.Context) error {
	e.node.ScrolledBottom++
	return nil
}
