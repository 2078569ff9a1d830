package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// PlaywrightPage adapts a Playwright page to the Page interface.
type PlaywrightPage struct {
	page playwright.Page
	log  *zap.Logger

	mu        sync.Mutex
	watchers  map[int]chan Event
	watcherID int
	observing bool
}

// NewPlaywrightPage wraps page. The logger may be nil.
func NewPlaywrightPage(page playwright.Page, log *zap.Logger) *PlaywrightPage {
	if log == nil {
		log = zap.NewNop()
	}
	return &PlaywrightPage{
		page:     page,
		log:      log.Named("page"),
		watchers: make(map[int]chan Event),
	}
}

func (p *PlaywrightPage) Location(ctx context.Context) (*url.URL, error) {
	u, err := url.Parse(p.page.URL())
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	return u, nil
}

func (p *PlaywrightPage) Content(ctx context.Context) (string, error) {
	content, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	return content, nil
}

func (p *PlaywrightPage) BodyText(ctx context.Context) (string, error) {
	value, err := p.page.Evaluate(scriptBodyText)
	if err != nil {
		return "", fmt.Errorf("read body text: %w", err)
	}
	text, _ := value.(string)
	return text, nil
}

// Query swallows selector syntax errors: candidate lists carry selectors not
// every engine accepts, and an unparseable candidate simply yields no match.
func (p *PlaywrightPage) Query(ctx context.Context, selector string) ([]Element, error) {
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		p.log.Debug("selector rejected", zap.String("selector", selector), zap.Error(err))
		return nil, nil
	}
	elements := make([]Element, 0, len(handles))
	for _, handle := range handles {
		elements = append(elements, &playwrightElement{handle: handle})
	}
	return elements, nil
}

func (p *PlaywrightPage) ResourceURLs(ctx context.Context) ([]string, error) {
	value, err := p.page.Evaluate(scriptResourceURLs)
	if err != nil {
		return nil, fmt.Errorf("snapshot resource timing: %w", err)
	}
	raw, ok := value.([]interface{})
	if !ok {
		return nil, nil
	}
	urls := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			urls = append(urls, s)
		}
	}
	return urls, nil
}

func (p *PlaywrightPage) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	request := p.page.Context().Request()
	resp, err := request.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("refetch %s: %w", rawURL, err)
	}
	body, err := resp.Body()
	if err != nil {
		return nil, fmt.Errorf("read refetch body: %w", err)
	}
	headers := resp.Headers()
	return &FetchResult{
		Status:             resp.Status(),
		Body:               body,
		ContentType:        headers["content-type"],
		ContentDisposition: headers["content-disposition"],
	}, nil
}

// Events fans page lifecycle notifications out to subscribers. Route changes
// come from frame navigations; mutation batches from an injected observer
// calling back through an exposed binding.
func (p *PlaywrightPage) Events(ctx context.Context) (<-chan Event, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.observing {
		if err := p.installObservers(); err != nil {
			return nil, nil, err
		}
		p.observing = true
	}

	p.watcherID++
	id := p.watcherID
	ch := make(chan Event, 16)
	p.watchers[id] = ch

	stop := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if existing, ok := p.watchers[id]; ok {
			delete(p.watchers, id)
			close(existing)
		}
	}
	return ch, stop, nil
}

func (p *PlaywrightPage) installObservers() error {
	err := p.page.ExposeFunction("__billfetchOnMutation", func(args ...interface{}) interface{} {
		path := ""
		if len(args) > 0 {
			path, _ = args[0].(string)
		}
		p.emit(Event{Kind: EventMutated, Path: path})
		return nil
	})
	if err != nil {
		return fmt.Errorf("expose mutation binding: %w", err)
	}

	observer := "(" + scriptMutationObserver + ")()"
	if err := p.page.AddInitScript(playwright.Script{Content: playwright.String(observer)}); err != nil {
		return fmt.Errorf("install mutation observer: %w", err)
	}
	// Arm the already-loaded document too; init scripts only cover future
	// navigations.
	if _, err := p.page.Evaluate(scriptMutationObserver); err != nil {
		p.log.Debug("mutation observer not armed on current document", zap.Error(err))
	}

	p.page.On("framenavigated", func(frame playwright.Frame) {
		if frame.ParentFrame() != nil {
			return
		}
		path := ""
		if u, err := url.Parse(frame.URL()); err == nil {
			path = u.Path
		}
		p.emit(Event{Kind: EventNavigated, Path: path})
	})
	return nil
}

func (p *PlaywrightPage) emit(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.watchers {
		select {
		case ch <- event:
		default:
			// Subscriber is lagging; drop rather than block the event loop.
		}
	}
}

type playwrightElement struct {
	handle playwright.ElementHandle
}

func (e *playwrightElement) Attr(ctx context.Context, name string) (string, bool, error) {
	value, err := e.handle.Evaluate(`(el, name) => el.getAttribute(name)`, name)
	if err != nil {
		return "", false, fmt.Errorf("read attribute %s: %w", name, err)
	}
	if value == nil {
		return "", false, nil
	}
	s, _ := value.(string)
	return s, true, nil
}

func (e *playwrightElement) TagName(ctx context.Context) (string, error) {
	value, err := e.handle.Evaluate(`el => String(el.tagName || "").toLowerCase()`)
	if err != nil {
		return "", fmt.Errorf("read tag name: %w", err)
	}
	s, _ := value.(string)
	return s, nil
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	text, err := e.handle.TextContent()
	if err != nil {
		return "", fmt.Errorf("read text content: %w", err)
	}
	return text, nil
}

func (e *playwrightElement) Value(ctx context.Context) (string, error) {
	value, err := e.handle.Evaluate(scriptValue)
	if err != nil {
		return "", fmt.Errorf("read value: %w", err)
	}
	s, _ := value.(string)
	return s, nil
}

func (e *playwrightElement) Visible(ctx context.Context) (bool, error) {
	return e.evalBool(scriptVisible)
}

func (e *playwrightElement) Disabled(ctx context.Context) (bool, error) {
	return e.evalBool(scriptDisabled)
}

func (e *playwrightElement) Matches(ctx context.Context, selector string) (bool, error) {
	value, err := e.handle.Evaluate(`(el, sel) => { try { return el.matches(sel); } catch (_error) { return false; } }`, selector)
	if err != nil {
		return false, fmt.Errorf("match selector: %w", err)
	}
	b, _ := value.(bool)
	return b, nil
}

func (e *playwrightElement) Closest(ctx context.Context, selector string) (Element, error) {
	handle, err := e.handle.EvaluateHandle(`(el, sel) => { try { return el.closest(sel); } catch (_error) { return null; } }`, selector)
	if err != nil {
		return nil, fmt.Errorf("walk to ancestor: %w", err)
	}
	element := handle.AsElement()
	if element == nil {
		return nil, nil
	}
	return &playwrightElement{handle: element}, nil
}

func (e *playwrightElement) ScrollIntoView(ctx context.Context) error {
	_, err := e.handle.Evaluate(scriptScrollIntoView)
	return err
}

func (e *playwrightElement) Focus(ctx context.Context) error {
	return e.handle.Focus()
}

func (e *playwrightElement) DispatchClickSequence(ctx context.Context) error {
	_, err := e.handle.Evaluate(scriptClickSequence)
	return err
}

func (e *playwrightElement) NativeActivate(ctx context.Context) error {
	_, err := e.handle.Evaluate(scriptNativeActivate)
	return err
}

func (e *playwrightElement) PasteInsert(ctx context.Context, text string) (bool, error) {
	value, err := e.handle.Evaluate(scriptPasteInsert, text)
	if err != nil {
		return false, err
	}
	b, _ := value.(bool)
	return b, nil
}

func (e *playwrightElement) SetNativeValue(ctx context.Context, text string) error {
	_, err := e.handle.Evaluate(scriptSetNativeValue, text)
	return err
}

func (e *playwrightElement) DispatchChange(ctx context.Context) error {
	_, err := e.handle.Evaluate(scriptDispatchChange)
	return err
}

func (e *playwrightElement) SetChecked(ctx context.Context, checked bool) error {
	_, err := e.handle.Evaluate(scriptSetChecked, checked)
	return err
}

func (e *playwrightElement) SelectOptionByLabel(ctx context.Context, label string) (bool, error) {
	value, err := e.handle.Evaluate(scriptSelectOptionByLabel, label)
	if err != nil {
		return false, err
	}
	b, _ := value.(bool)
	return b, nil
}

func (e *playwrightElement) Scrollable(ctx context.Context) (bool, error) {
	return e.evalBool(scriptScrollable)
}

func (e *playwrightElement) ScrollToBottom(ctx context.Context) error {
	_, err := e.handle.Evaluate(scriptScrollToBottom)
	return err
}

func (e *playwrightElement) evalBool(script string) (bool, error) {
	value, err := e.handle.Evaluate(script)
	if err != nil {
		return false, err
	}
	b, _ := value.(bool)
	return b, nil
}
