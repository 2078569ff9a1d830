package browser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 720
)

// SessionOptions configures a portal session.
type SessionOptions struct {
	// Headless runs the browser without a visible window. Defaults to
	// false: challenge resolution (CAPTCHA, OTP) needs a human at the
	// screen.
	Headless bool

	// UserDataDir is the persistent profile directory carrying portal
	// cookies across runs. Empty means ~/.billfetch/profile.
	UserDataDir string
}

// Manager owns the Playwright runtime and the single persistent browser
// context portal workflows run in. Portal sessions are cookie-scoped, so one
// long-lived profile beats per-run throwaway contexts.
type Manager struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	browserCtx  playwright.BrowserContext
	log         *zap.Logger
	initialized bool
}

// NewManager creates a session manager. The logger may be nil.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{log: log.Named("browser")}
}

// Initialize installs and starts the Playwright runtime. Must be called
// before Open.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	m.pw = pw
	m.initialized = true
	return nil
}

// Open launches the persistent context (if needed), navigates a fresh page
// to rawURL and returns it wrapped as a Page.
func (m *Manager) Open(rawURL string, opts SessionOptions) (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("session manager not initialized")
	}

	if m.browserCtx == nil {
		dir := opts.UserDataDir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("resolve home directory: %w", err)
			}
			dir = filepath.Join(home, ".billfetch", "profile")
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create profile directory: %w", err)
		}

		browserCtx, err := m.pw.Chromium.LaunchPersistentContext(dir, playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(opts.Headless),
			Viewport: &playwright.Size{
				Width:  defaultViewportWidth,
				Height: defaultViewportHeight,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		m.browserCtx = browserCtx
		m.log.Info("browser context ready", zap.String("profile", dir), zap.Bool("headless", opts.Headless))
	}

	page, err := m.browserCtx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if _, err := page.Goto(rawURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate to %s: %w", rawURL, err)
	}

	m.log.Info("page opened", zap.String("url", rawURL))
	return NewPlaywrightPage(page, m.log), nil
}

// Shutdown closes the browser context and stops Playwright.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browserCtx != nil {
		if err := m.browserCtx.Close(); err != nil {
			m.log.Warn("context close failed", zap.Error(err))
		}
		m.browserCtx = nil
	}
	if m.initialized && m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			return fmt.Errorf("stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}
