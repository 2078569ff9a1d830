// Command billfetch drives French billing portals from the terminal: it
// authenticates into a portal, locates and downloads the latest invoice,
// and can push the extracted data into the Navan expense tool.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/browser"
	"github.com/billfetch/billfetch/pkg/logging"
	"github.com/billfetch/billfetch/pkg/profile"
	"github.com/billfetch/billfetch/pkg/ui"
)

const version = "0.1.0"

var (
	flagSelectors   string
	flagDownloadDir string
	flagUserDataDir string
	flagHeadless    bool
	flagDebug       bool
	flagNoColor     bool
)

var rootCmd = &cobra.Command{
	Use:   "billfetch",
	Short: "Fetch invoices from French billing portals and file them as expenses",
	Long: `billfetch automates invoice retrieval from Orange, Free, Free Mobile,
Navigo and Red by SFR, and can autofill the Navan expense tool with the
extracted data. CAPTCHA and SMS challenges are always left to the human,
so the browser runs with a visible window by default.`,
	SilenceUsage: true,
	Version:      version,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagSelectors, "selectors", "", "path to a selector override YAML")
	rootCmd.PersistentFlags().StringVar(&flagDownloadDir, "download-dir", defaultDownloadDir(), "directory receiving downloaded invoices")
	rootCmd.PersistentFlags().StringVar(&flagUserDataDir, "user-data-dir", "", "persistent browser profile directory")
	rootCmd.PersistentFlags().BoolVar(&flagHeadless, "headless", false, "run the browser without a window (challenges cannot be solved)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "echo debug logs to the console")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable styled terminal output")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(expenseCmd)
	rootCmd.AddCommand(providersCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "downloads"
	}
	return filepath.Join(home, ".billfetch", "downloads")
}

// app bundles the dependencies every command needs: logger, selector
// config, browser session manager, and renderer.
type app struct {
	log     *zap.Logger
	closeFn func()
	cfg     *profile.Config
	manager *browser.Manager
	render  *ui.Renderer
}

func newApp() (*app, error) {
	log, closer, err := logging.New(flagDebug)
	if err != nil {
		return nil, err
	}

	cfg, err := profile.Load(flagSelectors)
	if err != nil {
		closer()
		return nil, err
	}

	if err := os.MkdirAll(flagDownloadDir, 0o750); err != nil {
		closer()
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	return &app{
		log:     log,
		closeFn: closer,
		cfg:     cfg,
		manager: browser.NewManager(log),
		render:  ui.NewRenderer(os.Stdout, !flagNoColor, log),
	}, nil
}

// openPortal starts the browser and opens rawURL in the persistent session.
func (a *app) openPortal(rawURL string) (browser.Page, error) {
	if err := a.manager.Initialize(); err != nil {
		return nil, fmt.Errorf("start browser runtime: %w", err)
	}
	page, err := a.manager.Open(rawURL, browser.SessionOptions{
		Headless:    flagHeadless,
		UserDataDir: flagUserDataDir,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rawURL, err)
	}
	return page, nil
}

func (a *app) close() {
	if err := a.manager.Shutdown(); err != nil {
		a.log.Warn("browser shutdown failed", zap.Error(err))
	}
	a.closeFn()
}

// portalURL resolves the start URL of a provider from its first configured
// host pattern. Wildcard patterns are skipped; a provider whose hosts are
// all wildcards cannot be opened directly.
func portalURL(cfg *profile.Config, id profile.Identity) (string, error) {
	prof := cfg.For(id)
	for _, host := range prof.Hosts {
		if host == "" || containsWildcard(host) {
			continue
		}
		return "https://" + host + "/", nil
	}
	return "", fmt.Errorf("no addressable host configured for provider %s", id)
}

func containsWildcard(host string) bool {
	for _, r := range host {
		if r == '*' || r == '?' || r == '[' {
			return true
		}
	}
	return false
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the supported billing portals",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := profile.Load(flagSelectors)
		if err != nil {
			return err
		}
		for _, id := range profile.Known() {
			prof := cfg.For(id)
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %v\n", id, prof.Hosts)
		}
		return nil
	},
}
