package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/browser"
)

// ForceDownload refetches rawURL in the page's own context (carrying session
// cookies), verifies PDF payloads, and writes the document under dir. Used
// where the site's native anchor behavior opens the document in a new
// browsing context instead of downloading it.
func ForceDownload(ctx context.Context, page browser.Page, rawURL, fileName, dir string, log *zap.Logger) (string, error) {
	if log == nil {
		log = zap.NewNop()
	}

	result, err := page.Fetch(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("refetch document: %w", err)
	}
	if result.Status < 200 || result.Status >= 300 {
		return "", fmt.Errorf("document refetch returned status %d", result.Status)
	}

	if strings.HasSuffix(strings.ToLower(fileName), ".pdf") {
		if err := api.Validate(bytes.NewReader(result.Body), nil); err != nil {
			// Portals occasionally serve an HTML interstitial with a 200;
			// keep the payload but flag it for the human.
			log.Warn("downloaded payload failed PDF validation",
				zap.String("url", rawURL),
				zap.Error(err))
		}
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	// Header-derived names can carry path separators; keep the write
	// inside dir.
	path := filepath.Join(dir, filepath.Base(fileName))
	if err := os.WriteFile(path, result.Body, 0o640); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}

	log.Info("document saved",
		zap.String("path", path),
		zap.Int("bytes", len(result.Body)))
	return path, nil
}
