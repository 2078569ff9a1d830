// Package ui renders action outcomes for the terminal: a status banner, the
// response body as syntax-highlighted JSON, and the clipboard handoff that
// bridges workflows a human must finish by hand.
package ui

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/action"
	"github.com/billfetch/billfetch/pkg/artifact"
)

var (
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)
	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Renderer writes action responses to a terminal.
type Renderer struct {
	out   io.Writer
	color bool
	log   *zap.Logger
}

// NewRenderer builds a Renderer. Color turns on syntax highlighting and
// styled banners; keep it off when out is not a terminal.
func NewRenderer(out io.Writer, color bool, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{out: out, color: color, log: log.Named("render")}
}

// Response prints the outcome banner of one action followed by the response
// body as indented JSON.
func (r *Renderer) Response(kind action.Kind, resp *action.Response) error {
	banner := fmt.Sprintf("✗ %s", kind)
	style := failStyle
	if resp.OK {
		banner = fmt.Sprintf("✓ %s", kind)
		style = okStyle
	}
	if r.color {
		banner = style.Render(banner)
	}
	if _, err := fmt.Fprintln(r.out, banner); err != nil {
		return err
	}

	body, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if r.color {
		if err := quick.Highlight(r.out, string(body), "json", "terminal256", "monokai"); err != nil {
			r.log.Debug("highlighting failed, printing plain", zap.Error(err))
			_, err = fmt.Fprintln(r.out, string(body))
			return err
		}
		_, err = fmt.Fprintln(r.out)
		return err
	}
	_, err = fmt.Fprintln(r.out, string(body))
	return err
}

// OfferManualUpload puts the document's source URL on the clipboard and
// prints where to paste it, for downloads the browser could not complete
// itself. Clipboard access is best-effort: headless hosts have none.
func (r *Renderer) OfferManualUpload(doc *artifact.Artifact) {
	if doc == nil || !doc.ManualUploadRequired || doc.SourceURL == "" {
		return
	}

	note := fmt.Sprintf("manual step: open %s and save it as %s", doc.SourceURL, doc.FileName)
	if err := clipboard.WriteAll(doc.SourceURL); err != nil {
		r.log.Debug("clipboard unavailable", zap.Error(err))
	} else {
		note += " (URL copied to clipboard)"
	}
	if r.color {
		note = noteStyle.Render(note)
	}
	fmt.Fprintln(r.out, note)
}
