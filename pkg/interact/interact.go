// Package interact simulates genuine user interaction against live
// elements. Both operations are best-effort and never report failure
// themselves: callers detect success by re-reading observable state (a
// next-step element becoming visible, the field's value) rather than
// trusting a return code from the interaction.
package interact

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/billfetch/billfetch/pkg/browser"
)

const fileInputSelector = "input[type='file']"

// Click scrolls el into the viewport, dispatches the full synthetic
// pointer/mouse sequence at its visual center, then reinforces with native
// activation. File-picker inputs skip the native step: browsers require a
// direct user gesture to open a chooser, and a scripted click would fail
// silently or surface a permission error, so that step is left to the human.
func Click(ctx context.Context, el browser.Element, log *zap.Logger) {
	if el == nil {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}

	if err := el.ScrollIntoView(ctx); err != nil {
		log.Debug("scroll into view failed", zap.Error(err))
	}
	if err := el.DispatchClickSequence(ctx); err != nil {
		log.Debug("click sequence dispatch failed", zap.Error(err))
		return
	}

	isFileInput, err := el.Matches(ctx, fileInputSelector)
	if err != nil {
		log.Debug("file input check failed", zap.Error(err))
		return
	}
	if isFileInput {
		log.Debug("withholding native activation on file input")
		return
	}
	if err := el.NativeActivate(ctx); err != nil {
		log.Debug("native activation failed", zap.Error(err))
	}
}

// SetValue writes text into el. The paste-like insertion path runs first
// because some login forms only accept paste-sourced input; when the field
// does not reflect the text afterwards, the direct native-setter path runs
// instead. Every write ends with a synthetic change event so validation
// bound to blur/change fires.
func SetValue(ctx context.Context, el browser.Element, text string, log *zap.Logger) {
	if el == nil {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}

	Click(ctx, el, log)
	if err := el.Focus(ctx); err != nil {
		log.Debug("focus failed", zap.Error(err))
	}

	reflected, err := el.PasteInsert(ctx, text)
	if err != nil {
		log.Debug("paste-like insertion failed", zap.Error(err))
	}
	if !reflected {
		if err := el.SetNativeValue(ctx, text); err != nil {
			log.Debug("native value assignment failed", zap.Error(err))
		}
	}

	if err := el.DispatchChange(ctx); err != nil {
		log.Debug("change dispatch failed", zap.Error(err))
	}
}

// HasValue reports whether el currently holds a non-blank value.
func HasValue(ctx context.Context, el browser.Element) bool {
	if el == nil {
		return false
	}
	value, err := el.Value(ctx)
	if err != nil {
		return false
	}
	return strings.TrimSpace(value) != ""
}

// SelectRadio checks a radio/checkbox input, dispatching input and change,
// then clicks its label when one encloses it (some option rows only react
// to label clicks). Falls back to clicking the input itself.
func SelectRadio(ctx context.Context, el browser.Element, log *zap.Logger) {
	if el == nil {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}

	if err := el.SetChecked(ctx, true); err != nil {
		log.Debug("set checked failed", zap.Error(err))
	}

	label, err := el.Closest(ctx, "label")
	if err != nil {
		log.Debug("label lookup failed", zap.Error(err))
	}
	if label != nil {
		if visible, err := label.Visible(ctx); err == nil && visible {
			Click(ctx, label, log)
			return
		}
	}
	if visible, err := el.Visible(ctx); err == nil && visible {
		Click(ctx, el, log)
	}
}
