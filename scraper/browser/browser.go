// Package browser wraps a shared chromedp session for the browser-driven
// partner scrapers: one Chrome process per pass, ja-JP profile, polite
// navigation pacing, and per-field extraction that reports a missing node
// as an empty value instead of an error.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"github.com/sawadeeeen/mark-one/utils"
)

// Options configures a Session.
type Options struct {
	Headless bool
	// ChromeBin overrides browser binary auto-detection when set.
	ChromeBin string
	// RatePerSecond caps navigations; zero means one per two seconds.
	RatePerSecond float64
	Logger        *utils.Logger
}

// Session is a single live browser tab. Not safe for concurrent use; each
// source's pass owns its session exclusively (the whole pipeline is
// sequential anyway).
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	limiter *rate.Limiter
	logger  *utils.Logger
}

// NewSession launches Chrome and opens one tab.
func NewSession(parent context.Context, opts Options) (*Session, error) {
	chromeBin := opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("window-size", "1024,768"),
		chromedp.Flag("lang", "ja_JP"),
		chromedp.Flag("accept-lang", "ja"),
		chromedp.Flag("disable-features", "TranslateUI"),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	perSecond := opts.RatePerSecond
	if perSecond <= 0 {
		perSecond = 0.5
	}

	s := &Session{
		ctx:     tabCtx,
		cancels: []context.CancelFunc{cancelTab, cancelAlloc},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  opts.Logger,
	}

	// Start the browser now so a missing binary fails before login.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: start chrome: %w", err)
	}
	return s, nil
}

// Close tears the tab and browser down.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// Navigate loads a URL and waits for sel to become visible, paced by the
// session's rate limiter.
func (s *Session) Navigate(url, sel string, timeout time.Duration) error {
	if err := s.limiter.Wait(s.ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	actions := []chromedp.Action{chromedp.Navigate(url)}
	if sel != "" {
		actions = append(actions, chromedp.WaitVisible(sel, chromedp.ByQuery))
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

// Click clicks the first node matching sel.
func (s *Session) Click(sel string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: click %q: %w", sel, err)
	}
	return nil
}

// Fill types value into the input matching sel.
func (s *Session) Fill(sel, value string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: fill %q: %w", sel, err)
	}
	return nil
}

// WaitVisible blocks until sel renders.
func (s *Session) WaitVisible(sel string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.WaitVisible(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("browser: wait for %q: %w", sel, err)
	}
	return nil
}

// Text returns the trimmed text of the first node matching sel, or "" when
// the node is absent. A single unextractable field must never abort a
// property, so there is no error here — only the empty default.
func (s *Session) Text(sel string) string {
	var out string
	err := s.eval(fmt.Sprintf(
		`(function(){var n=document.querySelector(%s);return n?n.textContent.trim():"";})()`,
		jsString(sel)), &out)
	if err != nil {
		s.logger.Debug("text extraction failed for %q: %v", sel, err)
		return ""
	}
	return out
}

// Texts returns the trimmed text of every node matching sel.
func (s *Session) Texts(sel string) []string {
	var out []string
	err := s.eval(fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).map(function(n){return n.textContent.trim();})`,
		jsString(sel)), &out)
	if err != nil {
		s.logger.Debug("texts extraction failed for %q: %v", sel, err)
		return nil
	}
	return out
}

// Attrs returns an attribute from every node matching sel, skipping nodes
// without it.
func (s *Session) Attrs(sel, attr string) []string {
	var out []string
	err := s.eval(fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).map(function(n){return n.getAttribute(%s);}).filter(function(v){return v!==null;})`,
		jsString(sel), jsString(attr)), &out)
	if err != nil {
		s.logger.Debug("attrs extraction failed for %q[%s]: %v", sel, attr, err)
		return nil
	}
	return out
}

// Evaluate runs an arbitrary page expression into out.
func (s *Session) Evaluate(expr string, out any) error {
	return s.eval(expr, out)
}

func (s *Session) eval(expr string, out any) error {
	ctx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
	defer cancel()
	return chromedp.Run(ctx, chromedp.Evaluate(expr, out))
}

// jsString embeds a Go string as a safely quoted JS literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// findChromeBinary locates an installed Chrome/Chromium.
func findChromeBinary() string {
	candidates := []string{
		"google-chrome", "google-chrome-stable", "chromium", "chromium-browser",
		"/usr/bin/google-chrome", "/usr/bin/chromium",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path
		}
	}
	return ""
}
