package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/humanize"
)

// Session is a live CDP attachment to one remote browser profile. All page
// operations are serialized per session; the engines never run two actions
// on the same profile concurrently.
type Session struct {
	AccountID string
	ProfileID string

	wsURL       string
	allocCancel context.CancelFunc
	cancel      context.CancelFunc
	browserCtx  context.Context
	opTimeout   time.Duration

	mu     sync.Mutex
	closed bool
}

// Connect attaches to a running remote browser over its CDP websocket and
// binds to the profile's startup tab instead of opening a new one.
func Connect(ctx context.Context, accountID, profileID, wsURL string, opTimeout time.Duration) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), wsURL, chromedp.NoModifyURL)

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to attach to browser at %s: %w", wsURL, err)
	}

	// Reuse the tab the vendor opened at startup when there is one.
	targets, err := chromedp.Targets(browserCtx)
	if err == nil {
		for _, t := range targets {
			if t.Type == "page" && !t.Attached {
				tabCtx, tabCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(t.TargetID))
				if err := chromedp.Run(tabCtx); err == nil {
					cancel()
					browserCtx, cancel = tabCtx, tabCancel
				} else {
					tabCancel()
				}
				break
			}
		}
	}

	s := &Session{
		AccountID:   accountID,
		ProfileID:   profileID,
		wsURL:       wsURL,
		allocCancel: allocCancel,
		cancel:      cancel,
		browserCtx:  browserCtx,
		opTimeout:   opTimeout,
	}
	return s, nil
}

// Run executes chromedp actions on the session's tab under the op timeout.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session for account %s is closed", s.AccountID)
	}

	runCtx, cancel := context.WithTimeout(s.browserCtx, s.opTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Ctx exposes the tab context for input dispatch helpers.
func (s *Session) Ctx() context.Context {
	return s.browserCtx
}

// Alive reports whether the CDP connection still answers.
func (s *Session) Alive(ctx context.Context) bool {
	var title string
	return s.Run(ctx, chromedp.Title(&title)) == nil
}

// Navigate loads a URL and waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.Run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	humanize.SleepGaussian(ctx, 1500, 500)
	return nil
}

// CurrentURL returns the tab's current location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.Run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// Exists reports whether at least one element matches the selector right now.
func (s *Session) Exists(ctx context.Context, sel string) (bool, error) {
	var found bool
	err := s.Run(ctx, chromedp.Evaluate(
		fmt.Sprintf(`document.querySelector(%q) !== null`, sel), &found))
	if err != nil {
		return false, fmt.Errorf("failed to probe %q: %w", sel, err)
	}
	return found, nil
}

// HTML returns the outer HTML of the first element matching sel, or the
// whole document when sel is empty.
func (s *Session) HTML(ctx context.Context, sel string) (string, error) {
	if sel == "" {
		sel = "html"
	}
	var html string
	err := s.Run(ctx, chromedp.OuterHTML(sel, &html, chromedp.ByQuery, chromedp.AtLeast(0)))
	if err != nil {
		return "", fmt.Errorf("failed to read html of %q: %w", sel, err)
	}
	return html, nil
}

// Text returns the visible text of the first element matching sel.
func (s *Session) Text(ctx context.Context, sel string) (string, error) {
	var text string
	err := s.Run(ctx, chromedp.Text(sel, &text, chromedp.ByQuery, chromedp.AtLeast(0)))
	if err != nil {
		return "", fmt.Errorf("failed to read text of %q: %w", sel, err)
	}
	return text, nil
}

// Click clicks the first element matching sel with a human pointer path.
// Falls back to a DOM click when the element's box cannot be resolved.
func (s *Session) Click(ctx context.Context, sel string) error {
	x, y, err := s.elementCenter(ctx, sel)
	if err == nil && x > 0 && y > 0 {
		return s.ClickAt(ctx, x, y)
	}
	if err := s.Run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to click %q: %w", sel, err)
	}
	return nil
}

// ClickAt clicks at viewport coordinates with a human pointer path.
func (s *Session) ClickAt(ctx context.Context, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session for account %s is closed", s.AccountID)
	}
	runCtx, cancel := context.WithTimeout(s.browserCtx, s.opTimeout)
	defer cancel()
	return humanize.ClickAt(runCtx, x, y)
}

// TypeInto focuses sel and types text with a human cadence.
func (s *Session) TypeInto(ctx context.Context, sel, text string) error {
	if err := s.Run(ctx, chromedp.Focus(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to focus %q: %w", sel, err)
	}
	humanize.SleepRandom(ctx, 200, 500)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session for account %s is closed", s.AccountID)
	}
	runCtx, cancel := context.WithTimeout(s.browserCtx, 3*s.opTimeout)
	defer cancel()
	return humanize.TypeText(runCtx, text)
}

// PressEscape sends an Escape key, used to dismiss menus and modals.
func (s *Session) PressEscape(ctx context.Context) error {
	return s.Run(ctx, chromedp.KeyEvent(kb.Escape))
}

// Scroll scrolls the page like a reader.
func (s *Session) Scroll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session for account %s is closed", s.AccountID)
	}
	runCtx, cancel := context.WithTimeout(s.browserCtx, s.opTimeout)
	defer cancel()
	return humanize.ScrollPage(runCtx)
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// elementCenter resolves the viewport center of the first match of sel.
func (s *Session) elementCenter(ctx context.Context, sel string) (float64, float64, error) {
	var box struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return {x: -1, y: -1};
		const r = el.getBoundingClientRect();
		return {x: r.x + r.width / 2, y: r.y + r.height / 2};
	})()`, sel)
	if err := s.Run(ctx, chromedp.Evaluate(script, &box)); err != nil {
		return 0, 0, err
	}
	if box.X < 0 {
		return 0, 0, fmt.Errorf("element %q not found", sel)
	}
	return box.X, box.Y, nil
}

// CloseExtraTabs closes every page target except the session's own tab.
// The profile's only tab is never closed; the vendor treats a windowless
// browser as crashed.
func (s *Session) CloseExtraTabs(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	browserCtx := s.browserCtx
	s.mu.Unlock()
	if browserCtx == nil {
		return nil
	}

	own := chromedp.FromContext(browserCtx)
	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	pages := 0
	for _, t := range targets {
		if t.Type == "page" {
			pages++
		}
	}
	if pages <= 1 {
		return nil
	}

	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if own != nil && own.Target != nil && t.TargetID == own.Target.TargetID {
			continue
		}
		err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			return target.CloseTarget(t.TargetID).Do(ctx)
		}))
		if err != nil {
			logrus.Warnf("Failed to close extra tab %s for account %s: %v", t.TargetID, s.AccountID, err)
		}
	}
	return nil
}

// Close detaches from the browser. It does not stop the vendor profile.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}
