package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/humanize"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

// Page is the slice of browser operations the decision engine needs.
type Page interface {
	Exists(ctx context.Context, sel string) (bool, error)
	HTML(ctx context.Context, sel string) (string, error)
	Text(ctx context.Context, sel string) (string, error)
	Click(ctx context.Context, sel string) error
	PressEscape(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Decider is the model-backed fallback for pages the deterministic probe
// cannot read.
type Decider interface {
	Decide(ctx context.Context, screenshot []byte) (*Decision, error)
}

// Selectors for the profile top card action area. Kept in one place because
// the site renames these classes a few times a year.
const (
	selActionArea  = "main .ph5, main section.artdeco-card"
	selDegreeBadge = "span.dist-value, span.distance-badge .dist-value"
)

var probeSelectors = []struct {
	kind string
	sel  string
}{
	{ControlPending, `main button[aria-label^="Pending"]`},
	{ControlConnect, `main button[aria-label*="to connect"]`},
	{ControlMessage, `main .ph5 button[aria-label^="Message"]`},
	{ControlFollow, `main button[aria-label^="Follow"]`},
	{ControlMore, `main button[aria-label="More actions"]`},
}

const (
	selOverflowMenu    = `div.artdeco-dropdown__content--is-open`
	selOverflowConnect = `div.artdeco-dropdown__content--is-open div[aria-label*="to connect"]`
	selOverflowFollow  = `div.artdeco-dropdown__content--is-open div[aria-label^="Follow"]`
)

// Analyzer decides what can be done on the profile in front of a session.
// It reads the DOM first and only spends a model call when the deterministic
// probe comes back empty, caching model verdicts by page structure.
type Analyzer struct {
	decider Decider
	cache   *Cache
	usage   UsageRecorder

	// pace is the delay around overflow peeks, overridable in tests.
	pace func(ctx context.Context, meanMs, stdDevMs int)
}

// NewAnalyzer creates a decision engine. decider may be nil, in which case
// unreadable pages yield an error instead of a model call. usage may be nil;
// when set, cache hits are metered as zero-cost rows.
func NewAnalyzer(decider Decider, cache *Cache, usage UsageRecorder) *Analyzer {
	return &Analyzer{decider: decider, cache: cache, usage: usage, pace: humanize.SleepGaussian}
}

// SetPace overrides the delay around overflow peeks.
func (a *Analyzer) SetPace(pace func(ctx context.Context, meanMs, stdDevMs int)) {
	a.pace = pace
}

// Analyze inspects the profile action area and returns a decision.
func (a *Analyzer) Analyze(ctx context.Context, page Page) (*Decision, error) {
	d, conclusive, err := a.probe(ctx, page)
	if err != nil {
		return nil, err
	}
	if conclusive {
		return d, nil
	}
	return a.decideByVision(ctx, page, d.Degree)
}

// probe reads the action area through known selectors. It is conclusive when
// at least one primary control or a pending badge is found.
func (a *Analyzer) probe(ctx context.Context, page Page) (*Decision, bool, error) {
	d := &Decision{Degree: DegreeUnknown}

	if text, err := page.Text(ctx, selDegreeBadge); err == nil {
		d.Degree = parseDegree(text)
	}

	for _, probe := range probeSelectors {
		found, err := page.Exists(ctx, probe.sel)
		if err != nil {
			return nil, false, fmt.Errorf("failed to probe action area: %w", err)
		}
		if found {
			d.Controls = append(d.Controls, Control{
				Kind:       probe.kind,
				Selector:   probe.sel,
				Confidence: 0.95,
			})
		}
	}

	// A Connect hidden behind the More menu is common on 2nd/3rd degree
	// profiles. Peek inside, then always close the menu again.
	if d.Find(ControlConnect) == nil && d.Find(ControlMore) != nil {
		if err := a.peekOverflow(ctx, page, d); err != nil {
			logrus.Warnf("Overflow peek failed: %v", err)
		}
	}

	conclusive := d.Find(ControlPending) != nil ||
		d.Find(ControlConnect) != nil ||
		d.Find(ControlMessage) != nil ||
		d.Find(ControlFollow) != nil

	sanitizeDecision(d)
	d.RecommendedAction = recommend(d)
	return d, conclusive, nil
}

// peekOverflow opens the More menu, records what it holds, and closes it.
// The close runs even when inspection fails; a dangling open menu would
// swallow every later click.
func (a *Analyzer) peekOverflow(ctx context.Context, page Page, d *Decision) error {
	more := d.Find(ControlMore)
	if err := page.Click(ctx, more.Selector); err != nil {
		return fmt.Errorf("failed to open overflow menu: %w", err)
	}
	defer func() {
		if err := page.PressEscape(ctx); err != nil {
			logrus.Warnf("Failed to close overflow menu: %v", err)
		}
	}()
	a.pace(ctx, 800, 200)

	if open, err := page.Exists(ctx, selOverflowMenu); err != nil || !open {
		return fmt.Errorf("overflow menu did not open")
	}

	if found, _ := page.Exists(ctx, selOverflowConnect); found {
		d.Controls = append(d.Controls, Control{
			Kind:       ControlConnect,
			Selector:   selOverflowConnect,
			Confidence: 0.9,
			InOverflow: true,
		})
	}
	if found, _ := page.Exists(ctx, selOverflowFollow); found {
		d.Controls = append(d.Controls, Control{
			Kind:       ControlFollow,
			Selector:   selOverflowFollow,
			Confidence: 0.9,
			InOverflow: true,
		})
	}
	return nil
}

// decideByVision falls back to the model, reusing cached verdicts for pages
// with the same structure.
func (a *Analyzer) decideByVision(ctx context.Context, page Page, degree string) (*Decision, error) {
	if a.decider == nil {
		return nil, fmt.Errorf("action area unreadable and no vision model configured")
	}

	markup, err := page.HTML(ctx, selActionArea)
	if err != nil {
		return nil, fmt.Errorf("failed to read action area markup: %w", err)
	}
	key := a.cache.Key(markup)
	if d, ok := a.cache.Get(key); ok {
		if a.usage != nil {
			a.usage.RecordUsage(&models.AIUsageLog{
				Model:    "cache",
				Purpose:  "profile_decision",
				Success:  true,
				CacheHit: true,
			})
		}
		return d, nil
	}

	shot, err := page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot for vision: %w", err)
	}
	d, err := a.decider.Decide(ctx, shot)
	if err != nil {
		return nil, err
	}
	if d.Degree == DegreeUnknown && degree != DegreeUnknown {
		d.Degree = degree
	}
	d.RecommendedAction = recommend(d)
	a.cache.Put(key, d)
	return d, nil
}

// recommend applies the engagement policy to a sanitized decision:
// a pending invite blocks everything, 1st degree profiles are messaged
// rather than re-invited, a visible Connect beats an overflow Connect, and
// a 3rd degree profile without any Connect falls back to Follow.
func recommend(d *Decision) string {
	if d.InvitePending || d.Find(ControlPending) != nil {
		return ActionNone
	}
	if d.Degree == DegreeFirst {
		if d.Find(ControlMessage) != nil {
			return ActionMessage
		}
		return ActionNone
	}
	if d.Find(ControlConnect) != nil {
		return ActionConnect
	}
	if (d.Degree == DegreeThird || d.Degree == DegreeOutOfNetwork) && d.Find(ControlFollow) != nil {
		return ActionFollow
	}
	return ActionNone
}

func parseDegree(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "1st"):
		return DegreeFirst
	case strings.Contains(t, "2nd"):
		return DegreeSecond
	case strings.Contains(t, "3rd"):
		return DegreeThird
	case strings.Contains(t, "out of network"):
		return DegreeOutOfNetwork
	default:
		return DegreeUnknown
	}
}
