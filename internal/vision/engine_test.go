package vision

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

type stubPage struct {
	mu       sync.Mutex
	present  map[string]bool
	degree   string
	html     string
	shot     []byte
	clicks   []string
	escapes  int
	menuOpen bool
}

func newStubPage() *stubPage {
	return &stubPage{present: make(map[string]bool), shot: []byte("png")}
}

func (p *stubPage) Exists(ctx context.Context, sel string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sel == selOverflowMenu {
		return p.menuOpen, nil
	}
	if !p.menuOpen && (sel == selOverflowConnect || sel == selOverflowFollow) {
		return false, nil
	}
	return p.present[sel], nil
}

func (p *stubPage) HTML(ctx context.Context, sel string) (string, error) {
	return p.html, nil
}

func (p *stubPage) Text(ctx context.Context, sel string) (string, error) {
	return p.degree, nil
}

func (p *stubPage) Click(ctx context.Context, sel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, sel)
	if sel == `main button[aria-label="More actions"]` {
		p.menuOpen = true
	}
	return nil
}

func (p *stubPage) PressEscape(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.escapes++
	p.menuOpen = false
	return nil
}

func (p *stubPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.shot, nil
}

type stubDecider struct {
	calls    int
	decision *Decision
}

func (d *stubDecider) Decide(ctx context.Context, screenshot []byte) (*Decision, error) {
	d.calls++
	out := *d.decision
	return &out, nil
}

type stubUsage struct {
	mu   sync.Mutex
	rows []*models.AIUsageLog
}

func (u *stubUsage) RecordUsage(usage *models.AIUsageLog) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rows = append(u.rows, usage)
}

func newTestAnalyzer(decider Decider) *Analyzer {
	a := NewAnalyzer(decider, NewCache(time.Minute), nil)
	a.pace = func(ctx context.Context, meanMs, stdDevMs int) {}
	return a
}

func TestAnalyzeDeterministicConnect(t *testing.T) {
	page := newStubPage()
	page.degree = "2nd"
	page.present[`main button[aria-label*="to connect"]`] = true

	decider := &stubDecider{decision: &Decision{}}
	a := newTestAnalyzer(decider)

	d, err := a.Analyze(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, DegreeSecond, d.Degree)
	assert.Equal(t, ActionConnect, d.RecommendedAction)
	assert.Equal(t, 0, decider.calls, "model should not be consulted when selectors work")
}

func TestAnalyzePendingBlocksAction(t *testing.T) {
	page := newStubPage()
	page.degree = "2nd"
	page.present[`main button[aria-label^="Pending"]`] = true

	a := newTestAnalyzer(&stubDecider{decision: &Decision{}})
	d, err := a.Analyze(context.Background(), page)
	require.NoError(t, err)

	assert.True(t, d.InvitePending)
	assert.Equal(t, ActionNone, d.RecommendedAction)
}

func TestAnalyzeOverflowPeekFindsConnectAndClosesMenu(t *testing.T) {
	page := newStubPage()
	page.degree = "3rd"
	page.present[`main button[aria-label="More actions"]`] = true
	page.present[selOverflowConnect] = true

	a := newTestAnalyzer(&stubDecider{decision: &Decision{}})
	d, err := a.Analyze(context.Background(), page)
	require.NoError(t, err)

	connect := d.Find(ControlConnect)
	require.NotNil(t, connect)
	assert.True(t, connect.InOverflow)
	assert.Equal(t, ActionConnect, d.RecommendedAction)

	assert.Equal(t, 1, page.escapes, "overflow menu must be closed after the peek")
	assert.False(t, page.menuOpen)
}

func TestAnalyzeFallsBackToVisionAndCaches(t *testing.T) {
	page := newStubPage()
	page.html = `<div><span>Jane</span><button>?</button></div>`

	decider := &stubDecider{decision: &Decision{
		Degree: DegreeSecond,
		Controls: []Control{
			{Label: "Connect", Kind: ControlConnect, X: 410, Y: 220, Confidence: 0.9},
		},
	}}
	a := newTestAnalyzer(decider)

	first, err := a.Analyze(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, ActionConnect, first.RecommendedAction)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, decider.calls)

	// Same layout, different text: served from cache, no second model call.
	page.html = `<div><span>John</span><button>?</button></div>`
	second, err := a.Analyze(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, ActionConnect, second.RecommendedAction)
	assert.Equal(t, 1, decider.calls)
}

func TestCacheHitIsMetered(t *testing.T) {
	page := newStubPage()
	page.html = `<div><button>?</button></div>`

	decider := &stubDecider{decision: &Decision{
		Degree:   DegreeSecond,
		Controls: []Control{{Label: "Connect", Kind: ControlConnect, X: 400, Y: 210, Confidence: 0.9}},
	}}
	usage := &stubUsage{}
	a := NewAnalyzer(decider, NewCache(time.Minute), usage)
	a.pace = func(ctx context.Context, meanMs, stdDevMs int) {}

	_, err := a.Analyze(context.Background(), page)
	require.NoError(t, err)
	assert.Empty(t, usage.rows, "a model miss is metered by the client, not the analyzer")

	_, err = a.Analyze(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, usage.rows, 1)
	assert.True(t, usage.rows[0].CacheHit)
	assert.True(t, usage.rows[0].Success)
	assert.Zero(t, usage.rows[0].CostUSD)
}

func TestAnalyzeNoModelConfigured(t *testing.T) {
	page := newStubPage()
	a := NewAnalyzer(nil, NewCache(time.Minute), nil)
	a.pace = func(ctx context.Context, meanMs, stdDevMs int) {}

	_, err := a.Analyze(context.Background(), page)
	assert.Error(t, err)
}
