package actions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/ratelimit"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/vision"
)

const (
	probeConnect = `main button[aria-label*="to connect"]`
	probeMessage = `main .ph5 button[aria-label^="Message"]`
	probePending = `main button[aria-label^="Pending"]`
	probeFollow  = `main button[aria-label^="Follow"]`
)

type fakePage struct {
	mu        sync.Mutex
	loc       string
	redirect  string // when set, Navigate lands here instead
	present   map[string]bool
	texts     map[string]string
	htmls     map[string]string
	typed     map[string]string
	clicks    []string
	navigated []string
	tabTrims  int
}

func newFakePage() *fakePage {
	return &fakePage{
		present: make(map[string]bool),
		texts:   make(map[string]string),
		htmls:   make(map[string]string),
		typed:   make(map[string]string),
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	if p.redirect != "" {
		p.loc = p.redirect
	} else {
		p.loc = url
	}
	return nil
}

func (p *fakePage) CurrentURL(ctx context.Context) (string, error) { return p.loc, nil }

func (p *fakePage) Exists(ctx context.Context, sel string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[sel], nil
}

func (p *fakePage) HTML(ctx context.Context, sel string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.htmls[sel], nil
}

func (p *fakePage) Text(ctx context.Context, sel string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.texts[sel], nil
}

func (p *fakePage) Click(ctx context.Context, sel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, sel)
	return nil
}

func (p *fakePage) ClickAt(ctx context.Context, x, y float64) error { return nil }

func (p *fakePage) TypeInto(ctx context.Context, sel, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed[sel] = text
	return nil
}

func (p *fakePage) PressEscape(ctx context.Context) error { return nil }

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) { return []byte("png"), nil }

func (p *fakePage) Scroll(ctx context.Context) error { return nil }

func (p *fakePage) CloseExtraTabs(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tabTrims++
	return nil
}

func noPace(ctx context.Context, meanMs, stdDevMs int) {}

func newTestLibrary(limits map[string]int) (*Library, *ratelimit.Limiter) {
	limiter := ratelimit.NewLimiter(limits)
	analyzer := vision.NewAnalyzer(nil, vision.NewCache(time.Minute), nil)
	analyzer.SetPace(noPace)
	lib := NewLibrary(analyzer, limiter)
	lib.pace = noPace
	return lib, limiter
}

func testLead() *models.Lead {
	return &models.Lead{
		ID:         "lead-1",
		ProfileURL: "https://www.linkedin.com/in/jane-doe/",
		Name:       "Jane Doe",
		FirstName:  "Jane",
		Company:    "Acme",
	}
}

func TestRenderTemplate(t *testing.T) {
	fields := map[string]string{"first_name": "Jane", "company": "Acme"}
	got := RenderTemplate("Hi {{First_Name}}, loved what {{company}} does. {{unknown}}", fields)
	assert.Equal(t, "Hi Jane, loved what Acme does.", got)
}

func TestRenderTemplateKeepsNewlines(t *testing.T) {
	got := RenderTemplate("Hi {{first_name}},\n\nBest,\nSam", map[string]string{"first_name": "Jane"})
	assert.Equal(t, "Hi Jane,\n\nBest,\nSam", got)
}

func TestExecuteQuotaExceededBeforeTouchingPage(t *testing.T) {
	lib, _ := newTestLibrary(map[string]int{ratelimit.ActionConnect: 0})
	page := newFakePage()

	_, err := lib.Execute(context.Background(), page, ActionConnect, testLead(), nil)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Empty(t, page.navigated)
}

func TestVisitRecordsQuotaAndDegree(t *testing.T) {
	lib, limiter := newTestLibrary(map[string]int{ratelimit.ActionVisit: 10})
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "2nd"
	page.present[probeMessage] = true

	lead := testLead()
	res, err := lib.Execute(context.Background(), page, ActionVisit, lead, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, models.DegreeSecond, lead.ConnectionDegree)
	assert.Equal(t, 9, limiter.Remaining(ratelimit.ActionVisit))
}

func TestVisitFillsMissingProfileFields(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	page := newFakePage()
	page.texts[selProfileName] = "John Smith"
	page.texts[selProfileHeadline] = "Staff Engineer at Initech"
	page.present[probeMessage] = true

	lead := &models.Lead{ID: "lead-2", ProfileURL: "https://www.linkedin.com/in/john-smith/"}
	_, err := lib.Execute(context.Background(), page, ActionVisit, lead, nil)
	require.NoError(t, err)

	assert.Equal(t, "John Smith", lead.Name)
	assert.Equal(t, "John", lead.FirstName)
	assert.Equal(t, "Staff Engineer", lead.Title)
	assert.Equal(t, "Initech", lead.Company)
}

func TestVisitKeepsExistingProfileFields(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	page := newFakePage()
	page.texts[selProfileName] = "Someone Else"
	page.present[probeMessage] = true

	lead := testLead()
	_, err := lib.Execute(context.Background(), page, ActionVisit, lead, nil)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", lead.Name)
}

func TestVisitSessionExpired(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	page := newFakePage()
	page.redirect = "https://www.linkedin.com/login?redirect=x"

	_, err := lib.Execute(context.Background(), page, ActionVisit, testLead(), nil)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestVisitSecurityWall(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	page := newFakePage()
	page.redirect = "https://www.linkedin.com/checkpoint/challenge/xyz"

	_, err := lib.Execute(context.Background(), page, ActionVisit, testLead(), nil)
	assert.ErrorIs(t, err, ErrSecurityWall)
}

func TestConnectSkipsPendingInvite(t *testing.T) {
	lib, limiter := newTestLibrary(map[string]int{ratelimit.ActionConnect: 5})
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "2nd"
	page.present[probePending] = true

	res, err := lib.Execute(context.Background(), page, ActionConnect, testLead(), nil)
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, res.Status)
	// Skips do not consume quota.
	assert.Equal(t, 5, limiter.Remaining(ratelimit.ActionConnect))
}

func TestConnectSkipsFirstDegree(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "1st"
	page.present[probeMessage] = true

	res, err := lib.Execute(context.Background(), page, ActionConnect, testLead(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
}

func TestConnectWithNote(t *testing.T) {
	lib, limiter := newTestLibrary(map[string]int{ratelimit.ActionConnect: 5})
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "2nd"
	page.present[probeConnect] = true
	page.present[selAddNote] = true
	page.present[selSendInvite] = true

	lead := testLead()
	cfg := models.JSON{"note": "Hi {{first_name}}, let's connect!"}
	res, err := lib.Execute(context.Background(), page, ActionConnect, lead, cfg)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, true, res.Data["with_note"])
	assert.Equal(t, "Hi Jane, let's connect!", page.typed[selNoteTextarea])
	assert.Contains(t, page.clicks, probeConnect)
	assert.Contains(t, page.clicks, selSendInvite)
	assert.Equal(t, 4, limiter.Remaining(ratelimit.ActionConnect))
}

func TestConnectInviteLimitModal(t *testing.T) {
	lib, limiter := newTestLibrary(map[string]int{ratelimit.ActionConnect: 5})
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "2nd"
	page.present[probeConnect] = true
	page.htmls["div[role=dialog]"] = `<div>You've reached the weekly invitation limit</div>`

	_, err := lib.Execute(context.Background(), page, ActionConnect, testLead(), nil)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 5, limiter.Remaining(ratelimit.ActionConnect))
}

func TestConnectFallsBackToFollow(t *testing.T) {
	lib, limiter := newTestLibrary(map[string]int{ratelimit.ActionConnect: 5})
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "3rd"
	page.present[probeFollow] = true

	res, err := lib.Execute(context.Background(), page, ActionConnect, testLead(), nil)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "follow", res.Data["fallback"])
	assert.Contains(t, page.clicks, probeFollow)
	assert.Equal(t, 4, limiter.Remaining(ratelimit.ActionConnect))
}

func TestConnectNoControlsAtAll(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "2nd"
	page.present[probeMessage] = true

	_, err := lib.Execute(context.Background(), page, ActionConnect, testLead(), nil)
	assert.ErrorIs(t, err, ErrControlNotFound)
}

func TestMessageSkipsNonFirstDegree(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "3rd"
	page.present[probeFollow] = true

	res, err := lib.Execute(context.Background(), page, ActionMessage, testLead(), models.JSON{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
}

func TestMessageMissingText(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	_, err := lib.Execute(context.Background(), newFakePage(), ActionMessage, testLead(), nil)
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestMessageSendsRenderedTemplate(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "1st"
	page.present[probeMessage] = true
	page.present[selMessageBox] = true

	lead := testLead()
	res, err := lib.Execute(context.Background(), page, ActionMessage, lead, models.JSON{"text": "Hi {{first_name}} from {{company}}"})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Hi Jane from Acme", page.typed[selMessageBox])
	assert.Contains(t, page.clicks, selMessageSend)
}

func TestFollowThirdDegree(t *testing.T) {
	lib, limiter := newTestLibrary(map[string]int{ratelimit.ActionFollow: 3})
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "3rd"
	page.present[probeFollow] = true

	res, err := lib.Execute(context.Background(), page, ActionFollow, testLead(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, limiter.Remaining(ratelimit.ActionFollow))
}

func TestCheckConnectionReportsConnected(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "1st"
	page.present[probeMessage] = true

	res, err := lib.Execute(context.Background(), page, ActionCheckConnection, testLead(), nil)
	require.NoError(t, err)
	assert.Equal(t, true, res.Data["connected"])
}

func TestCheckRepliesMatchesLeadName(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	page := newFakePage()
	page.present[selUnreadConvos] = true
	page.texts[selConvoNames] = "Jane Doe"

	res, err := lib.Execute(context.Background(), page, ActionCheckReplies, testLead(), nil)
	require.NoError(t, err)
	assert.Equal(t, true, res.Data["replied"])
}

func TestReplySendsRenderedText(t *testing.T) {
	lib, limiter := newTestLibrary(map[string]int{ratelimit.ActionMessage: 5})
	page := newFakePage()
	page.present[selUnreadConvos] = true
	page.texts[selConvoNames] = "Jane Doe"
	page.present[selMessageBox] = true

	lead := testLead()
	res, err := lib.Execute(context.Background(), page, ActionReply, lead, models.JSON{"text": "Thanks {{first_name}}!"})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Thanks Jane!", page.typed[selMessageBox])
	assert.Contains(t, page.clicks, selMessageSend)
	assert.Equal(t, 4, limiter.Remaining(ratelimit.ActionMessage))
}

func TestReplySkipsWithoutUnreadConversation(t *testing.T) {
	lib, limiter := newTestLibrary(map[string]int{ratelimit.ActionMessage: 5})
	page := newFakePage()

	res, err := lib.Execute(context.Background(), page, ActionReply, testLead(), models.JSON{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, 5, limiter.Remaining(ratelimit.ActionMessage))
}

func TestExecuteTrimsToSingleTabAfterAction(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	page := newFakePage()
	page.texts["span.dist-value, span.distance-badge .dist-value"] = "2nd"
	page.present[probeMessage] = true

	_, err := lib.Execute(context.Background(), page, ActionVisit, testLead(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, page.tabTrims, "every action leaves the profile on a single tab")

	_, err = lib.Execute(context.Background(), page, ActionCheckConnection, testLead(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, page.tabTrims)
}

func TestUnknownAction(t *testing.T) {
	lib, _ := newTestLibrary(nil)
	_, err := lib.Execute(context.Background(), newFakePage(), "teleport", testLead(), nil)
	assert.Error(t, err)
}
