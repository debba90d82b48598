package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/config"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/humanize"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/ratelimit"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/vision"
)

// Action names accepted by the library.
const (
	ActionVisit           = "visit"
	ActionConnect         = "connect"
	ActionMessage         = "message"
	ActionFollow          = "follow"
	ActionCheckConnection = "check_connection"
	ActionCheckReplies    = "check_replies"
	ActionReply           = "reply"
)

// Sentinel errors the engines branch on.
var (
	// ErrSessionExpired means the page bounced to a login wall mid-action.
	ErrSessionExpired = errors.New("session expired: redirected to login wall")
	// ErrSecurityWall means the site raised a checkpoint during the action.
	ErrSecurityWall = errors.New("security checkpoint raised")
	// ErrRateLimited means the site itself refused the action, e.g. the
	// weekly invitation limit modal.
	ErrRateLimited = errors.New("platform rate limit reached")
	// ErrQuotaExceeded means the local daily quota for the action is spent.
	ErrQuotaExceeded = errors.New("daily action quota exceeded")
	// ErrControlNotFound means the page offered no control for the action.
	ErrControlNotFound = errors.New("no matching control on page")
	// ErrMissingConfig means the step config lacks a required field.
	ErrMissingConfig = errors.New("missing required step config")
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
)

// Result is the outcome of one action against one lead.
type Result struct {
	Action string      `json:"action"`
	Status string      `json:"status"`
	Detail string      `json:"detail,omitempty"`
	Data   models.JSON `json:"data,omitempty"`
}

func skipped(action, detail string) *Result {
	return &Result{Action: action, Status: StatusSkipped, Detail: detail}
}

func success(action, detail string, data models.JSON) *Result {
	return &Result{Action: action, Status: StatusSuccess, Detail: detail, Data: data}
}

// Page is the browser surface an action drives.
type Page interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Exists(ctx context.Context, sel string) (bool, error)
	HTML(ctx context.Context, sel string) (string, error)
	Text(ctx context.Context, sel string) (string, error)
	Click(ctx context.Context, sel string) error
	ClickAt(ctx context.Context, x, y float64) error
	TypeInto(ctx context.Context, sel, text string) error
	PressEscape(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	Scroll(ctx context.Context) error
	CloseExtraTabs(ctx context.Context) error
}

// Library executes outreach actions. It owns quota enforcement; engines
// translate ErrQuotaExceeded into their own skip semantics.
type Library struct {
	analyzer *vision.Analyzer
	limiter  *ratelimit.Limiter

	// pace is the inter-step delay, overridable in tests.
	pace func(ctx context.Context, meanMs, stdDevMs int)
}

// NewLibrary creates the action library.
func NewLibrary(analyzer *vision.Analyzer, limiter *ratelimit.Limiter) *Library {
	return &Library{analyzer: analyzer, limiter: limiter, pace: humanize.SleepGaussian}
}

// Execute runs one named action against a lead. The quota for the action is
// checked before any page interaction and recorded only on success.
func (l *Library) Execute(ctx context.Context, page Page, action string, lead *models.Lead, cfg models.JSON) (*Result, error) {
	quota := quotaKind(action)
	if quota != "" && !l.limiter.CanPerform(quota) {
		return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, quota)
	}

	var (
		res *Result
		err error
	)
	switch action {
	case ActionVisit:
		res, err = l.visit(ctx, page, lead)
	case ActionConnect:
		res, err = l.connect(ctx, page, lead, cfg)
	case ActionMessage:
		res, err = l.message(ctx, page, lead, cfg)
	case ActionFollow:
		res, err = l.follow(ctx, page, lead)
	case ActionCheckConnection:
		res, err = l.checkConnection(ctx, page, lead)
	case ActionCheckReplies:
		res, err = l.checkReplies(ctx, page, lead)
	case ActionReply:
		res, err = l.reply(ctx, page, lead, cfg)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}

	// Actions can pop new windows (external links, chat detach); the profile
	// must be back to a single tab before the next lead.
	if trimErr := page.CloseExtraTabs(ctx); trimErr != nil {
		logrus.Warnf("Failed to close extra tabs after %s: %v", action, trimErr)
	}

	if err != nil {
		return nil, err
	}

	if quota != "" && res.Status == StatusSuccess {
		l.limiter.Record(quota)
	}
	return res, nil
}

func quotaKind(action string) string {
	switch action {
	case ActionVisit, ActionCheckConnection:
		return ratelimit.ActionVisit
	case ActionConnect:
		return ratelimit.ActionConnect
	case ActionMessage, ActionReply:
		return ratelimit.ActionMessage
	case ActionFollow:
		return ratelimit.ActionFollow
	}
	return ""
}

// openProfile navigates to the lead's profile and verifies no wall came up.
func (l *Library) openProfile(ctx context.Context, page Page, lead *models.Lead) error {
	if lead.ProfileURL == "" {
		return fmt.Errorf("%w: lead %s has no profile url", ErrMissingConfig, lead.ID)
	}
	if err := page.Navigate(ctx, lead.ProfileURL); err != nil {
		return fmt.Errorf("failed to open profile: %w", err)
	}
	l.pace(ctx, 1200, 400)
	return checkWall(ctx, page)
}

// checkWall classifies the current URL and surfaces wall sentinels.
func checkWall(ctx context.Context, page Page) error {
	loc, err := page.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("failed to read location: %w", err)
	}
	lower := strings.ToLower(loc)
	for _, marker := range config.LinkedInSecurityWalls {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w at %s", ErrSecurityWall, loc)
		}
	}
	for _, marker := range config.LinkedInAuthWalls {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w at %s", ErrSessionExpired, loc)
		}
	}
	return nil
}

// clickControl clicks a decision control by selector or coordinates.
func clickControl(ctx context.Context, page Page, c *vision.Control) error {
	if c.Selector != "" {
		return page.Click(ctx, c.Selector)
	}
	if c.X > 0 && c.Y > 0 {
		return page.ClickAt(ctx, c.X, c.Y)
	}
	return fmt.Errorf("%w: control %q has neither selector nor coordinates", ErrControlNotFound, c.Label)
}
