package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/vision"
)

const (
	selAddNote        = `button[aria-label="Add a note"]`
	selNoteTextarea   = `textarea[name="message"], #custom-message`
	selSendInvite     = `button[aria-label="Send invitation"], button[aria-label="Send now"], button[aria-label="Send without a note"]`
	selDismissModal   = `button[aria-label="Dismiss"]`
	selLimitModalText = `weekly invitation limit`
)

// connect sends a connection invite, optionally with a personalized note
// from cfg["note"]. Pending invites and 1st degree profiles are skipped.
func (l *Library) connect(ctx context.Context, page Page, lead *models.Lead, cfg models.JSON) (*Result, error) {
	if err := l.openProfile(ctx, page, lead); err != nil {
		return nil, err
	}

	decision, err := l.analyzer.Analyze(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze profile: %w", err)
	}
	lead.ConnectionDegree = decision.Degree

	if decision.InvitePending {
		return skipped(ActionConnect, "invite already pending"), nil
	}
	if decision.Degree == models.DegreeFirst {
		return skipped(ActionConnect, "already a 1st degree connection"), nil
	}

	control := vision.PickControl(decision, func(c *vision.Control) bool {
		return c.Kind == vision.ControlConnect
	}, 0)
	if control == nil {
		// Profiles out of invite reach often only expose Follow; take the
		// decision engine's recommendation instead of failing the step.
		if decision.RecommendedAction == vision.ActionFollow {
			return l.followInstead(ctx, page, decision)
		}
		return nil, fmt.Errorf("%w: connect", ErrControlNotFound)
	}

	// An overflow Connect lives inside the More menu, which the analyzer
	// closed after peeking. Reopen it before clicking.
	if control.InOverflow {
		if more := decision.Find(vision.ControlMore); more != nil {
			if err := clickControl(ctx, page, more); err != nil {
				return nil, fmt.Errorf("failed to open overflow menu: %w", err)
			}
			l.pace(ctx, 700, 200)
		}
	}

	if err := clickControl(ctx, page, control); err != nil {
		return nil, fmt.Errorf("failed to click connect: %w", err)
	}
	l.pace(ctx, 1200, 400)

	if err := l.detectInviteLimit(ctx, page); err != nil {
		return nil, err
	}

	note := renderedNote(cfg, lead)
	withNote := false
	if note != "" {
		if ok, _ := page.Exists(ctx, selAddNote); ok {
			if err := page.Click(ctx, selAddNote); err != nil {
				return nil, fmt.Errorf("failed to open note editor: %w", err)
			}
			l.pace(ctx, 800, 300)
			if err := page.TypeInto(ctx, selNoteTextarea, note); err != nil {
				return nil, fmt.Errorf("failed to type invite note: %w", err)
			}
			withNote = true
			l.pace(ctx, 900, 300)
		}
	}

	if ok, _ := page.Exists(ctx, selSendInvite); ok {
		if err := page.Click(ctx, selSendInvite); err != nil {
			return nil, fmt.Errorf("failed to send invite: %w", err)
		}
	}
	l.pace(ctx, 1000, 300)

	if err := l.detectInviteLimit(ctx, page); err != nil {
		return nil, err
	}

	return success(ActionConnect, "invite sent", models.JSON{
		"with_note": withNote,
		"degree":    decision.Degree,
	}), nil
}

// followInstead clicks the follow control in place of a missing connect
// button and records the substitution in the result.
func (l *Library) followInstead(ctx context.Context, page Page, decision *vision.Decision) (*Result, error) {
	control := vision.PickControl(decision, func(c *vision.Control) bool {
		return c.Kind == vision.ControlFollow
	}, 0)
	if control == nil {
		return nil, fmt.Errorf("%w: connect", ErrControlNotFound)
	}

	if control.InOverflow {
		if more := decision.Find(vision.ControlMore); more != nil {
			if err := clickControl(ctx, page, more); err != nil {
				return nil, fmt.Errorf("failed to open overflow menu: %w", err)
			}
			l.pace(ctx, 700, 200)
		}
	}

	if err := clickControl(ctx, page, control); err != nil {
		return nil, fmt.Errorf("failed to click follow: %w", err)
	}
	l.pace(ctx, 800, 300)

	logrus.Infof("No connect control on %s degree profile, followed instead", decision.Degree)
	return success(ActionConnect, "no connect control, followed instead", models.JSON{
		"fallback": "follow",
		"degree":   decision.Degree,
	}), nil
}

// detectInviteLimit surfaces the site's invitation limit modal as a
// rate-limit error and dismisses it.
func (l *Library) detectInviteLimit(ctx context.Context, page Page) error {
	html, err := page.HTML(ctx, "div[role=dialog]")
	if err != nil || html == "" {
		return nil
	}
	if strings.Contains(strings.ToLower(html), selLimitModalText) {
		if ok, _ := page.Exists(ctx, selDismissModal); ok {
			_ = page.Click(ctx, selDismissModal)
		}
		return fmt.Errorf("%w: invitation limit modal shown", ErrRateLimited)
	}
	return nil
}

func renderedNote(cfg models.JSON, lead *models.Lead) string {
	raw, _ := cfg["note"].(string)
	if raw == "" {
		return ""
	}
	return RenderTemplate(raw, lead.TemplateFields())
}
