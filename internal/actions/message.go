package actions

import (
	"context"
	"fmt"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/vision"
)

const (
	selMessageBox  = `div.msg-form__contenteditable`
	selMessageSend = `button.msg-form__send-button, button[type=submit].msg-form__send-btn`
	selCloseConvo  = `button[data-control-name="overlay.close_conversation_window"]`
)

// message opens the conversation composer on a 1st degree profile and sends
// the rendered template from cfg["text"].
func (l *Library) message(ctx context.Context, page Page, lead *models.Lead, cfg models.JSON) (*Result, error) {
	raw, _ := cfg["text"].(string)
	if raw == "" {
		return nil, fmt.Errorf("%w: message text", ErrMissingConfig)
	}

	if err := l.openProfile(ctx, page, lead); err != nil {
		return nil, err
	}

	decision, err := l.analyzer.Analyze(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze profile: %w", err)
	}
	lead.ConnectionDegree = decision.Degree

	if decision.Degree != models.DegreeFirst && decision.Degree != models.DegreeUnknown {
		return skipped(ActionMessage, fmt.Sprintf("not a 1st degree connection (%s)", decision.Degree)), nil
	}

	control := decision.Find(vision.ControlMessage)
	if control == nil {
		return nil, fmt.Errorf("%w: message", ErrControlNotFound)
	}
	if err := clickControl(ctx, page, control); err != nil {
		return nil, fmt.Errorf("failed to open composer: %w", err)
	}
	l.pace(ctx, 1500, 500)

	if ok, _ := page.Exists(ctx, selMessageBox); !ok {
		return nil, fmt.Errorf("%w: message composer", ErrControlNotFound)
	}

	text := RenderTemplate(raw, lead.TemplateFields())
	if err := page.TypeInto(ctx, selMessageBox, text); err != nil {
		return nil, fmt.Errorf("failed to type message: %w", err)
	}
	l.pace(ctx, 1200, 400)

	if err := page.Click(ctx, selMessageSend); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	l.pace(ctx, 900, 300)

	// Close the chat overlay so it cannot cover controls on the next lead.
	if ok, _ := page.Exists(ctx, selCloseConvo); ok {
		_ = page.Click(ctx, selCloseConvo)
	}

	return success(ActionMessage, "message sent", models.JSON{
		"length": len(text),
	}), nil
}
