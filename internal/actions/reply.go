package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

const (
	messagingUnreadURL = "https://www.linkedin.com/messaging/?filter=unread"
	selUnreadConvos    = `li.msg-conversation-listitem--unread, li.msg-conversation-card--unread`
	selConvoNames      = `h3.msg-conversation-listitem__participant-names, .msg-conversation-card__participant-names`
)

// checkReplies opens the unread inbox view and reports whether the lead has
// answered. Matching is by participant name, which is the only key the
// conversation list exposes.
func (l *Library) checkReplies(ctx context.Context, page Page, lead *models.Lead) (*Result, error) {
	if err := page.Navigate(ctx, messagingUnreadURL); err != nil {
		return nil, fmt.Errorf("failed to open inbox: %w", err)
	}
	l.pace(ctx, 1500, 500)
	if err := checkWall(ctx, page); err != nil {
		return nil, err
	}

	hasUnread, err := page.Exists(ctx, selUnreadConvos)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	if !hasUnread {
		return success(ActionCheckReplies, "no unread conversations", models.JSON{"replied": false}), nil
	}

	names, err := page.Text(ctx, selConvoNames)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation names: %w", err)
	}

	replied := lead.Name != "" && strings.Contains(strings.ToLower(names), strings.ToLower(lead.Name))
	detail := "lead has not replied"
	if replied {
		detail = "lead replied"
	}
	return success(ActionCheckReplies, detail, models.JSON{"replied": replied}), nil
}

// reply answers the lead's unread message with the rendered template from
// cfg["text"]. Leads without an unread conversation are skipped.
func (l *Library) reply(ctx context.Context, page Page, lead *models.Lead, cfg models.JSON) (*Result, error) {
	raw, _ := cfg["text"].(string)
	if raw == "" {
		return nil, fmt.Errorf("%w: reply text", ErrMissingConfig)
	}

	check, err := l.checkReplies(ctx, page, lead)
	if err != nil {
		return nil, err
	}
	if replied, _ := check.Data["replied"].(bool); !replied {
		return skipped(ActionReply, "no unread conversation with lead"), nil
	}

	if err := page.Click(ctx, selUnreadConvos); err != nil {
		return nil, fmt.Errorf("failed to open conversation: %w", err)
	}
	l.pace(ctx, 1500, 500)

	if ok, _ := page.Exists(ctx, selMessageBox); !ok {
		return nil, fmt.Errorf("%w: reply composer", ErrControlNotFound)
	}

	text := RenderTemplate(raw, lead.TemplateFields())
	if err := page.TypeInto(ctx, selMessageBox, text); err != nil {
		return nil, fmt.Errorf("failed to type reply: %w", err)
	}
	l.pace(ctx, 1100, 400)

	if err := page.Click(ctx, selMessageSend); err != nil {
		return nil, fmt.Errorf("failed to send reply: %w", err)
	}
	l.pace(ctx, 900, 300)

	return success(ActionReply, "reply sent", models.JSON{
		"length": len(text),
	}), nil
}
