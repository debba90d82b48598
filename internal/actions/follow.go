package actions

import (
	"context"
	"fmt"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/vision"
)

// follow follows the lead's profile, reaching into the overflow menu when
// the button is not in the top card.
func (l *Library) follow(ctx context.Context, page Page, lead *models.Lead) (*Result, error) {
	if err := l.openProfile(ctx, page, lead); err != nil {
		return nil, err
	}

	decision, err := l.analyzer.Analyze(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze profile: %w", err)
	}
	lead.ConnectionDegree = decision.Degree

	control := vision.PickControl(decision, func(c *vision.Control) bool {
		return c.Kind == vision.ControlFollow
	}, 0)
	if control == nil {
		return nil, fmt.Errorf("%w: follow", ErrControlNotFound)
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

	return success(ActionFollow, "profile followed", models.JSON{
		"degree": decision.Degree,
	}), nil
}
