package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

const (
	selProfileName     = `main h1`
	selProfileHeadline = `main div.text-body-medium.break-words`
)

// visit opens the lead's profile, dwells on it like a reader, records the
// observed connection degree and fills in profile fields the lead record is
// missing.
func (l *Library) visit(ctx context.Context, page Page, lead *models.Lead) (*Result, error) {
	if err := l.openProfile(ctx, page, lead); err != nil {
		return nil, err
	}

	if err := page.Scroll(ctx); err != nil {
		return nil, fmt.Errorf("failed to scroll profile: %w", err)
	}
	l.pace(ctx, 2500, 900)

	enrichLead(ctx, page, lead)

	decision, err := l.analyzer.Analyze(ctx, page)
	if err != nil {
		// The visit itself succeeded; degree detection is best effort.
		return success(ActionVisit, "profile visited", models.JSON{"degree": models.DegreeUnknown}), nil
	}
	lead.ConnectionDegree = decision.Degree
	return success(ActionVisit, "profile visited", models.JSON{
		"degree":         decision.Degree,
		"invite_pending": decision.InvitePending,
	}), nil
}

// enrichLead reads the profile top card and fills empty lead fields. All
// reads are best effort; existing lead data is never overwritten.
func enrichLead(ctx context.Context, page Page, lead *models.Lead) {
	if lead.Name == "" {
		if name, err := page.Text(ctx, selProfileName); err == nil {
			lead.Name = strings.TrimSpace(name)
		}
	}
	if lead.FirstName == "" {
		if parts := strings.Fields(lead.Name); len(parts) > 0 {
			lead.FirstName = parts[0]
		}
	}
	if lead.Title == "" || lead.Company == "" {
		headline, err := page.Text(ctx, selProfileHeadline)
		if err != nil {
			return
		}
		headline = strings.TrimSpace(headline)
		if headline == "" {
			return
		}
		title, company := splitHeadline(headline)
		if lead.Title == "" {
			lead.Title = title
		}
		if lead.Company == "" && company != "" {
			lead.Company = company
		}
	}
}

// splitHeadline breaks a "Title at Company" headline apart. Headlines
// without the separator become the title as-is.
func splitHeadline(headline string) (title, company string) {
	if idx := strings.Index(headline, " at "); idx > 0 {
		return strings.TrimSpace(headline[:idx]), strings.TrimSpace(headline[idx+4:])
	}
	return headline, ""
}

// checkConnection visits the profile purely to read the relationship state.
func (l *Library) checkConnection(ctx context.Context, page Page, lead *models.Lead) (*Result, error) {
	if err := l.openProfile(ctx, page, lead); err != nil {
		return nil, err
	}

	decision, err := l.analyzer.Analyze(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to read connection state: %w", err)
	}
	lead.ConnectionDegree = decision.Degree

	connected := decision.Degree == models.DegreeFirst
	return success(ActionCheckConnection, fmt.Sprintf("connection degree %s", decision.Degree), models.JSON{
		"degree":         decision.Degree,
		"connected":      connected,
		"invite_pending": decision.InvitePending,
	}), nil
}
