package session

import (
	"context"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/actions"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

// Pages adapts the manager to the page-source interfaces the execution
// engines consume.
type Pages struct {
	m *Manager
}

// NewPages wraps a manager as a page source.
func NewPages(m *Manager) *Pages {
	return &Pages{m: m}
}

// Acquire returns the account's live session as an action surface.
func (p *Pages) Acquire(ctx context.Context, account *models.Account) (actions.Page, error) {
	s, err := p.m.Acquire(ctx, account)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Release detaches the account's session.
func (p *Pages) Release(ctx context.Context, accountID string) {
	p.m.Release(ctx, accountID)
}
