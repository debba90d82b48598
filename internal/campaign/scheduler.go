package campaign

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/actions"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database/repository"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/healer"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/humanize"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

// Executor runs one outreach action against a lead.
type Executor interface {
	Execute(ctx context.Context, page actions.Page, action string, lead *models.Lead, cfg models.JSON) (*actions.Result, error)
}

// PageSource hands out live browser surfaces per account.
type PageSource interface {
	Acquire(ctx context.Context, account *models.Account) (actions.Page, error)
	Release(ctx context.Context, accountID string)
}

// LoginHealer brings an account to a healthy login state.
type LoginHealer interface {
	EnsureLoggedIn(ctx context.Context, account *models.Account, page healer.Page) error
}

// EventLogger receives campaign progress events for persistence and live
// streaming.
type EventLogger interface {
	CampaignEvent(campaignID string, leadID *string, status, message string, result models.JSON)
}

// Scheduler drives active campaigns on a fixed tick: it tops up lead
// cursors from the campaign folder, picks cursors whose time has come and
// walks each one through the campaign's step sequence.
type Scheduler struct {
	campaigns *repository.CampaignRepository
	leads     *repository.LeadRepository
	events    EventLogger
	executor  Executor
	pages     PageSource
	healer    LoginHealer

	tickEvery   time.Duration
	batchSize   int
	maxParallel int

	now  func() time.Time
	pace func(ctx context.Context, meanMs, stdDevMs int)

	// rand is shared by the concurrent account workers; draws go through
	// intn.
	randMu sync.Mutex
	rand   *rand.Rand

	mu      sync.Mutex
	ticking bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler creates a campaign scheduler.
func NewScheduler(
	campaigns *repository.CampaignRepository,
	leads *repository.LeadRepository,
	events EventLogger,
	executor Executor,
	pages PageSource,
	loginHealer LoginHealer,
	tickEvery time.Duration,
	batchSize, maxParallel int,
) *Scheduler {
	return &Scheduler{
		campaigns:   campaigns,
		leads:       leads,
		events:      events,
		executor:    executor,
		pages:       pages,
		healer:      loginHealer,
		tickEvery:   tickEvery,
		batchSize:   batchSize,
		maxParallel: maxParallel,
		now:         time.Now,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		pace:        humanize.SleepGaussian,
	}
}

// Start launches the tick loop until Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.tickEvery)
		defer ticker.Stop()
		logrus.Infof("Campaign scheduler started, tick every %s", s.tickEvery)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop halts the tick loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Tick runs one scheduling pass. Overlapping ticks are collapsed: if a pass
// is still running when the next fires, the new one is dropped.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		return
	}
	s.ticking = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ticking = false
		s.mu.Unlock()
	}()

	campaigns, err := s.campaigns.GetActive()
	if err != nil {
		logrus.Errorf("Failed to load active campaigns: %v", err)
		return
	}

	for _, c := range campaigns {
		s.runCampaign(ctx, c)
	}
}

// runCampaign processes one campaign inside a panic barrier so a single bad
// campaign cannot take the scheduler down.
func (s *Scheduler) runCampaign(ctx context.Context, c *models.Campaign) {
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			logrus.Errorf("Campaign %s tick panicked: %v", c.ID, r)
		}
	}()

	if len(c.Steps) == 0 || len(c.Accounts) == 0 {
		return
	}

	if err := s.seed(c); err != nil {
		logrus.Errorf("Failed to seed campaign %s: %v", c.ID, err)
	}

	due, err := s.campaigns.GetDueProgress(c.ID, s.now(), s.batchSize*len(c.Accounts))
	if err != nil {
		logrus.Errorf("Failed to load due leads for campaign %s: %v", c.ID, err)
		return
	}
	if len(due) == 0 {
		s.maybeComplete(c)
		return
	}

	// One worker per account, bounded; a worker owns every due cursor
	// assigned to its account so a profile is never driven concurrently.
	// The batch limit applies per account, so one account's backlog cannot
	// starve another's due cursors.
	byAccount := make(map[string][]*models.CampaignLeadProgress)
	for _, p := range due {
		if len(byAccount[p.AccountID]) >= s.batchSize {
			continue
		}
		byAccount[p.AccountID] = append(byAccount[p.AccountID], p)
	}

	sem := make(chan struct{}, s.maxParallel)
	var wg sync.WaitGroup
	for accountID, cursors := range byAccount {
		account := accountFor(c, accountID)
		if account == nil {
			logrus.Warnf("Campaign %s has cursors for detached account %s", c.ID, accountID)
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(account *models.Account, cursors []*models.CampaignLeadProgress) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runAccountBatch(ctx, c, account, cursors)
		}(account, cursors)
	}
	wg.Wait()
}

// seed tops up progress cursors from the campaign folder, honoring the
// daily intake cap and spreading leads round-robin over the accounts.
func (s *Scheduler) seed(c *models.Campaign) error {
	dayStart := s.now().UTC().Truncate(24 * time.Hour)
	seededToday, err := s.campaigns.CountSeededSince(c.ID, dayStart)
	if err != nil {
		return err
	}
	capacity := c.DailyNewLeads - int(seededToday)
	if capacity <= 0 {
		return nil
	}

	folderLeads, err := s.leads.GetByFolder(c.FolderID)
	if err != nil {
		return err
	}
	seededIDs, err := s.campaigns.GetSeededLeadIDs(c.ID)
	if err != nil {
		return err
	}
	seeded := make(map[string]bool, len(seededIDs))
	for _, id := range seededIDs {
		seeded[id] = true
	}

	var rows []*models.CampaignLeadProgress
	for _, lead := range folderLeads {
		if seeded[lead.ID] || len(rows) >= capacity {
			continue
		}
		account := c.Accounts[len(rows)%len(c.Accounts)]
		rows = append(rows, &models.CampaignLeadProgress{
			CampaignID: c.ID,
			LeadID:     lead.ID,
			AccountID:  account.AccountID,
			Status:     models.ProgressStatusPending,
			// Stamped from the scheduler clock so the daily-cap window and
			// the rows it counts share one time source.
			CreatedAt: s.now().UTC(),
		})
	}
	if len(rows) == 0 {
		return nil
	}

	created, err := s.campaigns.SeedProgress(rows)
	if err != nil {
		return err
	}
	if created > 0 {
		total, err := s.campaigns.CountProgress(c.ID)
		if err == nil {
			if err := s.campaigns.UpdateTotalLeads(c.ID, int(total)); err != nil {
				logrus.Errorf("Failed to update lead total for campaign %s: %v", c.ID, err)
			}
		}
		s.events.CampaignEvent(c.ID, nil, models.LogStatusInfo,
			fmt.Sprintf("seeded %d new leads", created), nil)
	}
	return nil
}

// runAccountBatch heals the account once, then walks each cursor. A healing
// failure or a mid-batch wall abandons the rest of the batch; the untouched
// cursors stay due and are retried next tick.
func (s *Scheduler) runAccountBatch(ctx context.Context, c *models.Campaign, account *models.Account, cursors []*models.CampaignLeadProgress) {
	page, err := s.pages.Acquire(ctx, account)
	if err != nil {
		logrus.Errorf("Campaign %s: failed to acquire session for account %s: %v", c.ID, account.ID, err)
		s.events.CampaignEvent(c.ID, nil, models.LogStatusError,
			fmt.Sprintf("account %s session unavailable: %v", account.Name, err), nil)
		return
	}

	if err := s.healer.EnsureLoggedIn(ctx, account, page); err != nil {
		s.events.CampaignEvent(c.ID, nil, models.LogStatusError,
			fmt.Sprintf("account %s login unhealthy: %v", account.Name, err), nil)
		return
	}

	for i, cursor := range cursors {
		if err := s.advanceCursor(ctx, c, page, cursor); err != nil {
			// A wall mid-batch poisons the whole account for this tick.
			if errors.Is(err, actions.ErrSessionExpired) || errors.Is(err, actions.ErrSecurityWall) {
				logrus.Warnf("Campaign %s: aborting batch for account %s: %v", c.ID, account.ID, err)
				return
			}
		}
		if i < len(cursors)-1 {
			s.pace(ctx, 8000, 2500)
		}
	}
}

// advanceCursor walks one lead through the step sequence until it parks on
// a wait, completes, fails, or runs out of today's quota. The returned error
// is only used for batch-abort classification; cursor state is persisted
// here in all cases.
func (s *Scheduler) advanceCursor(ctx context.Context, c *models.Campaign, page actions.Page, cursor *models.CampaignLeadProgress) error {
	lead := cursor.Lead
	if lead == nil {
		cursor.Status = models.ProgressStatusFailed
		cursor.LastError = "lead record missing"
		s.saveCursor(cursor)
		return nil
	}

	// Bounded walk: backward branches may revisit steps, but never this
	// many times in one tick.
	for hops := 0; hops <= 2*len(c.Steps); hops++ {
		if cursor.CurrentStep >= len(c.Steps) {
			s.finishCursor(c, cursor, lead)
			return nil
		}
		step := c.Steps[cursor.CurrentStep]

		if step.Type == models.StepTypeWait {
			s.parkOnWait(c, cursor, lead, step)
			return nil
		}

		res, err := s.executor.Execute(ctx, page, stepAction(step.Type), lead, step.Config)
		if err != nil {
			return s.handleStepError(c, cursor, lead, step, err)
		}

		status := models.LogStatusSuccess
		if res.Status == actions.StatusSkipped {
			status = models.LogStatusSkipped
		}
		s.events.CampaignEvent(c.ID, &lead.ID, status,
			fmt.Sprintf("step %d (%s): %s", cursor.CurrentStep, step.Type, res.Detail), res.Data)

		if err := s.leads.UpdateObserved(lead); err != nil {
			logrus.Errorf("Failed to update observed fields for lead %s: %v", lead.ID, err)
		}

		next, ok := s.nextStep(c, cursor, lead, step, res)
		if !ok {
			return nil
		}
		cursor.CurrentStep = next
		cursor.Status = models.ProgressStatusActive
		s.saveCursor(cursor)
	}

	cursor.Status = models.ProgressStatusFailed
	cursor.LastError = "step budget exhausted in one pass"
	s.saveCursor(cursor)
	s.events.CampaignEvent(c.ID, &lead.ID, models.LogStatusError, cursor.LastError, nil)
	return nil
}

// nextStep resolves the index after a successful step, applying a backward
// branch when the step requests one. A branch may only point at an earlier
// step; anything else fails the cursor.
func (s *Scheduler) nextStep(c *models.Campaign, cursor *models.CampaignLeadProgress, lead *models.Lead, step models.CampaignStep, res *actions.Result) (int, bool) {
	if step.Type == models.StepTypeCheck {
		if target, ok := branchTarget(step.Config); ok {
			connected, _ := res.Data["connected"].(bool)
			if !connected {
				if target >= cursor.CurrentStep {
					cursor.Status = models.ProgressStatusFailed
					cursor.LastError = fmt.Sprintf("branch target %d is not an earlier step", target)
					s.saveCursor(cursor)
					s.events.CampaignEvent(c.ID, &lead.ID, models.LogStatusError, cursor.LastError, nil)
					return 0, false
				}
				return target, true
			}
		}
	}
	return cursor.CurrentStep + 1, true
}

// handleStepError persists the cursor outcome for a failed step and
// classifies the error for batch control.
func (s *Scheduler) handleStepError(c *models.Campaign, cursor *models.CampaignLeadProgress, lead *models.Lead, step models.CampaignStep, err error) error {
	switch {
	case errors.Is(err, actions.ErrQuotaExceeded):
		// Quota resets at UTC midnight; park the cursor just past it.
		next := s.nextUTCMidnight().Add(time.Duration(s.intn(3600)) * time.Second)
		cursor.Status = models.ProgressStatusWaiting
		cursor.NextActionAt = &next
		s.saveCursor(cursor)
		s.events.CampaignEvent(c.ID, &lead.ID, models.LogStatusSkipped,
			fmt.Sprintf("step %d (%s) deferred: %v", cursor.CurrentStep, step.Type, err), nil)
		return err

	case errors.Is(err, actions.ErrSessionExpired), errors.Is(err, actions.ErrSecurityWall):
		cursor.Status = models.ProgressStatusFailed
		cursor.LastError = err.Error()
		s.saveCursor(cursor)
		s.events.CampaignEvent(c.ID, &lead.ID, models.LogStatusError,
			fmt.Sprintf("step %d (%s) hit a wall: %v", cursor.CurrentStep, step.Type, err), nil)
		return err

	default:
		cursor.Status = models.ProgressStatusFailed
		cursor.LastError = err.Error()
		s.saveCursor(cursor)
		s.events.CampaignEvent(c.ID, &lead.ID, models.LogStatusError,
			fmt.Sprintf("step %d (%s) failed: %v", cursor.CurrentStep, step.Type, err), nil)
		return err
	}
}

// parkOnWait advances past a wait step and schedules the next action a
// jittered number of days out.
func (s *Scheduler) parkOnWait(c *models.Campaign, cursor *models.CampaignLeadProgress, lead *models.Lead, step models.CampaignStep) {
	minDays := configInt(step.Config, "min_days", 1)
	maxDays := configInt(step.Config, "max_days", minDays)
	if maxDays < minDays {
		maxDays = minDays
	}
	days := minDays
	if maxDays > minDays {
		days += s.intn(maxDays - minDays + 1)
	}
	jitter := time.Duration(s.intn(6*3600)) * time.Second
	next := s.now().Add(time.Duration(days)*24*time.Hour + jitter)

	cursor.CurrentStep++
	cursor.Status = models.ProgressStatusWaiting
	cursor.NextActionAt = &next
	s.saveCursor(cursor)
	s.events.CampaignEvent(c.ID, &lead.ID, models.LogStatusInfo,
		fmt.Sprintf("waiting until %s", next.Format(time.RFC3339)), nil)
}

func (s *Scheduler) finishCursor(c *models.Campaign, cursor *models.CampaignLeadProgress, lead *models.Lead) {
	cursor.Status = models.ProgressStatusCompleted
	cursor.NextActionAt = nil
	s.saveCursor(cursor)
	s.events.CampaignEvent(c.ID, &lead.ID, models.LogStatusSuccess, "sequence completed", nil)
}

// maybeComplete closes a campaign once every seeded cursor is terminal and
// the folder has nothing left to seed.
func (s *Scheduler) maybeComplete(c *models.Campaign) {
	counts, err := s.campaigns.CountProgressByStatus(c.ID)
	if err != nil {
		return
	}
	open := counts[models.ProgressStatusPending] +
		counts[models.ProgressStatusActive] +
		counts[models.ProgressStatusWaiting]
	if open > 0 {
		return
	}

	folderLeads, err := s.leads.GetByFolder(c.FolderID)
	if err != nil {
		return
	}
	total, err := s.campaigns.CountProgress(c.ID)
	if err != nil || total == 0 || int(total) < len(folderLeads) {
		return
	}

	if err := s.campaigns.UpdateStatus(c.ID, models.CampaignStatusCompleted); err != nil {
		logrus.Errorf("Failed to complete campaign %s: %v", c.ID, err)
		return
	}
	s.events.CampaignEvent(c.ID, nil, models.LogStatusInfo, "campaign completed", nil)
}

func (s *Scheduler) saveCursor(cursor *models.CampaignLeadProgress) {
	if err := s.campaigns.UpdateProgress(cursor); err != nil {
		logrus.Errorf("Failed to persist cursor %s: %v", cursor.ID, err)
	}
}

// intn serializes draws from the shared rng across account workers.
func (s *Scheduler) intn(n int) int {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand.Intn(n)
}

func (s *Scheduler) nextUTCMidnight() time.Time {
	now := s.now().UTC()
	return now.Truncate(24 * time.Hour).Add(24 * time.Hour)
}

func accountFor(c *models.Campaign, accountID string) *models.Account {
	for i := range c.Accounts {
		if c.Accounts[i].AccountID == accountID && c.Accounts[i].Account != nil {
			return c.Accounts[i].Account
		}
	}
	return nil
}

// stepAction maps campaign step types to action library names.
func stepAction(stepType string) string {
	if stepType == models.StepTypeCheck {
		return actions.ActionCheckConnection
	}
	return stepType
}

func configInt(cfg models.JSON, key string, fallback int) int {
	if cfg == nil {
		return fallback
	}
	switch v := cfg[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

// branchTarget reads the optional backward branch index from a check step.
func branchTarget(cfg models.JSON) (int, bool) {
	if cfg == nil {
		return 0, false
	}
	switch v := cfg["goto_if_not_connected"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
