package campaign

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/actions"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database/repository"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/healer"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []string // "action:leadID"
	results map[string]*actions.Result
	errs    map[string]error
}

func (f *fakeExecutor) Execute(ctx context.Context, page actions.Page, action string, lead *models.Lead, cfg models.JSON) (*actions.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, action+":"+lead.ID)
	f.mu.Unlock()

	if err, ok := f.errs[action]; ok {
		return nil, err
	}
	if res, ok := f.results[action]; ok {
		out := *res
		return &out, nil
	}
	return &actions.Result{Action: action, Status: actions.StatusSuccess}, nil
}

func (f *fakeExecutor) countAction(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if len(c) >= len(action) && c[:len(action)] == action {
			n++
		}
	}
	return n
}

func (f *fakeExecutor) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePages struct{}

func (fakePages) Acquire(ctx context.Context, account *models.Account) (actions.Page, error) {
	return nil, nil
}
func (fakePages) Release(ctx context.Context, accountID string) {}

type fakeHealer struct{ err error }

func (f fakeHealer) EnsureLoggedIn(ctx context.Context, account *models.Account, page healer.Page) error {
	return f.err
}

type memEvents struct {
	mu     sync.Mutex
	events []string
}

func (m *memEvents) CampaignEvent(campaignID string, leadID *string, status, message string, result models.JSON) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, status+": "+message)
}

type fixture struct {
	db        *gorm.DB
	scheduler *Scheduler
	executor  *fakeExecutor
	events    *memEvents
	campaigns *repository.CampaignRepository
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)

	executor := &fakeExecutor{results: map[string]*actions.Result{}, errs: map[string]error{}}
	events := &memEvents{}

	f := &fixture{
		db:        db,
		executor:  executor,
		events:    events,
		campaigns: repository.NewCampaignRepository(db),
		now:       time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
	}
	f.scheduler = NewScheduler(
		f.campaigns,
		repository.NewLeadRepository(db),
		events,
		executor,
		fakePages{},
		fakeHealer{},
		time.Minute,
		25,
		3,
	)
	f.scheduler.now = func() time.Time { return f.now }
	f.scheduler.rand = rand.New(rand.NewSource(1))
	f.scheduler.pace = func(ctx context.Context, meanMs, stdDevMs int) {}
	return f
}

type step struct {
	typ string
	cfg models.JSON
}

func (f *fixture) createCampaign(t *testing.T, numLeads, numAccounts, dailyNew int, steps []step) *models.Campaign {
	t.Helper()

	folder := &models.LeadFolder{Name: "prospects"}
	require.NoError(t, f.db.Create(folder).Error)
	for i := 0; i < numLeads; i++ {
		require.NoError(t, f.db.Create(&models.Lead{
			FolderID:   &folder.ID,
			ProfileURL: fmt.Sprintf("https://www.linkedin.com/in/lead-%d/", i),
			Name:       fmt.Sprintf("Lead %d", i),
		}).Error)
	}

	c := &models.Campaign{
		Name:          "outreach",
		FolderID:      folder.ID,
		Status:        models.CampaignStatusActive,
		DailyNewLeads: dailyNew,
	}
	require.NoError(t, f.db.Create(c).Error)

	for i, s := range steps {
		require.NoError(t, f.db.Create(&models.CampaignStep{
			CampaignID: c.ID,
			StepOrder:  i,
			Type:       s.typ,
			Config:     s.cfg,
		}).Error)
	}
	for i := 0; i < numAccounts; i++ {
		acct := &models.Account{Name: fmt.Sprintf("op-%d", i), ProfileID: fmt.Sprintf("prof-%d", i)}
		require.NoError(t, f.db.Create(acct).Error)
		require.NoError(t, f.db.Create(&models.CampaignAccount{CampaignID: c.ID, AccountID: acct.ID}).Error)
	}
	return c
}

func (f *fixture) progressRows(t *testing.T, campaignID string) []*models.CampaignLeadProgress {
	t.Helper()
	var rows []*models.CampaignLeadProgress
	require.NoError(t, f.db.Where("campaign_id = ?", campaignID).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, 3, 2, 10, []step{{typ: models.StepTypeVisit}})

	f.scheduler.Tick(context.Background())
	f.scheduler.Tick(context.Background())

	rows := f.progressRows(t, c.ID)
	assert.Len(t, rows, 3, "re-seeding must not duplicate cursors")

	perAccount := map[string]int{}
	for _, r := range rows {
		perAccount[r.AccountID]++
	}
	assert.Len(t, perAccount, 2, "leads spread round-robin over both accounts")
}

func TestSeedHonorsDailyCap(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, 5, 1, 2, []step{{typ: models.StepTypeVisit}})

	f.scheduler.Tick(context.Background())
	assert.Len(t, f.progressRows(t, c.ID), 2)

	// Same day: cap already spent.
	f.scheduler.Tick(context.Background())
	assert.Len(t, f.progressRows(t, c.ID), 2)

	// Next day: two more.
	f.now = f.now.Add(24 * time.Hour)
	f.scheduler.Tick(context.Background())
	assert.Len(t, f.progressRows(t, c.ID), 4)
}

func TestCampaignRunsSequenceToCompletion(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, 3, 1, 10, []step{
		{typ: models.StepTypeVisit},
		{typ: models.StepTypeConnect},
	})

	f.scheduler.Tick(context.Background())

	rows := f.progressRows(t, c.ID)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, models.ProgressStatusCompleted, r.Status)
	}
	assert.Equal(t, 3, f.executor.countAction(actions.ActionVisit))
	assert.Equal(t, 3, f.executor.countAction(actions.ActionConnect))

	// Everything terminal and the folder drained: next tick completes it.
	f.scheduler.Tick(context.Background())
	got, err := f.campaigns.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
}

func TestWaitStepParksCursor(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, 1, 1, 10, []step{
		{typ: models.StepTypeVisit},
		{typ: models.StepTypeWait, cfg: models.JSON{"min_days": float64(2), "max_days": float64(3)}},
		{typ: models.StepTypeMessage, cfg: models.JSON{"text": "hi {{first_name}}"}},
	})

	f.scheduler.Tick(context.Background())

	rows := f.progressRows(t, c.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ProgressStatusWaiting, rows[0].Status)
	assert.Equal(t, 2, rows[0].CurrentStep)
	require.NotNil(t, rows[0].NextActionAt)
	assert.True(t, rows[0].NextActionAt.After(f.now.Add(47*time.Hour)))
	assert.Equal(t, 0, f.executor.countAction(actions.ActionMessage))

	// Still waiting: nothing is due.
	f.scheduler.Tick(context.Background())
	assert.Equal(t, 0, f.executor.countAction(actions.ActionMessage))

	// Past the wait window the message goes out and the cursor completes.
	f.now = f.now.Add(4 * 24 * time.Hour)
	f.scheduler.Tick(context.Background())
	assert.Equal(t, 1, f.executor.countAction(actions.ActionMessage))

	rows = f.progressRows(t, c.ID)
	assert.Equal(t, models.ProgressStatusCompleted, rows[0].Status)
}

func TestParallelAccountWorkersParkOnWait(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, 6, 3, 10, []step{
		{typ: models.StepTypeVisit},
		{typ: models.StepTypeWait, cfg: models.JSON{"min_days": float64(1), "max_days": float64(3)}},
	})

	// Three account workers run concurrently and all draw wait jitter from
	// the scheduler's shared rng in the same tick.
	f.scheduler.Tick(context.Background())

	rows := f.progressRows(t, c.ID)
	require.Len(t, rows, 6)
	for _, r := range rows {
		assert.Equal(t, models.ProgressStatusWaiting, r.Status)
		require.NotNil(t, r.NextActionAt)
		assert.True(t, r.NextActionAt.After(f.now.Add(23*time.Hour)))
	}
	assert.Equal(t, 6, f.executor.countAction(actions.ActionVisit))
}

func TestDueBatchLimitAppliesPerAccount(t *testing.T) {
	f := newFixture(t)
	f.scheduler.batchSize = 2
	c := f.createCampaign(t, 6, 2, 6, []step{{typ: models.StepTypeVisit}})

	f.scheduler.Tick(context.Background())

	// Each account owns three cursors but may only run two per tick; neither
	// account's backlog is allowed to consume the other's slots.
	perAccount := map[string]int{}
	for _, r := range f.progressRows(t, c.ID) {
		if r.Status == models.ProgressStatusCompleted {
			perAccount[r.AccountID]++
		}
	}
	require.Len(t, perAccount, 2, "both accounts must make progress in one tick")
	for accountID, n := range perAccount {
		assert.LessOrEqual(t, n, 2, "account %s ran more cursors than the batch allows", accountID)
	}
}

func TestBackwardBranchLoopsToEarlierStep(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, 1, 1, 10, []step{
		{typ: models.StepTypeConnect},
		{typ: models.StepTypeWait, cfg: models.JSON{"min_days": float64(1)}},
		{typ: models.StepTypeCheck, cfg: models.JSON{"goto_if_not_connected": float64(1)}},
	})
	f.executor.results[actions.ActionCheckConnection] = &actions.Result{
		Action: actions.ActionCheckConnection,
		Status: actions.StatusSuccess,
		Data:   models.JSON{"connected": false},
	}

	// First tick: connect, then park on the wait.
	f.scheduler.Tick(context.Background())
	rows := f.progressRows(t, c.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].CurrentStep)

	// Past the wait: the check runs, the lead is still unconnected, and the
	// cursor loops back through the wait step instead of completing.
	f.now = f.now.Add(2 * 24 * time.Hour)
	f.scheduler.Tick(context.Background())

	rows = f.progressRows(t, c.ID)
	assert.Equal(t, 1, f.executor.countAction(actions.ActionCheckConnection))
	assert.Equal(t, models.ProgressStatusWaiting, rows[0].Status)
	assert.Equal(t, 2, rows[0].CurrentStep)
	require.NotNil(t, rows[0].NextActionAt)
	assert.True(t, rows[0].NextActionAt.After(f.now))
}

func TestForwardBranchTargetFailsCursor(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, 1, 1, 10, []step{
		{typ: models.StepTypeCheck, cfg: models.JSON{"goto_if_not_connected": float64(5)}},
	})
	f.executor.results[actions.ActionCheckConnection] = &actions.Result{
		Action: actions.ActionCheckConnection,
		Status: actions.StatusSuccess,
		Data:   models.JSON{"connected": false},
	}

	f.scheduler.Tick(context.Background())

	rows := f.progressRows(t, c.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ProgressStatusFailed, rows[0].Status)
	assert.Contains(t, rows[0].LastError, "not an earlier step")
}

func TestHealingFailureAbortsAccountBatch(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, 2, 1, 10, []step{{typ: models.StepTypeVisit}})
	f.scheduler.healer = fakeHealer{err: fmt.Errorf("awaiting verification code")}

	f.scheduler.Tick(context.Background())

	assert.Equal(t, 0, f.executor.total())
	for _, r := range f.progressRows(t, c.ID) {
		assert.Equal(t, models.ProgressStatusPending, r.Status, "untouched cursors stay due for the next tick")
	}
}

func TestQuotaExhaustionParksCursorPastMidnight(t *testing.T) {
	f := newFixture(t)
	c := f.createCampaign(t, 1, 1, 10, []step{{typ: models.StepTypeConnect}})
	f.executor.errs[actions.ActionConnect] = fmt.Errorf("wrapped: %w", actions.ErrQuotaExceeded)

	f.scheduler.Tick(context.Background())

	rows := f.progressRows(t, c.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.ProgressStatusWaiting, rows[0].Status)
	require.NotNil(t, rows[0].NextActionAt)

	midnight := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	assert.False(t, rows[0].NextActionAt.Before(midnight))
	assert.Equal(t, 0, rows[0].CurrentStep, "the step is retried, not skipped")
}

func TestTickReentrancyGuard(t *testing.T) {
	f := newFixture(t)
	f.createCampaign(t, 1, 1, 10, []step{{typ: models.StepTypeVisit}})

	f.scheduler.mu.Lock()
	f.scheduler.ticking = true
	f.scheduler.mu.Unlock()

	f.scheduler.Tick(context.Background())
	assert.Equal(t, 0, f.executor.total(), "overlapping tick must be dropped")
}
