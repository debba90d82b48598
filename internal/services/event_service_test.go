package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database/repository"
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

type fakePublisher struct {
	mu       sync.Mutex
	messages []map[string]interface{}
}

func (f *fakePublisher) PublishMessage(ctx context.Context, queueName string, message map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

func newTestService(t *testing.T, queue Publisher) (*EventService, *SSEHub, *gorm.DB) {
	t.Helper()
	db := testDB(t)
	hub := NewSSEHub()
	svc := NewEventService(
		repository.NewExecutionRepository(db),
		repository.NewAuthEventRepository(db),
		repository.NewAIUsageRepository(db),
		hub,
		queue,
	)
	return svc, hub, db
}

func TestAppendPersistsBroadcastsAndPublishes(t *testing.T) {
	queue := &fakePublisher{}
	svc, hub, db := newTestService(t, queue)

	runID := "run-1"
	ch := hub.RegisterClient(EntityRun, runID)
	defer hub.UnregisterClient(EntityRun, runID, ch)

	svc.Append(&models.ExecutionLog{
		RunID:   runID,
		NodeID:  "n1",
		Status:  models.LogStatusSuccess,
		Message: "visited profile",
	})

	var count int64
	require.NoError(t, db.Model(&models.ExecutionLog{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	select {
	case msg := <-ch:
		assert.Contains(t, string(msg), "event: log")
		assert.Contains(t, string(msg), "visited profile")
	default:
		t.Fatal("expected an SSE message for the run subscriber")
	}

	require.Len(t, queue.messages, 1)
	assert.Equal(t, "run_log", queue.messages[0]["type"])
	assert.Equal(t, runID, queue.messages[0]["run_id"])
}

func TestCampaignEventIsStreamOnly(t *testing.T) {
	queue := &fakePublisher{}
	svc, hub, db := newTestService(t, queue)

	campaignID := "camp-1"
	ch := hub.RegisterClient(EntityCampaign, campaignID)
	defer hub.UnregisterClient(EntityCampaign, campaignID, ch)

	leadID := "lead-1"
	svc.CampaignEvent(campaignID, &leadID, models.LogStatusInfo, "seeded 3 new leads", nil)

	var count int64
	require.NoError(t, db.Model(&models.ExecutionLog{}).Count(&count).Error)
	assert.EqualValues(t, 0, count, "campaign events are not persisted as run logs")

	select {
	case msg := <-ch:
		assert.Contains(t, string(msg), "seeded 3 new leads")
	default:
		t.Fatal("expected an SSE message for the campaign subscriber")
	}
	require.Len(t, queue.messages, 1)
	assert.Equal(t, "campaign_event", queue.messages[0]["type"])
}

func TestRecordPersistsAuthEvent(t *testing.T) {
	svc, hub, db := newTestService(t, nil)

	accountID := "acct-1"
	ch := hub.RegisterClient(EntityAccount, accountID)
	defer hub.UnregisterClient(EntityAccount, accountID, ch)

	svc.Record(accountID, models.AuthEventLoginSuccess, "feed reached")

	var events []models.AuthEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, accountID, events[0].AccountID)
	assert.Equal(t, models.AuthEventLoginSuccess, events[0].Event)

	select {
	case msg := <-ch:
		assert.Contains(t, string(msg), "event: auth")
	default:
		t.Fatal("expected an SSE message for the account subscriber")
	}
}

func TestRecordUsagePersistsRow(t *testing.T) {
	svc, _, db := newTestService(t, nil)

	svc.RecordUsage(&models.AIUsageLog{
		Model:        "gemini-2.0-flash",
		Purpose:      "ui_decision",
		PromptTokens: 1200,
		OutputTokens: 80,
		Success:      true,
	})

	var rows []models.AIUsageLog
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 1200, rows[0].PromptTokens)
}

func TestNilQueueIsSafe(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	svc.Append(&models.ExecutionLog{RunID: "run-x", Status: models.LogStatusInfo, Message: "ok"})
	svc.CampaignEvent("camp-x", nil, models.LogStatusInfo, "ok", nil)
}

func TestBroadcastSkipsFullClients(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.RegisterClient(EntityRun, "r")
	defer hub.UnregisterClient(EntityRun, "r", ch)

	for i := 0; i < 40; i++ {
		hub.Broadcast(EntityRun, "r", "log", map[string]string{"i": fmt.Sprint(i)})
	}
	// The buffer holds a bounded number of frames; the rest were dropped
	// without blocking the broadcaster.
	assert.Equal(t, 16, len(ch))
}
