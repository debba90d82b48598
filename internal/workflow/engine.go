package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/actions"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database/repository"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/healer"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/humanize"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

// maxLeadSteps bounds the graph walk per lead so a cyclic workflow cannot
// spin an account forever.
const maxLeadSteps = 500

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

// LogSink receives execution log entries.
type LogSink interface {
	Append(entry *models.ExecutionLog)
}

// Engine executes workflow graphs over lead lists. One goroutine per run;
// leads within a run are processed sequentially on the run's account.
type Engine struct {
	workflows *repository.WorkflowRepository
	runs      *repository.ExecutionRepository
	leads     *repository.LeadRepository
	accounts  *repository.AccountRepository
	logs      LogSink
	executor  Executor
	pages     PageSource
	healer    LoginHealer

	// pace is the randomized inter-step delay, overridable in tests.
	pace func(ctx context.Context, meanMs, stdDevMs int)

	mu    sync.Mutex
	stops map[string]chan struct{}
}

// NewEngine creates a workflow execution engine.
func NewEngine(
	workflows *repository.WorkflowRepository,
	runs *repository.ExecutionRepository,
	leads *repository.LeadRepository,
	accounts *repository.AccountRepository,
	logs LogSink,
	executor Executor,
	pages PageSource,
	loginHealer LoginHealer,
) *Engine {
	return &Engine{
		workflows: workflows,
		runs:      runs,
		leads:     leads,
		accounts:  accounts,
		logs:      logs,
		executor:  executor,
		pages:     pages,
		healer:    loginHealer,
		pace:      humanize.SleepGaussian,
		stops:     make(map[string]chan struct{}),
	}
}

// StartRun validates the request, creates the run record and launches the
// walk in the background.
func (e *Engine) StartRun(ctx context.Context, workflowID, accountID string, leadIDs []string) (*models.ExecutionRun, error) {
	wf, err := e.workflows.GetByID(workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}
	graph, err := buildGraph(wf)
	if err != nil {
		return nil, err
	}

	account, err := e.accounts.GetByID(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}

	leads, err := e.leads.GetByIDs(leadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load leads: %w", err)
	}
	if len(leads) == 0 {
		return nil, fmt.Errorf("no leads to process")
	}

	run := &models.ExecutionRun{
		WorkflowID: workflowID,
		AccountID:  accountID,
		Status:     models.RunStatusStarting,
		TotalLeads: len(leads),
	}
	if err := e.runs.CreateRun(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	stop := make(chan struct{})
	e.mu.Lock()
	e.stops[run.ID] = stop
	e.mu.Unlock()

	go e.execute(context.Background(), run, graph, account, leads, stop)

	logrus.Infof("Run %s started: workflow %s, account %s, %d leads", run.ID, workflowID, accountID, len(leads))
	return run, nil
}

// StopRun requests a cooperative stop. The run finishes its current action
// and exits with status stopped.
func (e *Engine) StopRun(runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	stop, ok := e.stops[runID]
	if !ok {
		return fmt.Errorf("run %s is not active", runID)
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, run *models.ExecutionRun, graph *graph, account *models.Account, leads []*models.Lead, stop chan struct{}) {
	defer func() {
		e.mu.Lock()
		delete(e.stops, run.ID)
		e.mu.Unlock()

		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			logrus.Errorf("Run %s panicked: %v", run.ID, r)
			e.finishRun(run.ID, models.RunStatusFailed)
		}
	}()

	page, err := e.pages.Acquire(ctx, account)
	if err != nil {
		e.logInfo(run.ID, nil, "", models.LogStatusError, fmt.Sprintf("failed to acquire session: %v", err), nil)
		e.finishRun(run.ID, models.RunStatusFailed)
		return
	}

	if err := e.healer.EnsureLoggedIn(ctx, account, page); err != nil {
		e.logInfo(run.ID, nil, "", models.LogStatusError, fmt.Sprintf("login healing failed: %v", err), nil)
		e.finishRun(run.ID, models.RunStatusFailed)
		return
	}

	if err := e.runs.UpdateRunStatus(run.ID, models.RunStatusRunning); err != nil {
		logrus.Errorf("Failed to mark run %s running: %v", run.ID, err)
	}
	e.logInfo(run.ID, nil, "", models.LogStatusInfo, fmt.Sprintf("run started with %d leads", len(leads)), nil)

	stopped := false
	for i, lead := range leads {
		if isStopped(stop) {
			stopped = true
			break
		}

		completed, failed := e.runLead(ctx, run, graph, page, lead, stop)
		if err := e.runs.IncrementRunCounters(run.ID, completed, failed); err != nil {
			logrus.Errorf("Failed to update counters for run %s: %v", run.ID, err)
		}

		if i < len(leads)-1 && !isStopped(stop) {
			e.pace(ctx, 8000, 2500)
		}
	}

	status := models.RunStatusCompleted
	if stopped {
		status = models.RunStatusStopped
	}
	e.finishRun(run.ID, status)
	e.logInfo(run.ID, nil, "", models.LogStatusInfo, fmt.Sprintf("run finished with status %s", status), nil)
}

// runLead walks the graph for a single lead. Failures are contained: the
// lead is marked and the run moves on. Returns (completed, failed) deltas.
func (e *Engine) runLead(ctx context.Context, run *models.ExecutionRun, graph *graph, page actions.Page, lead *models.Lead, stop chan struct{}) (int, int) {
	if err := e.leads.UpdateStatus(lead.ID, models.LeadStatusRunning); err != nil {
		logrus.Errorf("Failed to mark lead %s running: %v", lead.ID, err)
	}

	var lastResult *actions.Result
	node := graph.entry
	steps := 0

	for node != nil {
		if isStopped(stop) {
			e.leadFinished(lead, models.LeadStatusPending)
			return 0, 0
		}
		if steps >= maxLeadSteps {
			e.logInfo(run.ID, &lead.ID, node.ID, models.LogStatusError, "step budget exhausted, likely a graph cycle", nil)
			e.leadFinished(lead, models.LeadStatusFailed)
			return 0, 1
		}
		steps++

		switch node.Type {
		case models.NodeTypeWait:
			e.waitNode(ctx, node)
			node = graph.next(node, "")

		case models.NodeTypeLoopEntry:
			node = graph.next(node, "")

		case models.NodeTypeCondition:
			branch := evaluateCondition(node.Config, lastResult, lead)
			e.logInfo(run.ID, &lead.ID, node.ID, models.LogStatusInfo, fmt.Sprintf("condition evaluated to %t", branch), nil)
			if branch {
				node = graph.next(node, "true")
			} else {
				node = graph.next(node, "false")
			}

		default:
			res, err := e.executor.Execute(ctx, page, nodeAction(node.Type), lead, node.Config)
			if err != nil {
				return e.handleActionError(run, node, lead, err)
			}
			lastResult = res
			status := models.LogStatusSuccess
			if res.Status == actions.StatusSkipped {
				status = models.LogStatusSkipped
			}
			e.logInfo(run.ID, &lead.ID, node.ID, status, res.Detail, res.Data)
			if err := e.leads.UpdateObserved(lead); err != nil {
				logrus.Errorf("Failed to update observed fields for lead %s: %v", lead.ID, err)
			}
			node = graph.next(node, "")
		}
	}

	e.leadFinished(lead, models.LeadStatusCompleted)
	return 1, 0
}

// handleActionError maps action sentinels to lead outcomes. A spent quota
// skips the lead; everything else fails it. The run itself continues.
func (e *Engine) handleActionError(run *models.ExecutionRun, node *models.WorkflowNode, lead *models.Lead, err error) (int, int) {
	switch {
	case errors.Is(err, actions.ErrQuotaExceeded):
		e.logInfo(run.ID, &lead.ID, node.ID, models.LogStatusSkipped, err.Error(), nil)
		e.leadFinished(lead, models.LeadStatusSkipped)
		return 0, 0
	default:
		e.logInfo(run.ID, &lead.ID, node.ID, models.LogStatusError, err.Error(), nil)
		e.leadFinished(lead, models.LeadStatusFailed)
		return 0, 1
	}
}

func (e *Engine) waitNode(ctx context.Context, node *models.WorkflowNode) {
	minS := configInt(node.Config, "min_seconds", 30)
	maxS := configInt(node.Config, "max_seconds", minS+60)
	if maxS < minS {
		maxS = minS
	}
	mean := (minS + maxS) * 1000 / 2
	std := (maxS - minS) * 1000 / 6
	if std == 0 {
		std = 1
	}
	e.pace(ctx, mean, std)
}

func (e *Engine) leadFinished(lead *models.Lead, status string) {
	if err := e.leads.UpdateStatus(lead.ID, status); err != nil {
		logrus.Errorf("Failed to mark lead %s %s: %v", lead.ID, status, err)
	}
}

func (e *Engine) finishRun(runID, status string) {
	if err := e.runs.FinishRun(runID, status); err != nil {
		logrus.Errorf("Failed to finish run %s: %v", runID, err)
	}
}

func (e *Engine) logInfo(runID string, leadID *string, nodeID, status, message string, result models.JSON) {
	e.logs.Append(&models.ExecutionLog{
		RunID:   runID,
		LeadID:  leadID,
		NodeID:  nodeID,
		Status:  status,
		Message: message,
		Result:  result,
	})
}

func isStopped(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// nodeAction maps workflow node types to action library names.
func nodeAction(nodeType string) string {
	if nodeType == models.NodeTypeCheck {
		return actions.ActionCheckConnection
	}
	return nodeType
}

// evaluateCondition checks cfg["field"] against cfg["equals"], reading the
// last action result first and falling back to lead fields.
func evaluateCondition(cfg models.JSON, lastResult *actions.Result, lead *models.Lead) bool {
	field, _ := cfg["field"].(string)
	if field == "" {
		return false
	}
	expected, hasExpected := cfg["equals"]

	var actual interface{}
	if lastResult != nil && lastResult.Data != nil {
		if v, ok := lastResult.Data[field]; ok {
			actual = v
		}
	}
	if actual == nil {
		switch field {
		case "degree", "connection_degree":
			actual = lead.ConnectionDegree
		case "status":
			actual = lead.Status
		}
	}
	if actual == nil {
		return false
	}
	if !hasExpected {
		b, ok := actual.(bool)
		return ok && b
	}
	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected)
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
