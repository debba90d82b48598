package healer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/config"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/humanize"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/utils"
)

// Page is the slice of browser operations login healing needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Exists(ctx context.Context, sel string) (bool, error)
	TypeInto(ctx context.Context, sel, text string) error
	Click(ctx context.Context, sel string) error
}

// AccountStore persists login status transitions.
type AccountStore interface {
	UpdateLoginStatus(accountID, status string) error
}

// EventSink records auth events. Implementations fan out to the database
// and live streams.
type EventSink interface {
	Record(accountID, event, detail string)
}

// CodeSource is an optional side channel for verification codes submitted
// while no in-process waiter existed, e.g. across a restart.
type CodeSource interface {
	TakeCode(accountID string) (string, bool)
}

const (
	selLoginUser   = "#username"
	selLoginPass   = "#password"
	selLoginSubmit = "button[type=submit]"
	selPinInput    = "input[name=pin], #input__phone_verification_pin, #input__email_verification_pin"
	selPinSubmit   = "#two-step-submit, button[type=submit]"
)

// Healer drives an account from an unknown login state to healthy, walking
// the login form and two factor challenges when they appear.
type Healer struct {
	cipher    *utils.CredentialCipher
	accounts  AccountStore
	events    EventSink
	codes     CodeSource
	twoFAWait time.Duration
	pollEvery time.Duration

	// pace is the inter-step delay, overridable in tests.
	pace func(ctx context.Context, meanMs, stdDevMs int)

	mu      sync.Mutex
	pending map[string]chan string
	states  map[string]string
}

// New creates a healer. codes may be nil.
func New(cipher *utils.CredentialCipher, accounts AccountStore, events EventSink, codes CodeSource, twoFAWait time.Duration) *Healer {
	return &Healer{
		cipher:    cipher,
		accounts:  accounts,
		events:    events,
		codes:     codes,
		twoFAWait: twoFAWait,
		pace:      humanize.SleepGaussian,
		pollEvery: 2 * time.Second,
		pending:   make(map[string]chan string),
		states:    make(map[string]string),
	}
}

// State returns the account's current healing state, empty when idle.
func (h *Healer) State(accountID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.states[accountID]
}

// SubmitCode delivers a verification code to a waiting challenge. The first
// code wins; later submissions for the same challenge are rejected.
func (h *Healer) SubmitCode(accountID, code string) error {
	h.mu.Lock()
	ch, ok := h.pending[accountID]
	if ok {
		delete(h.pending, accountID)
	}
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending verification challenge for account %s", accountID)
	}
	ch <- code
	return nil
}

// EnsureLoggedIn verifies the account is authenticated on the target site
// and heals the session when it is not. Returns nil only when the account
// ends up healthy.
func (h *Healer) EnsureLoggedIn(ctx context.Context, account *models.Account, page Page) error {
	h.setState(account.ID, models.LoginStatusUnknown)
	defer h.clearState(account.ID)

	if err := page.Navigate(ctx, config.LinkedInFeedURL); err != nil {
		return h.fail(account, fmt.Errorf("failed to reach target site: %w", err))
	}
	h.pace(ctx, 2000, 500)

	loc, err := page.CurrentURL(ctx)
	if err != nil {
		return h.fail(account, fmt.Errorf("failed to read location: %w", err))
	}

	switch classifyURL(loc) {
	case wallNone:
		return h.healthy(account, "session already authenticated")
	case wallSecurity:
		return h.handleChallenge(ctx, account, page)
	case wallAuth:
		return h.login(ctx, account, page)
	}
	return h.healthy(account, "session already authenticated")
}

func (h *Healer) login(ctx context.Context, account *models.Account, page Page) error {
	h.events.Record(account.ID, models.AuthEventLoginWall, "login wall detected, submitting credentials")

	email, err := h.cipher.Decrypt(account.EmailEncrypted)
	if err != nil {
		return h.fail(account, fmt.Errorf("failed to decrypt email: %w", err))
	}
	password, err := h.cipher.Decrypt(account.PasswordEncrypted)
	if err != nil {
		return h.fail(account, fmt.Errorf("failed to decrypt password: %w", err))
	}

	if ok, _ := page.Exists(ctx, selLoginUser); !ok {
		if err := page.Navigate(ctx, config.LinkedInLoginURL); err != nil {
			return h.fail(account, fmt.Errorf("failed to open login page: %w", err))
		}
	}

	if err := page.TypeInto(ctx, selLoginUser, email); err != nil {
		return h.fail(account, fmt.Errorf("failed to fill email: %w", err))
	}
	h.pace(ctx, 800, 300)
	if err := page.TypeInto(ctx, selLoginPass, password); err != nil {
		return h.fail(account, fmt.Errorf("failed to fill password: %w", err))
	}
	h.pace(ctx, 1400, 600)
	if err := page.Click(ctx, selLoginSubmit); err != nil {
		return h.fail(account, fmt.Errorf("failed to submit login: %w", err))
	}
	h.events.Record(account.ID, models.AuthEventCredentialsSubmitted, "credentials submitted")
	h.pace(ctx, 3000, 800)

	loc, err := page.CurrentURL(ctx)
	if err != nil {
		return h.fail(account, fmt.Errorf("failed to read location after login: %w", err))
	}

	switch classifyURL(loc) {
	case wallNone:
		return h.healthy(account, "login succeeded")
	case wallSecurity:
		return h.handleChallenge(ctx, account, page)
	default:
		return h.fail(account, fmt.Errorf("login rejected, still on %s", loc))
	}
}

// handleChallenge resolves a security checkpoint. A visible code input means
// a verification code challenge; anything else needs a human.
func (h *Healer) handleChallenge(ctx context.Context, account *models.Account, page Page) error {
	hasPin, err := page.Exists(ctx, selPinInput)
	if err != nil {
		return h.fail(account, fmt.Errorf("failed to inspect checkpoint: %w", err))
	}
	if !hasPin {
		h.events.Record(account.ID, models.AuthEventSecurityWall, "security checkpoint without code input, manual review required")
		return h.fail(account, fmt.Errorf("security checkpoint requires manual review"))
	}

	h.setState(account.ID, models.LoginStatusAwaiting2FA)
	if err := h.accounts.UpdateLoginStatus(account.ID, models.LoginStatusAwaiting2FA); err != nil {
		logrus.Errorf("Failed to persist awaiting_2fa for account %s: %v", account.ID, err)
	}
	h.events.Record(account.ID, models.AuthEventTwoFARequired, "verification code required")

	code, err := h.waitForCode(ctx, account.ID)
	if err != nil {
		return h.fail(account, err)
	}
	h.events.Record(account.ID, models.AuthEventTwoFASubmitted, "verification code received")

	if err := page.TypeInto(ctx, selPinInput, code); err != nil {
		return h.fail(account, fmt.Errorf("failed to fill verification code: %w", err))
	}
	h.pace(ctx, 600, 200)
	if err := page.Click(ctx, selPinSubmit); err != nil {
		return h.fail(account, fmt.Errorf("failed to submit verification code: %w", err))
	}
	h.pace(ctx, 3000, 800)

	loc, err := page.CurrentURL(ctx)
	if err != nil {
		return h.fail(account, fmt.Errorf("failed to read location after challenge: %w", err))
	}
	if classifyURL(loc) == wallNone {
		return h.healthy(account, "verification accepted")
	}
	return h.fail(account, fmt.Errorf("verification rejected, still on %s", loc))
}

// waitForCode blocks until a code arrives through SubmitCode or the side
// channel, or the wait budget runs out.
func (h *Healer) waitForCode(ctx context.Context, accountID string) (string, error) {
	ch := make(chan string, 1)
	h.mu.Lock()
	h.pending[accountID] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, accountID)
		h.mu.Unlock()
	}()

	deadline := time.NewTimer(h.twoFAWait)
	defer deadline.Stop()
	poll := time.NewTicker(h.pollEvery)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", fmt.Errorf("timed out waiting for verification code")
		case code := <-ch:
			return code, nil
		case <-poll.C:
			if h.codes == nil {
				continue
			}
			if code, ok := h.codes.TakeCode(accountID); ok {
				return code, nil
			}
		}
	}
}

func (h *Healer) healthy(account *models.Account, detail string) error {
	h.setState(account.ID, models.LoginStatusHealthy)
	if err := h.accounts.UpdateLoginStatus(account.ID, models.LoginStatusHealthy); err != nil {
		logrus.Errorf("Failed to persist healthy status for account %s: %v", account.ID, err)
	}
	h.events.Record(account.ID, models.AuthEventLoginSuccess, detail)
	logrus.Infof("Account %s login healthy: %s", account.ID, detail)
	return nil
}

func (h *Healer) fail(account *models.Account, cause error) error {
	h.setState(account.ID, models.LoginStatusFailed)
	if err := h.accounts.UpdateLoginStatus(account.ID, models.LoginStatusFailed); err != nil {
		logrus.Errorf("Failed to persist failed status for account %s: %v", account.ID, err)
	}
	h.events.Record(account.ID, models.AuthEventLoginFailed, cause.Error())
	logrus.Warnf("Account %s login healing failed: %v", account.ID, cause)
	return fmt.Errorf("login healing failed for account %s: %w", account.ID, cause)
}

func (h *Healer) setState(accountID, state string) {
	h.mu.Lock()
	h.states[accountID] = state
	h.mu.Unlock()
}

func (h *Healer) clearState(accountID string) {
	h.mu.Lock()
	delete(h.states, accountID)
	h.mu.Unlock()
}

type wallKind int

const (
	wallNone wallKind = iota
	wallAuth
	wallSecurity
)

func classifyURL(loc string) wallKind {
	lower := strings.ToLower(loc)
	for _, marker := range config.LinkedInSecurityWalls {
		if strings.Contains(lower, marker) {
			return wallSecurity
		}
	}
	for _, marker := range config.LinkedInAuthWalls {
		if strings.Contains(lower, marker) {
			return wallAuth
		}
	}
	return wallNone
}
