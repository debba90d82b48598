package healer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/utils"
)

type fakePage struct {
	mu       sync.Mutex
	urls     []string // CurrentURL returns these in order, repeating the last
	urlIdx   int
	present  map[string]bool
	typed    map[string]string
	clicked  []string
	navigate []string
}

func newFakePage(urls ...string) *fakePage {
	return &fakePage{
		urls:    urls,
		present: make(map[string]bool),
		typed:   make(map[string]string),
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigate = append(p.navigate, url)
	return nil
}

func (p *fakePage) CurrentURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := p.urls[p.urlIdx]
	if p.urlIdx < len(p.urls)-1 {
		p.urlIdx++
	}
	return u, nil
}

func (p *fakePage) Exists(ctx context.Context, sel string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[sel], nil
}

func (p *fakePage) TypeInto(ctx context.Context, sel, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed[sel] = text
	return nil
}

func (p *fakePage) Click(ctx context.Context, sel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked = append(p.clicked, sel)
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	statuses []string
}

func (s *fakeStore) UpdateLoginStatus(accountID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeStore) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

type fakeSink struct {
	mu     sync.Mutex
	events []string
}

func (s *fakeSink) Record(accountID, event, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *fakeSink) has(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == event {
			return true
		}
	}
	return false
}

func testAccount(t *testing.T, cipher *utils.CredentialCipher) *models.Account {
	t.Helper()
	email, err := cipher.Encrypt("user@example.com")
	require.NoError(t, err)
	pass, err := cipher.Encrypt("p4ssw0rd")
	require.NoError(t, err)
	return &models.Account{ID: "acct-1", ProfileID: "prof-1", EmailEncrypted: email, PasswordEncrypted: pass}
}

func newTestHealer(t *testing.T, store AccountStore, sink EventSink, wait time.Duration) (*Healer, *utils.CredentialCipher) {
	t.Helper()
	cipher, err := utils.NewCredentialCipher(strings.Repeat("k", 32))
	require.NoError(t, err)
	h := New(cipher, store, sink, nil, wait)
	h.pace = func(ctx context.Context, meanMs, stdDevMs int) {}
	return h, cipher
}

func TestEnsureLoggedInAlreadyHealthy(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}
	h, cipher := newTestHealer(t, store, sink, time.Second)

	page := newFakePage("https://www.linkedin.com/feed/")
	err := h.EnsureLoggedIn(context.Background(), testAccount(t, cipher), page)
	require.NoError(t, err)

	assert.Equal(t, models.LoginStatusHealthy, store.last())
	assert.True(t, sink.has(models.AuthEventLoginSuccess))
	assert.Empty(t, page.typed)
}

func TestEnsureLoggedInHealsLoginWall(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}
	h, cipher := newTestHealer(t, store, sink, time.Second)

	page := newFakePage(
		"https://www.linkedin.com/login",
		"https://www.linkedin.com/feed/",
	)
	page.present[selLoginUser] = true

	err := h.EnsureLoggedIn(context.Background(), testAccount(t, cipher), page)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", page.typed[selLoginUser])
	assert.Equal(t, "p4ssw0rd", page.typed[selLoginPass])
	assert.Contains(t, page.clicked, selLoginSubmit)
	assert.Equal(t, models.LoginStatusHealthy, store.last())
	assert.True(t, sink.has(models.AuthEventCredentialsSubmitted))
}

func TestEnsureLoggedInTwoFactorFlow(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}
	h, cipher := newTestHealer(t, store, sink, 5*time.Second)

	page := newFakePage(
		"https://www.linkedin.com/login",
		"https://www.linkedin.com/checkpoint/challenge/verify",
		"https://www.linkedin.com/feed/",
	)
	page.present[selLoginUser] = true
	page.present[selPinInput] = true

	acct := testAccount(t, cipher)

	done := make(chan error, 1)
	go func() { done <- h.EnsureLoggedIn(context.Background(), acct, page) }()

	// Wait for the healer to park on the challenge, then deliver the code.
	require.Eventually(t, func() bool {
		return h.State(acct.ID) == models.LoginStatusAwaiting2FA
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, h.SubmitCode(acct.ID, "424242"))

	require.NoError(t, <-done)
	assert.Equal(t, "424242", page.typed[selPinInput])
	assert.Equal(t, models.LoginStatusHealthy, store.last())
	assert.True(t, sink.has(models.AuthEventTwoFARequired))
	assert.True(t, sink.has(models.AuthEventTwoFASubmitted))

	// The challenge is consumed; a second code has nowhere to go.
	assert.Error(t, h.SubmitCode(acct.ID, "111111"))
}

func TestEnsureLoggedInTwoFactorTimeout(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}
	h, cipher := newTestHealer(t, store, sink, 50*time.Millisecond)

	page := newFakePage("https://www.linkedin.com/checkpoint/challenge/verify")
	page.present[selPinInput] = true

	err := h.EnsureLoggedIn(context.Background(), testAccount(t, cipher), page)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, models.LoginStatusFailed, store.last())
}

func TestEnsureLoggedInManualCheckpointFails(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}
	h, cipher := newTestHealer(t, store, sink, time.Second)

	// Checkpoint page with no code input anywhere.
	page := newFakePage("https://www.linkedin.com/checkpoint/challenge/restricted")

	err := h.EnsureLoggedIn(context.Background(), testAccount(t, cipher), page)
	require.Error(t, err)
	assert.Equal(t, models.LoginStatusFailed, store.last())
	assert.True(t, sink.has(models.AuthEventSecurityWall))
}

func TestSubmitCodeWithoutChallenge(t *testing.T) {
	h, _ := newTestHealer(t, &fakeStore{}, &fakeSink{}, time.Second)
	assert.Error(t, h.SubmitCode("nobody", "123456"))
}

type fakeCodes struct {
	mu   sync.Mutex
	code string
}

func (f *fakeCodes) TakeCode(accountID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.code == "" {
		return "", false
	}
	c := f.code
	f.code = ""
	return c, true
}

func TestTwoFactorCodeFromSideChannel(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}
	cipher, err := utils.NewCredentialCipher(strings.Repeat("k", 32))
	require.NoError(t, err)

	codes := &fakeCodes{code: "987654"}
	h := New(cipher, store, sink, codes, 5*time.Second)
	h.pace = func(ctx context.Context, meanMs, stdDevMs int) {}
	h.pollEvery = 10 * time.Millisecond

	page := newFakePage(
		"https://www.linkedin.com/checkpoint/challenge/verify",
		"https://www.linkedin.com/feed/",
	)
	page.present[selPinInput] = true

	err = h.EnsureLoggedIn(context.Background(), testAccount(t, cipher), page)
	require.NoError(t, err)
	assert.Equal(t, "987654", page.typed[selPinInput])
	assert.Equal(t, models.LoginStatusHealthy, store.last())
}
