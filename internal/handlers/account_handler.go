package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database/repository"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/healer"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

// twoFACodeTTL bounds how long a submitted code stays usable; LinkedIn
// verification codes expire quickly anyway.
const twoFACodeTTL = 5 * time.Minute

type AccountHandler struct {
	accounts   *repository.AccountRepository
	authEvents *repository.AuthEventRepository
	twoFACodes *repository.TwoFARepository
	healer     *healer.Healer
}

func NewAccountHandler(
	accounts *repository.AccountRepository,
	authEvents *repository.AuthEventRepository,
	twoFACodes *repository.TwoFARepository,
	loginHealer *healer.Healer,
) *AccountHandler {
	return &AccountHandler{
		accounts:   accounts,
		authEvents: authEvents,
		twoFACodes: twoFACodes,
		healer:     loginHealer,
	}
}

// ListAccounts returns all operator accounts (credentials excluded by
// model json tags)
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.accounts.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list accounts", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// GetAccountStatus returns an account's persisted login status, the live
// healer state and its recent auth events.
func (h *AccountHandler) GetAccountStatus(c *gin.Context) {
	account, err := h.accounts.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}

	events, err := h.authEvents.GetByAccount(account.ID, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get auth events", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account":      account,
		"healer_state": h.healer.State(account.ID),
		"auth_events":  events,
	})
}

// SubmitTwoFA accepts a verification code for an account stuck on a 2FA
// checkpoint. The code is persisted as a side-channel row and handed to the
// healer directly when it is blocked waiting; either path may consume it.
func (h *AccountHandler) SubmitTwoFA(c *gin.Context) {
	account, err := h.accounts.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}

	var req models.SubmitTwoFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	row := &models.TwoFACode{
		AccountID: account.ID,
		Code:      req.Code,
		ExpiresAt: time.Now().Add(twoFACodeTTL),
	}
	if err := h.twoFACodes.Create(row); err != nil {
		logrus.Errorf("Failed to persist 2FA code for account %s: %v", account.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store code", "details": err.Error()})
		return
	}

	delivered := h.healer.SubmitCode(account.ID, req.Code) == nil
	c.JSON(http.StatusAccepted, gin.H{
		"accepted":  true,
		"delivered": delivered,
	})
}
