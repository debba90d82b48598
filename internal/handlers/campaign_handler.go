package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/database/repository"
	"github.com/Riazulbd/Local-Linkedin-Automation-sub000/internal/models"
)

type CampaignHandler struct {
	campaigns *repository.CampaignRepository
}

func NewCampaignHandler(campaigns *repository.CampaignRepository) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns}
}

// ListCampaigns returns all campaigns
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	campaigns, err := h.campaigns.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list campaigns", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, campaigns)
}

// StartCampaign activates a campaign so the scheduler picks it up on the
// next tick. Completed and archived campaigns cannot be restarted.
func (h *CampaignHandler) StartCampaign(c *gin.Context) {
	campaign, err := h.campaigns.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}

	switch campaign.Status {
	case models.CampaignStatusActive:
		c.JSON(http.StatusOK, gin.H{"status": campaign.Status})
		return
	case models.CampaignStatusCompleted, models.CampaignStatusArchived:
		c.JSON(http.StatusConflict, gin.H{"error": "Campaign is " + campaign.Status + " and cannot be started"})
		return
	}

	if len(campaign.Steps) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Campaign has no steps"})
		return
	}
	if len(campaign.Accounts) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Campaign has no attached accounts"})
		return
	}

	if err := h.campaigns.UpdateStatus(campaign.ID, models.CampaignStatusActive); err != nil {
		logrus.Errorf("Failed to activate campaign %s: %v", campaign.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start campaign", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.CampaignStatusActive})
}

// PauseCampaign pauses an active campaign. In-flight leads finish their
// current step; nothing new is scheduled until restart.
func (h *CampaignHandler) PauseCampaign(c *gin.Context) {
	campaign, err := h.campaigns.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}

	if campaign.Status != models.CampaignStatusActive {
		c.JSON(http.StatusOK, gin.H{"status": campaign.Status})
		return
	}

	if err := h.campaigns.UpdateStatus(campaign.ID, models.CampaignStatusPaused); err != nil {
		logrus.Errorf("Failed to pause campaign %s: %v", campaign.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to pause campaign", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.CampaignStatusPaused})
}

// GetCampaignStatus returns a campaign with its per-status cursor counts
func (h *CampaignHandler) GetCampaignStatus(c *gin.Context) {
	campaign, err := h.campaigns.GetByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}

	counts, err := h.campaigns.CountProgressByStatus(campaign.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get campaign progress", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign": campaign,
		"progress": counts,
	})
}
