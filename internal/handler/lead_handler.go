package handler

import (
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"reportgate/config"
	"reportgate/internal/models"
	"reportgate/internal/repository"

	"github.com/gin-gonic/gin"
)

type LeadHandler struct {
	leads   *repository.LeadRepository
	reports *repository.ReportRepository
	jwtCfg  *config.JWTConfig
}

func NewLeadHandler(leads *repository.LeadRepository, reports *repository.ReportRepository, jwtCfg *config.JWTConfig) *LeadHandler {
	return &LeadHandler{leads: leads, reports: reports, jwtCfg: jwtCfg}
}

// Create records a lead form submission for a free report and unlocks the
// download. Paid reports do not go through this path.
// POST /api/v1/leads
func (h *LeadHandler) Create(c *gin.Context) {
	var req struct {
		ReportID  uint   `json:"report_id" binding:"required"`
		Email     string `json:"email" binding:"required"`
		FirstName string `json:"first_name" binding:"required"`
		LastName  string `json:"last_name" binding:"required"`
		JobTitle  string `json:"job_title"`
		Company   string `json:"company"`
		Phone     string `json:"phone"`
		Country   string `json:"country"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report_id, email, first_name and last_name are required"})
		return
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		return
	}
	email := strings.ToLower(addr.Address)

	report, err := h.reports.GetByID(req.ReportID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	if report.IsPaid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "this report requires purchase"})
		return
	}

	lead := &models.Lead{
		ReportID:    report.ID,
		Email:       email,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		JobTitle:    strings.TrimSpace(req.JobTitle),
		Company:     strings.TrimSpace(req.Company),
		Phone:       strings.TrimSpace(req.Phone),
		Country:     strings.TrimSpace(req.Country),
		SubmittedAt: time.Now(),
	}
	if err := h.leads.Create(lead); err != nil {
		log.Printf("[LEADS] insert failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save submission"})
		return
	}

	setIdentityCookie(c, h.jwtCfg, email)
	c.JSON(http.StatusCreated, gin.H{
		"download_url": report.DownloadURL,
	})
}
