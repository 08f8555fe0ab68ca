package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"reportgate/config"
	"reportgate/internal/models"
	"reportgate/internal/repository"
	"reportgate/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ReportHandler struct {
	reports      *repository.ReportRepository
	entitlements *service.EntitlementService
	jwtCfg       *config.JWTConfig
}

func NewReportHandler(reports *repository.ReportRepository, entitlements *service.EntitlementService, jwtCfg *config.JWTConfig) *ReportHandler {
	return &ReportHandler{reports: reports, entitlements: entitlements, jwtCfg: jwtCfg}
}

// List returns the public catalog.
// GET /api/v1/reports?category=&page=&limit=
func (h *ReportHandler) List(c *gin.Context) {
	page, limit := parsePagination(c)
	reports, total, err := h.reports.List(c.Query("category"), page, limit)
	if err != nil {
		log.Printf("[REPORTS] list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// Get returns one report by numeric id or slug.
// GET /api/v1/reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.lookup(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		log.Printf("[REPORTS] get failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Access tells the frontend whether the caller already holds this report.
// POST /api/v1/reports/:id/access
func (h *ReportHandler) Access(c *gin.Context) {
	report, err := h.lookup(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&req)
	email := identityEmail(c, h.jwtCfg, req.Email)

	if !report.IsPaid {
		c.JSON(http.StatusOK, gin.H{"purchased": true, "paid": false})
		return
	}
	purchased, err := h.entitlements.HasPurchased(email, report.ID)
	if err != nil {
		log.Printf("[ACCESS] check failed for report %d: %v", report.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check access"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchased": purchased, "paid": true})
}

// Download authorizes a download and returns the file URL.
// POST /api/v1/reports/:id/download
func (h *ReportHandler) Download(c *gin.Context) {
	report, err := h.lookup(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&req)
	email := identityEmail(c, h.jwtCfg, req.Email)

	url, err := h.entitlements.RegisterDownload(email, report.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotEntitled):
			c.JSON(http.StatusForbidden, gin.H{"error": "no purchase found for this email"})
		default:
			log.Printf("[DOWNLOAD] failed for report %d: %v", report.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authorize download"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"download_url": url})
}

// Email re-verifies entitlement and sends the report link to the buyer.
// POST /api/v1/reports/:id/email
func (h *ReportHandler) Email(c *gin.Context) {
	report, err := h.lookup(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	_ = c.ShouldBindJSON(&req)
	email := identityEmail(c, h.jwtCfg, req.Email)

	if err := h.entitlements.RequestDelivery(email, report.ID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotEntitled):
			c.JSON(http.StatusForbidden, gin.H{"error": "no purchase found for this email"})
		default:
			log.Printf("[DELIVERY] failed for report %d: %v", report.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send report"})
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

// lookup accepts either a numeric id or a slug.
func (h *ReportHandler) lookup(param string) (*models.Report, error) {
	if id, err := strconv.ParseUint(param, 10, 32); err == nil {
		return h.reports.GetByID(uint(id))
	}
	return h.reports.GetBySlug(param)
}

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
