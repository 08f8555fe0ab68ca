package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"reportgate/internal/domain"
	"reportgate/internal/models"
	"reportgate/internal/repository"
	"reportgate/internal/service"
	"reportgate/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AdminHandler struct {
	auth      *service.AuthService
	reports   *repository.ReportRepository
	purchases *repository.PurchaseRepository
	leads     *repository.LeadRepository
	cloud     cloudinary.Client
}

func NewAdminHandler(auth *service.AuthService, reports *repository.ReportRepository, purchases *repository.PurchaseRepository, leads *repository.LeadRepository, cloud cloudinary.Client) *AdminHandler {
	return &AdminHandler{auth: auth, reports: reports, purchases: purchases, leads: leads, cloud: cloud}
}

// Login exchanges admin credentials for a bearer token.
// POST /api/v1/admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	token, admin, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		log.Printf("[ADMIN] login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "email": admin.Email})
}

type reportRequest struct {
	Title       string  `json:"title" binding:"required"`
	Slug        string  `json:"slug" binding:"required"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	CoverURL    string  `json:"cover_url"`
	DownloadURL string  `json:"download_url" binding:"required"`
	IsPaid      bool    `json:"is_paid"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
}

func (r *reportRequest) validate() error {
	if r.IsPaid {
		if r.Price <= 0 {
			return fmt.Errorf("paid reports need a positive price")
		}
		if r.Currency == "" || !domain.CurrencySupported(r.Currency) {
			return fmt.Errorf("unsupported currency %q", r.Currency)
		}
	}
	return nil
}

// CreateReport adds a catalog entry.
// POST /api/v1/admin/reports
func (h *AdminHandler) CreateReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, slug and download_url are required"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report := &models.Report{
		Title:       req.Title,
		Slug:        req.Slug,
		Description: req.Description,
		Category:    req.Category,
		CoverURL:    req.CoverURL,
		DownloadURL: req.DownloadURL,
		IsPaid:      req.IsPaid,
		Price:       req.Price,
		Currency:    req.Currency,
	}
	if report.Currency == "" {
		report.Currency = "USD"
	}
	if err := h.reports.Create(report); err != nil {
		log.Printf("[ADMIN] report create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create report"})
		return
	}
	c.JSON(http.StatusCreated, report)
}

// UpdateReport replaces a catalog entry's editable fields.
// PUT /api/v1/admin/reports/:id
func (h *AdminHandler) UpdateReport(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}
	report, err := h.reports.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
		return
	}

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, slug and download_url are required"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report.Title = req.Title
	report.Slug = req.Slug
	report.Description = req.Description
	report.Category = req.Category
	report.CoverURL = req.CoverURL
	report.DownloadURL = req.DownloadURL
	report.IsPaid = req.IsPaid
	report.Price = req.Price
	if req.Currency != "" {
		report.Currency = req.Currency
	}
	if err := h.reports.Update(report); err != nil {
		log.Printf("[ADMIN] report update failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// UploadCover stores a cover image and attaches it to the report.
// POST /api/v1/admin/reports/:id/cover
func (h *AdminHandler) UploadCover(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image uploads are not configured"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}
	report, err := h.reports.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer file.Close()

	publicID := "cover-" + uuid.NewString()
	url, err := h.cloud.UploadCover(c.Request.Context(), file, publicID)
	if err != nil {
		log.Printf("[ADMIN] cover upload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	report.CoverURL = url
	if err := h.reports.Update(report); err != nil {
		log.Printf("[ADMIN] cover save failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save cover"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cover_url": url})
}

// ListReports pages the full catalog for the dashboard.
// GET /api/v1/admin/reports
func (h *AdminHandler) ListReports(c *gin.Context) {
	page, limit := parsePagination(c)
	reports, total, err := h.reports.List(c.Query("category"), page, limit)
	if err != nil {
		log.Printf("[ADMIN] reports list failed: %v", err)
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

// DeleteReport removes a catalog entry. Ledger rows keep their report_id so
// past purchases stay auditable.
// DELETE /api/v1/admin/reports/:id
func (h *AdminHandler) DeleteReport(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}
	if err := h.reports.Delete(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		log.Printf("[ADMIN] report delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete report"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListPurchases pages through the ledger, newest first.
// GET /api/v1/admin/purchases
func (h *AdminHandler) ListPurchases(c *gin.Context) {
	page, limit := parsePagination(c)
	purchases, total, err := h.purchases.List(page, limit)
	if err != nil {
		log.Printf("[ADMIN] purchases list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load purchases"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"purchases": purchases,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

// ListLeads pages through lead submissions, newest first.
// GET /api/v1/admin/leads
func (h *AdminHandler) ListLeads(c *gin.Context) {
	page, limit := parsePagination(c)
	leads, total, err := h.leads.List(page, limit)
	if err != nil {
		log.Printf("[ADMIN] leads list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"leads": leads,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// ExportLeads streams every lead as CSV.
// GET /api/v1/admin/leads/export
func (h *AdminHandler) ExportLeads(c *gin.Context) {
	rows, err := h.leads.ListForExport()
	if err != nil {
		log.Printf("[ADMIN] leads export failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export leads"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="leads.csv"`)
	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"First Name", "Last Name", "Email", "Job Title", "Company", "Phone", "Country", "Report Title", "Submission Date"})
	for _, row := range rows {
		_ = w.Write([]string{
			row.FirstName,
			row.LastName,
			row.Email,
			row.JobTitle,
			row.Company,
			row.Phone,
			row.Country,
			row.ReportTitle,
			row.SubmittedAt.Format("2006-01-02 15:04:05"),
		})
	}
	w.Flush()
}
