package repository

import (
	"time"

	"reportgate/internal/models"

	"gorm.io/gorm"
)

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

func (r *LeadRepository) Create(lead *models.Lead) error {
	return r.db.Create(lead).Error
}

func (r *LeadRepository) List(page, limit int) ([]models.Lead, int64, error) {
	var total int64
	if err := r.db.Model(&models.Lead{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var leads []models.Lead
	err := r.db.Order("submitted_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&leads).Error
	return leads, total, err
}

// LeadExportRow is one CSV export line, lead columns joined with the report title.
type LeadExportRow struct {
	FirstName   string
	LastName    string
	Email       string
	JobTitle    string
	Company     string
	Phone       string
	Country     string
	ReportTitle string
	SubmittedAt time.Time
}

func (r *LeadRepository) ListForExport() ([]LeadExportRow, error) {
	var rows []LeadExportRow
	err := r.db.Table("leads").
		Select("leads.first_name, leads.last_name, leads.email, leads.job_title, leads.company, leads.phone, leads.country, reports.title AS report_title, leads.submitted_at").
		Joins("LEFT JOIN reports ON reports.id = leads.report_id").
		Order("leads.submitted_at DESC").
		Scan(&rows).Error
	return rows, err
}
