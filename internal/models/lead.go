package models

import "time"

// Lead is a free-tier download form submission.
type Lead struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ReportID    uint      `gorm:"not null;index" json:"report_id"`
	Email       string    `gorm:"size:255;not null;index" json:"email"`
	FirstName   string    `gorm:"size:100;not null" json:"first_name"`
	LastName    string    `gorm:"size:100;not null" json:"last_name"`
	JobTitle    string    `gorm:"size:100" json:"job_title"`
	Company     string    `gorm:"size:100" json:"company"`
	Phone       string    `gorm:"size:50" json:"phone"`
	Country     string    `gorm:"size:100" json:"country"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (Lead) TableName() string {
	return "leads"
}
