package models

import "time"

// Report is a downloadable document. Free reports are gated behind the lead
// form; paid reports behind checkout.
type Report struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Slug        string    `gorm:"size:255;uniqueIndex" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"size:100;index" json:"category"`
	CoverURL    string    `gorm:"size:512" json:"cover_url"`
	DownloadURL string    `gorm:"size:512" json:"-"`
	IsPaid      bool      `gorm:"not null;default:false" json:"is_paid"`
	Price       float64   `gorm:"type:decimal(10,2);default:0" json:"price"`
	Currency    string    `gorm:"size:3;default:'USD'" json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Report) TableName() string {
	return "reports"
}
