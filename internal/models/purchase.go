package models

import "time"

// Purchase is one settled checkout session. The unique index on
// StripeSessionID is what makes reconciliation idempotent: the webhook and the
// client-return confirmation may both try to record the same session, and only
// one insert can win. Rows are immutable after insert except DownloadCount.
type Purchase struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	ReportID            uint      `gorm:"not null;index" json:"report_id"`
	BuyerEmail          string    `gorm:"size:255;not null;index" json:"buyer_email"`
	BuyerName           string    `gorm:"size:255" json:"buyer_name"`
	StripeSessionID     string    `gorm:"size:255;not null;uniqueIndex" json:"stripe_session_id"`
	StripePaymentIntent string    `gorm:"size:255" json:"stripe_payment_intent"`
	Amount              float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency            string    `gorm:"size:3;not null" json:"currency"`
	PurchasedAt         time.Time `json:"purchased_at"`
	DownloadCount       int       `gorm:"not null;default:0" json:"download_count"`
}

func (Purchase) TableName() string {
	return "purchases"
}
