package repository

import (
	"reportgate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// InsertIfAbsent records a purchase unless one already exists for the same
// stripe_session_id. The insert rides the unique index (ON CONFLICT DO
// NOTHING), so two concurrent reconciliations cannot both win: the loser sees
// zero rows affected and reads back the winner's row. Returns the stored row
// and whether this call inserted it.
func (r *PurchaseRepository) InsertIfAbsent(p *models.Purchase) (*models.Purchase, bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_session_id"}},
		DoNothing: true,
	}).Create(p)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := r.FindBySessionID(p.StripeSessionID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return p, true, nil
}

func (r *PurchaseRepository) FindBySessionID(sessionID string) (*models.Purchase, error) {
	var p models.Purchase
	if err := r.db.Where("stripe_session_id = ?", sessionID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByEmailAndReport matches the buyer email case-insensitively. Emails are
// normalized to lower case before insert, but the query folds both sides
// anyway so rows written by older code paths still match.
func (r *PurchaseRepository) FindByEmailAndReport(email string, reportID uint) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.Where("LOWER(buyer_email) = LOWER(?) AND report_id = ?", email, reportID).
		Find(&purchases).Error
	return purchases, err
}

func (r *PurchaseRepository) FindByEmail(email string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.Where("LOWER(buyer_email) = LOWER(?)", email).
		Order("purchased_at DESC").
		Find(&purchases).Error
	return purchases, err
}

// IncrementDownloadCount bumps the counter atomically in SQL; the purchase row
// itself is never rewritten.
func (r *PurchaseRepository) IncrementDownloadCount(id uint) error {
	return r.db.Model(&models.Purchase{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1)).Error
}

func (r *PurchaseRepository) List(page, limit int) ([]models.Purchase, int64, error) {
	var total int64
	if err := r.db.Model(&models.Purchase{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var purchases []models.Purchase
	err := r.db.Order("purchased_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&purchases).Error
	return purchases, total, err
}
