package service

import (
	"errors"
	"log"

	"reportgate/internal/models"

	"gorm.io/gorm"
)

// ErrNotEntitled means no settled purchase links this email to this report.
var ErrNotEntitled = errors.New("no purchase found for this report")

// EntitlementService answers "may this email have this report" from the
// purchase ledger. The identity cookie is only a hint; every delivery decision
// lands here and hits the ledger.
type EntitlementService struct {
	reports ReportStore
	ledger  PurchaseLedger
	mailer  Mailer
}

func NewEntitlementService(reports ReportStore, ledger PurchaseLedger, mailer Mailer) *EntitlementService {
	return &EntitlementService{reports: reports, ledger: ledger, mailer: mailer}
}

// HasPurchased reports whether email holds a settled purchase for reportID.
// Invalid or empty emails are simply not entitled; no error.
func (s *EntitlementService) HasPurchased(email string, reportID uint) (bool, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return false, nil
	}
	purchases, err := s.ledger.FindByEmailAndReport(normalized, reportID)
	if err != nil {
		return false, err
	}
	return len(purchases) > 0, nil
}

// RegisterDownload authorizes a download and returns the file URL. Free
// reports need no purchase row; paid reports require one and get their
// counter bumped.
func (s *EntitlementService) RegisterDownload(email string, reportID uint) (string, error) {
	report, err := s.reports.GetByID(reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrReportNotFound
		}
		return "", err
	}
	if !report.IsPaid {
		return report.DownloadURL, nil
	}

	normalized, err := normalizeEmail(email)
	if err != nil {
		return "", ErrNotEntitled
	}
	purchases, err := s.ledger.FindByEmailAndReport(normalized, reportID)
	if err != nil {
		return "", err
	}
	if len(purchases) == 0 {
		return "", ErrNotEntitled
	}
	if err := s.ledger.IncrementDownloadCount(purchases[0].ID); err != nil {
		// The buyer paid; a broken counter must not block the file.
		log.Printf("[DOWNLOAD] counter update failed for purchase %d: %v", purchases[0].ID, err)
	}
	return report.DownloadURL, nil
}

// RequestDelivery re-verifies entitlement and emails the report link.
func (s *EntitlementService) RequestDelivery(email string, reportID uint) error {
	report, err := s.reports.GetByID(reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReportNotFound
		}
		return err
	}

	normalized, err := normalizeEmail(email)
	if err != nil {
		return ErrNotEntitled
	}
	if report.IsPaid {
		purchases, err := s.ledger.FindByEmailAndReport(normalized, reportID)
		if err != nil {
			return err
		}
		if len(purchases) == 0 {
			return ErrNotEntitled
		}
	}
	return s.mailer.SendReportDelivery(normalized, report)
}

// PurchasesFor lists every purchase held by an email, newest first.
func (s *EntitlementService) PurchasesFor(email string) ([]models.Purchase, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, nil
	}
	return s.ledger.FindByEmail(normalized)
}
