package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"reportgate/internal/domain"
	"reportgate/internal/models"
	"reportgate/pkg/stripe"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrReportNotFound    = errors.New("report not found")
	ErrNotPurchasable    = errors.New("report is not purchasable")
	ErrPaymentIncomplete = errors.New("payment not completed")
	ErrMissingMetadata   = errors.New("session metadata missing required keys")
)

// ReportStore is the catalog read side checkout needs.
type ReportStore interface {
	GetByID(id uint) (*models.Report, error)
}

// PurchaseLedger records settled payments. InsertIfAbsent must be atomic per
// session id: exactly one caller inserts, everyone else reads the same row.
type PurchaseLedger interface {
	InsertIfAbsent(p *models.Purchase) (*models.Purchase, bool, error)
	FindBySessionID(sessionID string) (*models.Purchase, error)
	FindByEmailAndReport(email string, reportID uint) ([]models.Purchase, error)
	FindByEmail(email string) ([]models.Purchase, error)
	IncrementDownloadCount(id uint) error
}

// Gateway is the payment provider surface checkout depends on.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	FetchSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
}

// Mailer sends buyer-facing email. Failures are logged, never surfaced.
type Mailer interface {
	SendPurchaseConfirmation(email, name string, report *models.Report) error
	SendReportDelivery(email string, report *models.Report) error
}

// CheckoutService orchestrates session creation and payment reconciliation.
type CheckoutService struct {
	reports ReportStore
	ledger  PurchaseLedger
	gateway Gateway
	mailer  Mailer
	siteURL string
	now     func() time.Time
}

func NewCheckoutService(reports ReportStore, ledger PurchaseLedger, gateway Gateway, mailer Mailer, siteURL string) *CheckoutService {
	return &CheckoutService{
		reports: reports,
		ledger:  ledger,
		gateway: gateway,
		mailer:  mailer,
		siteURL: strings.TrimRight(siteURL, "/"),
		now:     time.Now,
	}
}

// StartCheckoutInput carries the buyer identity collected on the paywall form.
type StartCheckoutInput struct {
	ReportID  uint
	Email     string
	FirstName string
	LastName  string
}

// StartCheckout opens a gateway session for a paid report. It writes nothing
// to the ledger: a session that is never paid leaves no trace here.
func (s *CheckoutService) StartCheckout(ctx context.Context, in StartCheckoutInput) (*stripe.CheckoutSession, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	report, err := s.reports.GetByID(in.ReportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	if !report.IsPaid || report.Price <= 0 {
		return nil, ErrNotPurchasable
	}
	if !domain.CurrencySupported(report.Currency) {
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrNotPurchasable, report.Currency)
	}

	reportURL := fmt.Sprintf("%s/reports/%s", s.siteURL, report.Slug)
	params := stripe.CheckoutSessionParams{
		ClientReferenceID:  uuid.NewString(),
		AmountMinor:        stripe.MinorUnits(report.Price),
		Currency:           report.Currency,
		ProductName:        report.Title,
		ProductDescription: truncate(report.Description, 200),
		ProductImageURL:    report.CoverURL,
		CustomerEmail:      email,
		SuccessURL:         reportURL + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:          reportURL + "?payment=cancelled",
		Metadata: map[string]string{
			"report_id":   fmt.Sprintf("%d", report.ID),
			"buyer_email": email,
			"first_name":  in.FirstName,
			"last_name":   in.LastName,
		},
	}
	return s.gateway.CreateCheckoutSession(ctx, params)
}

// Reconcile turns a gateway session into at most one ledger row. It is safe to
// call any number of times and from any trigger (webhook, client return,
// manual retry); every successful call returns the same stored purchase.
func (s *CheckoutService) Reconcile(ctx context.Context, sessionID string) (*models.Purchase, error) {
	sess, err := s.gateway.FetchSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.PaymentStatus != stripe.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: status %q", ErrPaymentIncomplete, sess.PaymentStatus)
	}

	// Cheap replay short-circuit. The unique index below is the real guard.
	if existing, err := s.ledger.FindBySessionID(sess.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	reportID, email, name, err := extractMetadata(sess)
	if err != nil {
		// A paid session we cannot attribute needs an operator, not a retry.
		log.Printf("[RECONCILE] ALERT: paid session %s has unusable metadata: %v", sess.ID, err)
		return nil, err
	}

	// Amount and currency come from the gateway settlement, not from the
	// catalog price at request time.
	purchase := &models.Purchase{
		ReportID:            reportID,
		BuyerEmail:          email,
		BuyerName:           name,
		StripeSessionID:     sess.ID,
		StripePaymentIntent: sess.PaymentIntent,
		Amount:              stripe.DecimalAmount(sess.AmountTotal),
		Currency:            strings.ToUpper(sess.Currency),
		PurchasedAt:         s.now(),
	}
	stored, inserted, err := s.ledger.InsertIfAbsent(purchase)
	if err != nil {
		return nil, err
	}
	if inserted {
		log.Printf("[RECONCILE] recorded purchase: session=%s report=%d email=%s", sess.ID, reportID, email)
		go s.sendConfirmation(stored)
	}
	return stored, nil
}

// HandleEvent routes a verified webhook event. Only completed checkout
// sessions trigger work; everything else is acknowledged and dropped.
func (s *CheckoutService) HandleEvent(ctx context.Context, ev *stripe.Event) error {
	switch ev.Type {
	case stripe.EventCheckoutCompleted:
		_, err := s.Reconcile(ctx, ev.Session.ID)
		return err
	default:
		log.Printf("[WEBHOOK] ignoring event type %s", ev.RawType)
		return nil
	}
}

func (s *CheckoutService) sendConfirmation(p *models.Purchase) {
	report, err := s.reports.GetByID(p.ReportID)
	if err != nil {
		log.Printf("[MAIL] confirmation skipped, report %d lookup failed: %v", p.ReportID, err)
		return
	}
	if err := s.mailer.SendPurchaseConfirmation(p.BuyerEmail, p.BuyerName, report); err != nil {
		log.Printf("[MAIL] confirmation to %s failed: %v", p.BuyerEmail, err)
	}
}

func extractMetadata(sess *stripe.CheckoutSession) (reportID uint, email, name string, err error) {
	rawID := sess.Metadata["report_id"]
	if rawID == "" {
		return 0, "", "", fmt.Errorf("%w: report_id", ErrMissingMetadata)
	}
	var id uint64
	if _, scanErr := fmt.Sscanf(rawID, "%d", &id); scanErr != nil || id == 0 {
		return 0, "", "", fmt.Errorf("%w: report_id %q", ErrMissingMetadata, rawID)
	}

	email = sess.Metadata["buyer_email"]
	if email == "" {
		// Older sessions carried only the customer email set by the gateway.
		email = sess.CustomerEmail
	}
	email, mailErr := normalizeEmail(email)
	if mailErr != nil {
		return 0, "", "", fmt.Errorf("%w: buyer_email", ErrMissingMetadata)
	}

	name = strings.TrimSpace(sess.Metadata["first_name"] + " " + sess.Metadata["last_name"])
	return uint(id), email, name, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Address), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
