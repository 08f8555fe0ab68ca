package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"reportgate/internal/models"
	"reportgate/pkg/stripe"

	"gorm.io/gorm"
)

type stubReports struct {
	reports map[uint]*models.Report
}

func (s *stubReports) GetByID(id uint) (*models.Report, error) {
	r, ok := s.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r, nil
}

type stubLedger struct {
	mu        sync.Mutex
	rows      []*models.Purchase
	nextID    uint
	insertErr error
}

func (s *stubLedger) InsertIfAbsent(p *models.Purchase) (*models.Purchase, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, false, s.insertErr
	}
	for _, row := range s.rows {
		if row.StripeSessionID == p.StripeSessionID {
			return row, false, nil
		}
	}
	s.nextID++
	p.ID = s.nextID
	s.rows = append(s.rows, p)
	return p, true, nil
}

func (s *stubLedger) FindBySessionID(sessionID string) (*models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.StripeSessionID == sessionID {
			return row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLedger) FindByEmailAndReport(email string, reportID uint) ([]models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Purchase
	for _, row := range s.rows {
		if strings.EqualFold(row.BuyerEmail, email) && row.ReportID == reportID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *stubLedger) FindByEmail(email string) ([]models.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Purchase
	for _, row := range s.rows {
		if strings.EqualFold(row.BuyerEmail, email) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *stubLedger) IncrementDownloadCount(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == id {
			row.DownloadCount++
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubLedger) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type stubGateway struct {
	mu        sync.Mutex
	sessions  map[string]*stripe.CheckoutSession
	created   []stripe.CheckoutSessionParams
	createErr error
	fetchErr  error
}

func (s *stubGateway) CreateCheckoutSession(ctx context.Context, p stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, p)
	return &stripe.CheckoutSession{ID: fmt.Sprintf("cs_test_%d", len(s.created)), URL: "https://checkout.example/s"}, nil
}

func (s *stubGateway) FetchSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, stripe.ErrSessionNotFound
	}
	return sess, nil
}

type stubMailer struct {
	mu            sync.Mutex
	confirmations int
	deliveries    int
}

func (s *stubMailer) SendPurchaseConfirmation(email, name string, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations++
	return nil
}

func (s *stubMailer) SendReportDelivery(email string, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries++
	return nil
}

func (s *stubMailer) confirmationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmations
}

func paidReport() *models.Report {
	return &models.Report{
		ID:          7,
		Title:       "Market Outlook 2026",
		Slug:        "market-outlook-2026",
		IsPaid:      true,
		Price:       19.99,
		Currency:    "USD",
		DownloadURL: "https://files.example/outlook.pdf",
	}
}

func newTestCheckout(gw *stubGateway, ledger *stubLedger, mailer *stubMailer) *CheckoutService {
	reports := &stubReports{reports: map[uint]*models.Report{7: paidReport()}}
	return NewCheckoutService(reports, ledger, gw, mailer, "https://reports.example")
}

func paidSession(id string, metadata map[string]string) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            id,
		PaymentStatus: stripe.PaymentStatusPaid,
		AmountTotal:   1999,
		Currency:      "usd",
		PaymentIntent: "pi_123",
		Metadata:      metadata,
	}
}

func validMetadata() map[string]string {
	return map[string]string{
		"report_id":   "7",
		"buyer_email": "alice@example.com",
		"first_name":  "Alice",
		"last_name":   "Jones",
	}
}

func waitForConfirmations(t *testing.T, mailer *stubMailer, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mailer.confirmationCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("confirmation count = %d, want %d", mailer.confirmationCount(), want)
}

func TestStartCheckoutBuildsSession(t *testing.T) {
	gw := &stubGateway{}
	ledger := &stubLedger{}
	svc := newTestCheckout(gw, ledger, &stubMailer{})

	sess, err := svc.StartCheckout(context.Background(), StartCheckoutInput{
		ReportID:  7,
		Email:     "Alice@Example.COM",
		FirstName: "Alice",
		LastName:  "Jones",
	})
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if sess.URL == "" {
		t.Fatal("expected a checkout URL")
	}
	if len(gw.created) != 1 {
		t.Fatalf("created %d sessions, want 1", len(gw.created))
	}

	p := gw.created[0]
	if p.AmountMinor != 1999 {
		t.Errorf("AmountMinor = %d, want 1999", p.AmountMinor)
	}
	if p.CustomerEmail != "alice@example.com" {
		t.Errorf("CustomerEmail = %q, want normalized lower case", p.CustomerEmail)
	}
	if p.Metadata["report_id"] != "7" || p.Metadata["buyer_email"] != "alice@example.com" {
		t.Errorf("metadata not propagated: %v", p.Metadata)
	}
	if p.SuccessURL != "https://reports.example/reports/market-outlook-2026?session_id={CHECKOUT_SESSION_ID}" {
		t.Errorf("SuccessURL = %q", p.SuccessURL)
	}
	if p.CancelURL != "https://reports.example/reports/market-outlook-2026?payment=cancelled" {
		t.Errorf("CancelURL = %q", p.CancelURL)
	}
	if ledger.count() != 0 {
		t.Errorf("StartCheckout wrote %d ledger rows, want 0", ledger.count())
	}
}

func TestStartCheckoutRejectsInvalidEmail(t *testing.T) {
	svc := newTestCheckout(&stubGateway{}, &stubLedger{}, &stubMailer{})
	_, err := svc.StartCheckout(context.Background(), StartCheckoutInput{ReportID: 7, Email: "not-an-email"})
	if !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("err = %v, want ErrInvalidEmail", err)
	}
}

func TestStartCheckoutUnknownReport(t *testing.T) {
	svc := newTestCheckout(&stubGateway{}, &stubLedger{}, &stubMailer{})
	_, err := svc.StartCheckout(context.Background(), StartCheckoutInput{ReportID: 404, Email: "a@b.com"})
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("err = %v, want ErrReportNotFound", err)
	}
}

func TestStartCheckoutRejectsFreeReport(t *testing.T) {
	reports := &stubReports{reports: map[uint]*models.Report{
		1: {ID: 1, Title: "Free Guide", Slug: "free-guide", IsPaid: false},
	}}
	svc := NewCheckoutService(reports, &stubLedger{}, &stubGateway{}, &stubMailer{}, "https://reports.example")
	_, err := svc.StartCheckout(context.Background(), StartCheckoutInput{ReportID: 1, Email: "a@b.com"})
	if !errors.Is(err, ErrNotPurchasable) {
		t.Fatalf("err = %v, want ErrNotPurchasable", err)
	}
}

func TestStartCheckoutRejectsUnsupportedCurrency(t *testing.T) {
	reports := &stubReports{reports: map[uint]*models.Report{
		2: {ID: 2, Title: "Odd", Slug: "odd", IsPaid: true, Price: 5, Currency: "XYZ"},
	}}
	svc := NewCheckoutService(reports, &stubLedger{}, &stubGateway{}, &stubMailer{}, "https://reports.example")
	_, err := svc.StartCheckout(context.Background(), StartCheckoutInput{ReportID: 2, Email: "a@b.com"})
	if !errors.Is(err, ErrNotPurchasable) {
		t.Fatalf("err = %v, want ErrNotPurchasable", err)
	}
}

func TestReconcileRecordsOnce(t *testing.T) {
	gw := &stubGateway{sessions: map[string]*stripe.CheckoutSession{
		"cs_1": paidSession("cs_1", validMetadata()),
	}}
	ledger := &stubLedger{}
	mailer := &stubMailer{}
	svc := newTestCheckout(gw, ledger, mailer)

	for i := 0; i < 5; i++ {
		p, err := svc.Reconcile(context.Background(), "cs_1")
		if err != nil {
			t.Fatalf("Reconcile #%d: %v", i, err)
		}
		if p.StripeSessionID != "cs_1" {
			t.Fatalf("wrong session on row: %s", p.StripeSessionID)
		}
	}
	if ledger.count() != 1 {
		t.Fatalf("ledger has %d rows, want 1", ledger.count())
	}
	waitForConfirmations(t, mailer, 1)
}

func TestReconcileConcurrent(t *testing.T) {
	gw := &stubGateway{sessions: map[string]*stripe.CheckoutSession{
		"cs_1": paidSession("cs_1", validMetadata()),
	}}
	ledger := &stubLedger{}
	mailer := &stubMailer{}
	svc := newTestCheckout(gw, ledger, mailer)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Reconcile(context.Background(), "cs_1"); err != nil {
				t.Errorf("Reconcile: %v", err)
			}
		}()
	}
	wg.Wait()

	if ledger.count() != 1 {
		t.Fatalf("ledger has %d rows, want 1", ledger.count())
	}
	waitForConfirmations(t, mailer, 1)
}

func TestReconcileUnpaidSession(t *testing.T) {
	sess := paidSession("cs_1", validMetadata())
	sess.PaymentStatus = stripe.PaymentStatusUnpaid
	gw := &stubGateway{sessions: map[string]*stripe.CheckoutSession{"cs_1": sess}}
	ledger := &stubLedger{}
	svc := newTestCheckout(gw, ledger, &stubMailer{})

	_, err := svc.Reconcile(context.Background(), "cs_1")
	if !errors.Is(err, ErrPaymentIncomplete) {
		t.Fatalf("err = %v, want ErrPaymentIncomplete", err)
	}
	if ledger.count() != 0 {
		t.Fatalf("unpaid session wrote %d rows", ledger.count())
	}
}

func TestReconcileMissingMetadata(t *testing.T) {
	sess := paidSession("cs_1", map[string]string{"buyer_email": "alice@example.com"})
	gw := &stubGateway{sessions: map[string]*stripe.CheckoutSession{"cs_1": sess}}
	ledger := &stubLedger{}
	svc := newTestCheckout(gw, ledger, &stubMailer{})

	_, err := svc.Reconcile(context.Background(), "cs_1")
	if !errors.Is(err, ErrMissingMetadata) {
		t.Fatalf("err = %v, want ErrMissingMetadata", err)
	}
	if ledger.count() != 0 {
		t.Fatalf("unattributable session wrote %d rows", ledger.count())
	}
}

func TestReconcileFallsBackToCustomerEmail(t *testing.T) {
	sess := paidSession("cs_1", map[string]string{"report_id": "7"})
	sess.CustomerEmail = "Bob@Example.com"
	gw := &stubGateway{sessions: map[string]*stripe.CheckoutSession{"cs_1": sess}}
	ledger := &stubLedger{}
	svc := newTestCheckout(gw, ledger, &stubMailer{})

	p, err := svc.Reconcile(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if p.BuyerEmail != "bob@example.com" {
		t.Fatalf("BuyerEmail = %q, want customer email lower-cased", p.BuyerEmail)
	}
}

func TestReconcileUsesSettledAmount(t *testing.T) {
	sess := paidSession("cs_1", validMetadata())
	sess.AmountTotal = 1299
	sess.Currency = "eur"
	gw := &stubGateway{sessions: map[string]*stripe.CheckoutSession{"cs_1": sess}}
	ledger := &stubLedger{}
	svc := newTestCheckout(gw, ledger, &stubMailer{})

	p, err := svc.Reconcile(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if p.Amount != 12.99 {
		t.Errorf("Amount = %v, want 12.99 from settlement", p.Amount)
	}
	if p.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", p.Currency)
	}
}

func TestReconcileSessionNotFound(t *testing.T) {
	gw := &stubGateway{sessions: map[string]*stripe.CheckoutSession{}}
	svc := newTestCheckout(gw, &stubLedger{}, &stubMailer{})
	_, err := svc.Reconcile(context.Background(), "cs_missing")
	if !errors.Is(err, stripe.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	gw := &stubGateway{}
	ledger := &stubLedger{}
	svc := newTestCheckout(gw, ledger, &stubMailer{})

	ev := &stripe.Event{ID: "evt_1", Type: stripe.EventIgnored, RawType: "invoice.paid"}
	if err := svc.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if ledger.count() != 0 {
		t.Fatalf("ignored event wrote %d rows", ledger.count())
	}
}

func TestHandleEventCompletedReconciles(t *testing.T) {
	gw := &stubGateway{sessions: map[string]*stripe.CheckoutSession{
		"cs_1": paidSession("cs_1", validMetadata()),
	}}
	ledger := &stubLedger{}
	svc := newTestCheckout(gw, ledger, &stubMailer{})

	ev := &stripe.Event{
		ID:      "evt_1",
		Type:    stripe.EventCheckoutCompleted,
		RawType: "checkout.session.completed",
		Session: &stripe.CheckoutSession{ID: "cs_1"},
	}
	if err := svc.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if ledger.count() != 1 {
		t.Fatalf("ledger has %d rows, want 1", ledger.count())
	}
}
