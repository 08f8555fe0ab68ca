package service

import (
	"errors"
	"testing"
	"time"

	"reportgate/internal/models"
)

func seededLedger() *stubLedger {
	return &stubLedger{rows: []*models.Purchase{
		{
			ID:              1,
			ReportID:        7,
			BuyerEmail:      "alice@example.com",
			StripeSessionID: "cs_1",
			Amount:          19.99,
			Currency:        "USD",
			PurchasedAt:     time.Now(),
		},
	}, nextID: 1}
}

func newTestEntitlements(ledger *stubLedger, mailer *stubMailer) *EntitlementService {
	reports := &stubReports{reports: map[uint]*models.Report{
		7: paidReport(),
		1: {ID: 1, Title: "Free Guide", Slug: "free-guide", IsPaid: false, DownloadURL: "https://files.example/guide.pdf"},
	}}
	return NewEntitlementService(reports, ledger, mailer)
}

func TestHasPurchasedCaseInsensitive(t *testing.T) {
	svc := newTestEntitlements(seededLedger(), &stubMailer{})

	for _, email := range []string{"alice@example.com", "ALICE@EXAMPLE.COM", "Alice@Example.Com"} {
		ok, err := svc.HasPurchased(email, 7)
		if err != nil {
			t.Fatalf("HasPurchased(%q): %v", email, err)
		}
		if !ok {
			t.Errorf("HasPurchased(%q) = false, want true", email)
		}
	}
}

func TestHasPurchasedPerReport(t *testing.T) {
	svc := newTestEntitlements(seededLedger(), &stubMailer{})
	ok, err := svc.HasPurchased("alice@example.com", 99)
	if err != nil {
		t.Fatalf("HasPurchased: %v", err)
	}
	if ok {
		t.Error("purchase of one report granted another")
	}
}

func TestHasPurchasedInvalidEmail(t *testing.T) {
	svc := newTestEntitlements(seededLedger(), &stubMailer{})
	ok, err := svc.HasPurchased("not-an-email", 7)
	if err != nil {
		t.Fatalf("HasPurchased: %v", err)
	}
	if ok {
		t.Error("invalid email reported as entitled")
	}
}

func TestRegisterDownloadFreeReport(t *testing.T) {
	svc := newTestEntitlements(&stubLedger{}, &stubMailer{})
	url, err := svc.RegisterDownload("", 1)
	if err != nil {
		t.Fatalf("RegisterDownload: %v", err)
	}
	if url != "https://files.example/guide.pdf" {
		t.Errorf("url = %q", url)
	}
}

func TestRegisterDownloadPaidWithoutPurchase(t *testing.T) {
	svc := newTestEntitlements(&stubLedger{}, &stubMailer{})
	_, err := svc.RegisterDownload("bob@example.com", 7)
	if !errors.Is(err, ErrNotEntitled) {
		t.Fatalf("err = %v, want ErrNotEntitled", err)
	}
}

func TestRegisterDownloadPaidNoEmail(t *testing.T) {
	svc := newTestEntitlements(seededLedger(), &stubMailer{})
	_, err := svc.RegisterDownload("", 7)
	if !errors.Is(err, ErrNotEntitled) {
		t.Fatalf("err = %v, want ErrNotEntitled", err)
	}
}

func TestRegisterDownloadCountsDownloads(t *testing.T) {
	ledger := seededLedger()
	svc := newTestEntitlements(ledger, &stubMailer{})

	url, err := svc.RegisterDownload("Alice@Example.com", 7)
	if err != nil {
		t.Fatalf("RegisterDownload: %v", err)
	}
	if url != "https://files.example/outlook.pdf" {
		t.Errorf("url = %q", url)
	}
	if got := ledger.rows[0].DownloadCount; got != 1 {
		t.Errorf("DownloadCount = %d, want 1", got)
	}
}

func TestRegisterDownloadUnknownReport(t *testing.T) {
	svc := newTestEntitlements(&stubLedger{}, &stubMailer{})
	_, err := svc.RegisterDownload("alice@example.com", 404)
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("err = %v, want ErrReportNotFound", err)
	}
}

func TestRequestDeliveryEntitled(t *testing.T) {
	mailer := &stubMailer{}
	svc := newTestEntitlements(seededLedger(), mailer)

	if err := svc.RequestDelivery("alice@example.com", 7); err != nil {
		t.Fatalf("RequestDelivery: %v", err)
	}
	if mailer.deliveries != 1 {
		t.Errorf("deliveries = %d, want 1", mailer.deliveries)
	}
}

func TestRequestDeliveryNotEntitled(t *testing.T) {
	mailer := &stubMailer{}
	svc := newTestEntitlements(&stubLedger{}, mailer)

	err := svc.RequestDelivery("bob@example.com", 7)
	if !errors.Is(err, ErrNotEntitled) {
		t.Fatalf("err = %v, want ErrNotEntitled", err)
	}
	if mailer.deliveries != 0 {
		t.Error("mail sent without entitlement")
	}
}

func TestRequestDeliveryFreeReport(t *testing.T) {
	mailer := &stubMailer{}
	svc := newTestEntitlements(&stubLedger{}, mailer)

	if err := svc.RequestDelivery("anyone@example.com", 1); err != nil {
		t.Fatalf("RequestDelivery: %v", err)
	}
	if mailer.deliveries != 1 {
		t.Errorf("deliveries = %d, want 1", mailer.deliveries)
	}
}

func TestPurchasesFor(t *testing.T) {
	svc := newTestEntitlements(seededLedger(), &stubMailer{})

	purchases, err := svc.PurchasesFor("ALICE@example.com")
	if err != nil {
		t.Fatalf("PurchasesFor: %v", err)
	}
	if len(purchases) != 1 {
		t.Fatalf("got %d purchases, want 1", len(purchases))
	}

	purchases, err = svc.PurchasesFor("nobody@example.com")
	if err != nil {
		t.Fatalf("PurchasesFor: %v", err)
	}
	if len(purchases) != 0 {
		t.Fatalf("got %d purchases, want 0", len(purchases))
	}
}
