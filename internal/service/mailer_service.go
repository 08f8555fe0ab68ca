package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"reportgate/config"
	"reportgate/internal/models"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoMailer sends transactional email through the Brevo REST API. With no
// API key configured it logs and drops the message so local setups work
// without an account.
type BrevoMailer struct {
	cfg      *config.BrevoConfig
	siteName string
	siteURL  string
	Endpoint string
	client   *http.Client
}

func NewBrevoMailer(cfg *config.BrevoConfig, site *config.SiteConfig) *BrevoMailer {
	return &BrevoMailer{
		cfg:      cfg,
		siteName: site.Name,
		siteURL:  site.BaseURL,
		Endpoint: brevoEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type brevoEmail struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (m *BrevoMailer) SendPurchaseConfirmation(email, name string, report *models.Report) error {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}
	reportURL := fmt.Sprintf("%s/reports/%s", m.siteURL, report.Slug)
	html := fmt.Sprintf(`<p>%s,</p>
<p>Thank you for your purchase of <strong>%s</strong>.</p>
<p>Your report is ready:</p>
<p><a href="%s">View Report</a> &nbsp; <a href="%s/download">Download Now</a></p>
<p>You can come back to this link anytime using the same email address.</p>
<p>%s</p>`, greeting, report.Title, reportURL, reportURL, m.siteName)

	subject := fmt.Sprintf("Your purchase: %s", report.Title)
	return m.send(email, name, subject, html)
}

func (m *BrevoMailer) SendReportDelivery(email string, report *models.Report) error {
	reportURL := fmt.Sprintf("%s/reports/%s", m.siteURL, report.Slug)
	html := fmt.Sprintf(`<p>Hi,</p>
<p>Here is your copy of <strong>%s</strong>:</p>
<p><a href="%s/download">Download Now</a></p>
<p>%s</p>`, report.Title, reportURL, m.siteName)

	subject := fmt.Sprintf("Your report: %s", report.Title)
	return m.send(email, "", subject, html)
}

func (m *BrevoMailer) send(toEmail, toName, subject, html string) error {
	if m.cfg.APIKey == "" {
		log.Printf("[MAIL] BREVO_API_KEY not set, dropping email to %s (%s)", toEmail, subject)
		return nil
	}

	payload := brevoEmail{
		Sender:      brevoAddress{Email: m.cfg.FromEmail, Name: m.cfg.FromName},
		To:          []brevoAddress{{Email: toEmail, Name: toName}},
		Subject:     subject,
		HTMLContent: html,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo: status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
