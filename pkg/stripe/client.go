// Package stripe is a thin client for the Stripe Checkout Session API and its
// webhook events. It covers only what checkout needs: creating a hosted
// session, fetching its authoritative state, and verifying webhook signatures.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrGatewayUnavailable is a transport-level failure; the call may be retried.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrSessionNotFound means the session id is unknown to the gateway; not retryable.
	ErrSessionNotFound = errors.New("checkout session not found")
)

const defaultBaseURL = "https://api.stripe.com"

// Client calls the Stripe REST API. The API key is injected at construction;
// nothing is read from globals.
type Client struct {
	BaseURL   string
	secretKey string
	client    *http.Client
}

func NewClient(secretKey string) *Client {
	return &Client{
		BaseURL:   defaultBaseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CheckoutSessionParams describes the session to create. Amount is in minor
// units (cents); Metadata is round-tripped by the gateway untouched.
type CheckoutSessionParams struct {
	ClientReferenceID  string
	AmountMinor        int64
	Currency           string
	ProductName        string
	ProductDescription string
	ProductImageURL    string
	CustomerEmail      string
	SuccessURL         string
	CancelURL          string
	Metadata           map[string]string
}

// CheckoutSession is the gateway's view of a session. AmountTotal and Currency
// are settlement values and take precedence over whatever was requested.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// PaymentStatus values reported by the gateway.
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// MinorUnits converts a decimal price to minor units, rounding to the nearest
// cent. Plain truncation would turn 9.99 into 998 because of float
// representation.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// DecimalAmount converts minor units back to a decimal amount.
func DecimalAmount(minor int64) float64 {
	return float64(minor) / 100
}

// CreateCheckoutSession opens a hosted checkout session and returns its id and URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	if p.ClientReferenceID != "" {
		form.Set("client_reference_id", p.ClientReferenceID)
	}
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(p.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.AmountMinor, 10))
	form.Set("line_items[0][price_data][product_data][name]", p.ProductName)
	if p.ProductDescription != "" {
		form.Set("line_items[0][price_data][product_data][description]", p.ProductDescription)
	}
	if p.ProductImageURL != "" {
		form.Set("line_items[0][price_data][product_data][images][0]", p.ProductImageURL)
	}
	form.Set("customer_email", p.CustomerEmail)
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	for k, v := range p.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var sess CheckoutSession
	if err := c.call(ctx, http.MethodPost, "/v1/checkout/sessions", form, &sess); err != nil {
		return nil, err
	}
	log.Printf("[STRIPE] created checkout session %s", sess.ID)
	return &sess, nil
}

// FetchSession retrieves the authoritative session state by id.
func (c *Client) FetchSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	var sess CheckoutSession
	if err := c.call(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs one API request with a single retry on transport errors and
// 5xx responses. Auth and validation failures are never retried.
func (c *Client) call(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return json.Unmarshal(respBody, out)
		case resp.StatusCode == http.StatusNotFound:
			return ErrSessionNotFound
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		default:
			var apiErr apiError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				return fmt.Errorf("stripe: %s: %s", apiErr.Error.Type, apiErr.Error.Message)
			}
			return fmt.Errorf("stripe: status %d", resp.StatusCode)
		}
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, lastErr)
}
