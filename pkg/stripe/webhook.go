package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSignature covers every webhook verification failure: missing or
// malformed header, signature mismatch, stale timestamp, unparseable payload.
// Callers must not act on the payload when this is returned.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventType tags the decoded webhook event. Anything we do not act on decodes
// to EventIgnored rather than falling through untyped.
type EventType string

const (
	EventCheckoutCompleted EventType = "checkout.session.completed"
	EventIgnored           EventType = "ignored"
)

// Event is a verified, decoded webhook event. Session is set only for
// EventCheckoutCompleted.
type Event struct {
	ID      string
	Type    EventType
	RawType string
	Session *CheckoutSession
}

// Webhook signatures older than this are rejected to limit replay.
const signatureTolerance = 5 * time.Minute

// ConstructEvent verifies the Stripe-Signature header against the raw payload
// and only then decodes it. The header format is "t=<unix>,v1=<hex hmac>",
// signed over "<t>.<payload>" with HMAC-SHA256. Fails closed on any mismatch.
func ConstructEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	ts, sigs, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}
	if d := time.Since(time.Unix(ts, 0)); d > signatureTolerance || d < -signatureTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	verified := false
	for _, sig := range sigs {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, ErrInvalidSignature
	}

	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Type == "" {
		return nil, fmt.Errorf("%w: malformed payload", ErrInvalidSignature)
	}

	ev := &Event{ID: envelope.ID, RawType: envelope.Type}
	switch envelope.Type {
	case string(EventCheckoutCompleted):
		var sess CheckoutSession
		if err := json.Unmarshal(envelope.Data.Object, &sess); err != nil || sess.ID == "" {
			return nil, fmt.Errorf("%w: malformed session object", ErrInvalidSignature)
		}
		ev.Type = EventCheckoutCompleted
		ev.Session = &sess
	default:
		ev.Type = EventIgnored
	}
	return ev, nil
}

func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}
	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: incomplete signature header", ErrInvalidSignature)
	}
	return ts, sigs, nil
}
