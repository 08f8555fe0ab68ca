package handler

import (
	"errors"
	"log"
	"net/http"

	"reportgate/config"
	"reportgate/internal/auth"
	"reportgate/internal/domain"
	"reportgate/internal/service"
	"reportgate/pkg/stripe"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	checkout *service.CheckoutService
	jwtCfg   *config.JWTConfig
}

func NewCheckoutHandler(checkout *service.CheckoutService, jwtCfg *config.JWTConfig) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, jwtCfg: jwtCfg}
}

// Start opens a gateway checkout session and returns its redirect URL.
// POST /api/v1/checkout
func (h *CheckoutHandler) Start(c *gin.Context) {
	var req struct {
		ReportID  uint   `json:"report_id" binding:"required"`
		Email     string `json:"email" binding:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report_id and email are required"})
		return
	}

	sess, err := h.checkout.StartCheckout(c.Request.Context(), service.StartCheckoutInput{
		ReportID:  req.ReportID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		case errors.Is(err, service.ErrReportNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		case errors.Is(err, service.ErrNotPurchasable):
			c.JSON(http.StatusBadRequest, gin.H{"error": "this report cannot be purchased"})
		case errors.Is(err, stripe.ErrGatewayUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable, try again"})
		default:
			log.Printf("[CHECKOUT] start failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start checkout"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":   sess.ID,
		"checkout_url": sess.URL,
	})
}

// Confirm reconciles the session the buyer returned with and sets the
// identity cookie on success.
// GET /api/v1/checkout/confirm?session_id=...
func (h *CheckoutHandler) Confirm(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	purchase, err := h.checkout.Reconcile(c.Request.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, stripe.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown checkout session"})
		case errors.Is(err, service.ErrPaymentIncomplete):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment has not completed"})
		case errors.Is(err, service.ErrMissingMetadata):
			c.JSON(http.StatusBadRequest, gin.H{"error": "session cannot be attributed, contact support"})
		case errors.Is(err, stripe.ErrGatewayUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable, try again"})
		default:
			log.Printf("[CHECKOUT] confirm failed for %s: %v", sessionID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to confirm payment"})
		}
		return
	}

	setIdentityCookie(c, h.jwtCfg, purchase.BuyerEmail)
	c.JSON(http.StatusOK, gin.H{
		"report_id": purchase.ReportID,
		"email":     purchase.BuyerEmail,
		"amount":    purchase.Amount,
		"currency":  purchase.Currency,
	})
}

// setIdentityCookie remembers the buyer's email across visits. The cookie is
// a signed hint; delivery endpoints verify against the ledger regardless.
func setIdentityCookie(c *gin.Context, cfg *config.JWTConfig, email string) {
	token, err := auth.GenerateIdentityToken(cfg, email)
	if err != nil {
		log.Printf("[IDENTITY] token generation failed: %v", err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(domain.IdentityCookie, token, int(cfg.IdentityExpiry.Seconds()), "/", "", false, true)
}

// identityEmail resolves the caller's email: explicit value first, then the
// signed cookie. Empty when neither is present or the cookie fails to parse.
func identityEmail(c *gin.Context, cfg *config.JWTConfig, explicit string) string {
	if explicit != "" {
		return explicit
	}
	token, err := c.Cookie(domain.IdentityCookie)
	if err != nil {
		return ""
	}
	email, err := auth.ParseIdentityToken(cfg, token)
	if err != nil {
		return ""
	}
	return email
}
