package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"negotiation-service/internal/negotiation"
	"negotiation-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	service   *negotiation.Service
	jwtSecret string
}

// NewHandler creates a new HTTP handler
func NewHandler(service *negotiation.Service, jwtSecret string) *Handler {
	return &Handler{
		service:   service,
		jwtSecret: jwtSecret,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", AuthMiddleware(h.jwtSecret))
	{
		v1.POST("/negotiations", h.openNegotiation)
		v1.GET("/negotiations/my", h.listMine)
		v1.GET("/negotiations/selling", h.listSelling)
		v1.GET("/negotiations/:id", h.getNegotiation)
		v1.POST("/negotiations/:id/counter", h.counter)
		v1.POST("/negotiations/:id/accept", h.accept)
		v1.POST("/negotiations/:id/reject", h.reject)
		v1.POST("/negotiations/:id/cancel", h.cancel)
		v1.POST("/negotiations/validate-code", h.validateCode)
		v1.POST("/negotiations/redeem-code", h.redeemCode)
		v1.POST("/codes/:code/void", h.voidCode)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type openNegotiationRequest struct {
	ProjectID   string `json:"project_id" binding:"required"`
	OfferAmount int64  `json:"offer_amount" binding:"required,min=1"`
}

func (h *Handler) openNegotiation(c *gin.Context) {
	var req openNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	n, err := h.service.Open(c.Request.Context(), currentUserID(c), req.ProjectID, req.OfferAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *Handler) listMine(c *gin.Context) {
	list, err := h.service.ListForBuyer(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"negotiations": list})
}

func (h *Handler) listSelling(c *gin.Context) {
	list, err := h.service.ListForSeller(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"negotiations": list})
}

func (h *Handler) getNegotiation(c *gin.Context) {
	n, ledger, err := h.service.Get(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"negotiation": n, "ledger": ledger})
}

type counterRequest struct {
	Amount int64 `json:"amount" binding:"required,min=1"`
}

func (h *Handler) counter(c *gin.Context) {
	var req counterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	n, err := h.service.Counter(c.Request.Context(), c.Param("id"), currentUserID(c), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) accept(c *gin.Context) {
	n, code, err := h.service.Accept(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"negotiation": n, "discount_code": code})
}

func (h *Handler) reject(c *gin.Context) {
	n, err := h.service.Reject(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) cancel(c *gin.Context) {
	n, err := h.service.Cancel(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

type validateCodeRequest struct {
	Code      string `json:"code" binding:"required"`
	ProjectID string `json:"project_id" binding:"required"`
}

// validateCode is the read-only checkout preview.
func (h *Handler) validateCode(c *gin.Context) {
	var req validateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	code, err := h.service.Validate(c.Request.Context(), req.Code, req.ProjectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":       true,
		"final_price": code.FinalPrice,
		"expires_at":  code.ExpiresAt,
	})
}

type redeemCodeRequest struct {
	Code      string `json:"code" binding:"required"`
	ProjectID string `json:"project_id" binding:"required"`
	OrderID   string `json:"order_id" binding:"required"`
}

// redeemCode atomically consumes the code for the checkout collaborator.
func (h *Handler) redeemCode(c *gin.Context) {
	var req redeemCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	code, err := h.service.Redeem(c.Request.Context(), req.Code, req.ProjectID, currentUserID(c), req.OrderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"final_price": code.FinalPrice,
		"redeemed_at": code.RedeemedAt,
		"order_id":    code.OrderID,
	})
}

func (h *Handler) voidCode(c *gin.Context) {
	code, err := h.service.Void(c.Request.Context(), c.Param("code"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, code)
}

// respondError maps domain errors to HTTP status codes. Protocol violations
// carry the violated rule in the body; nothing is clamped or corrected.
func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, negotiation.ErrDuplicateActiveNegotiation),
		errors.Is(err, negotiation.ErrConcurrentModification),
		errors.Is(err, negotiation.ErrCodeAlreadyRedeemed),
		errors.Is(err, negotiation.ErrNegotiationNotActive),
		errors.Is(err, negotiation.ErrNegotiationNotAccepted):
		return http.StatusConflict
	case errors.Is(err, negotiation.ErrNegotiationExpired),
		errors.Is(err, negotiation.ErrCodeExpired),
		errors.Is(err, negotiation.ErrCodeVoided):
		return http.StatusGone
	case errors.Is(err, negotiation.ErrWrongProposer),
		errors.Is(err, negotiation.ErrNotParticipant),
		errors.Is(err, negotiation.ErrOwnProject),
		errors.Is(err, negotiation.ErrBuyerMismatch):
		return http.StatusForbidden
	case errors.Is(err, negotiation.ErrPriceOutOfBounds),
		errors.Is(err, negotiation.ErrInvalidCounter),
		errors.Is(err, negotiation.ErrTooManyRounds),
		errors.Is(err, negotiation.ErrInvalidSequence):
		return http.StatusUnprocessableEntity
	case errors.Is(err, negotiation.ErrNegotiationNotFound),
		errors.Is(err, negotiation.ErrCodeNotFound),
		errors.Is(err, negotiation.ErrProjectNotFound),
		errors.Is(err, negotiation.ErrProjectMismatch):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
