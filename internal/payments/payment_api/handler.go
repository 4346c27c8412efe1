package payment_api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"venuly/internal/apperr"
	"venuly/internal/auth"
	"venuly/internal/logger"
	"venuly/internal/models"
	payments "venuly/internal/payments/service"
	"venuly/internal/utils"
)

// BasePath is where the router is mounted; gin sees the full request path.
const BasePath = "/api/payments"

type Handler struct {
	PaymentService *payments.PaymentService
	Logger         *logger.Logger
}

func (h *Handler) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	g := r.Group(BasePath)
	g.GET("", h.ListPayments)
	g.POST("", h.CreatePayment)
	g.POST("/webhook", h.Webhook)
	g.GET("/:id", h.GetPayment)
	g.POST("/:id/milestones/:index/release", h.ReleaseMilestone)
	return r
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, body := utils.ErrorResponse(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("internal error: %v", err))
	}
	c.AbortWithStatusJSON(status, body)
}

func (h *Handler) CreatePayment(c *gin.Context) {
	id, err := auth.RequireRole(c.Request.Context(), models.RoleClient)
	if err != nil {
		h.fail(c, err)
		return
	}

	var req payments.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.BadRequest("Invalid JSON body"))
		return
	}

	checkout, err := h.PaymentService.CreatePayment(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

// Webhook is called by Stripe and carries no session; the signature header
// authenticates it.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		h.fail(c, apperr.BadRequest("Unreadable webhook body"))
		return
	}
	if err := h.PaymentService.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		if apperr.KindOf(err) == apperr.KindBadRequest {
			h.Logger.LogSecurity("WEBHOOK_REJECTED", err.Error())
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) ListPayments(c *gin.Context) {
	id, err := auth.RequireAuth(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	list, err := h.PaymentService.ListPayments(c.Request.Context(), id, models.PaymentStatus(c.Query("status")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list})
}

func (h *Handler) GetPayment(c *gin.Context) {
	id, err := auth.RequireAuth(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	payment, err := h.PaymentService.GetPayment(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

func (h *Handler) ReleaseMilestone(c *gin.Context) {
	id, err := auth.RequireRole(c.Request.Context(), models.RoleClient)
	if err != nil {
		h.fail(c, err)
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.fail(c, apperr.BadRequest("Milestone index must be a number"))
		return
	}

	payment, err := h.PaymentService.ReleaseMilestone(c.Request.Context(), id, c.Param("id"), index)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}
