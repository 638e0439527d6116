package handlers

import (
	"net/http"

	"smartbite-api/middleware"
	"smartbite-api/models"
	"smartbite-api/payments"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type InitiatePaymentRequest struct {
	OrderID     uint   `json:"order_id" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// InitiatePayment starts a mobile money collection for one of the
// customer's orders
func (a *API) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	res, err := a.Payments.InitiatePayment(c.Request.Context(), req.OrderID, middleware.GetUserID(c), req.PhoneNumber)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Payment request sent. Please check your phone to complete the payment."
	if res.Status == models.PaymentSuccessful {
		message = "Payment successful!"
	}
	c.JSON(http.StatusOK, gin.H{
		"paymentId":       res.PaymentID,
		"status":          res.Status,
		"gatewayResponse": res.GatewayResponse,
		"message":         message,
	})
}

// GetPaymentStatus reconciles and returns the latest attempt for an order
func (a *API) GetPaymentStatus(c *gin.Context) {
	orderID, err := idParam(c, "orderId")
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := a.Payments.PaymentStatus(c.Request.Context(), orderID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p})
}

// GetPaymentHistory lists the caller's payment attempts
func (a *API) GetPaymentHistory(c *gin.Context) {
	history, err := a.Payments.History(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(history), "payments": history})
}

// PaymentWebhook receives gateway callbacks. It always answers 200 so the
// gateway does not retry a payload it will never be able to apply.
func (a *API) PaymentWebhook(c *gin.Context) {
	var in payments.WebhookInput
	if err := c.ShouldBind(&in); err != nil {
		logrus.WithError(err).Warn("Unreadable payment webhook")
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	logrus.WithFields(logrus.Fields{
		"reference":          in.Reference,
		"external_reference": in.ExternalReference,
		"status":             in.Status,
	}).Info("Payment webhook received")

	if err := a.Payments.HandleWebhook(c.Request.Context(), in); err != nil {
		logrus.WithError(err).WithField("reference", in.Reference).Error("Payment webhook processing failed")
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
