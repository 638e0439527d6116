package handlers

import (
	"net/http"
	"strconv"

	"smartbite-api/apperror"
	"smartbite-api/middleware"
	"smartbite-api/notify"
	"smartbite-api/orders"
	"smartbite-api/payments"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// API holds the collaborators every handler needs
type API struct {
	DB       *gorm.DB
	Orders   *orders.Service
	Payments *payments.Service
	Hub      *notify.Hub
	Identity *middleware.Identity
}

func actor(c *gin.Context) orders.Actor {
	return orders.Actor{UserID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}

func idParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.ErrValidation.Withf("invalid %s", name)
	}
	return uint(id), nil
}

func bindError(err error) error {
	return apperror.ErrValidation.Withf("%s", err.Error())
}

// respondError maps an error onto its HTTP status. Internal failures only
// expose a generic message.
func respondError(c *gin.Context, err error) {
	e := apperror.As(err)
	_ = c.Error(err)
	status := statusFor(e)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		c.JSON(status, gin.H{"error": "Internal server error", "code": apperror.ErrInternal.Code})
		return
	}
	c.JSON(status, gin.H{"error": e.Message, "code": e.Code})
}

func statusFor(e *apperror.Error) int {
	switch {
	case apperror.ErrNotAvailable.Is(e), apperror.ErrAlreadyPaid.Is(e):
		return http.StatusBadRequest
	case apperror.ErrInvalidTransition.Is(e):
		return http.StatusUnprocessableEntity
	}
	switch e.Kind {
	case apperror.KindValidation, apperror.KindGateway:
		return http.StatusBadRequest
	case apperror.KindAuthorization:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
