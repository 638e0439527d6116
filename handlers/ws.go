package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Events upgrades to a websocket that streams the caller's notifications.
// Browsers cannot set headers on the upgrade, so ?token= is accepted too.
func (a *API) Events(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	claims, err := a.Identity.Authenticate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	if err := a.Hub.ServeWS(c.Writer, c.Request, claims.UserID, claims.Role); err != nil {
		logrus.WithError(err).WithField("user_id", claims.UserID).Warn("Websocket upgrade failed")
	}
}
