package handlers

import (
	"log"
	"net/http"

	"taskping/internal/scheduler"
	"taskping/internal/services"

	"github.com/gin-gonic/gin"
)

var (
	engine       *scheduler.Engine
	timetableSvc *services.TimetableService
)

// Init wires the handlers to the scheduling engine and timetable service.
// Must be called before routes are registered.
func Init(e *scheduler.Engine, ts *services.TimetableService) {
	engine = e
	timetableSvc = ts
}

// handleError provides a consistent way to handle and log errors
func handleError(c *gin.Context, status int, message string, err error) {
	log.Printf("Error: %v", err)
	c.JSON(status, gin.H{"error": message})
}

// HomeHandler handles requests to the root path "/"
func HomeHandler(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to TaskPing!")
}

// HealthHandler is a simple health check endpoint
func HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// currentUserID returns the authenticated user's ID, or aborts with 401.
func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return "", false
	}
	return userID, true
}
