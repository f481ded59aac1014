package handlers

import (
	"net/http"
	"time"

	"taskping/internal/database"
	"taskping/internal/models"

	"github.com/gin-gonic/gin"
)

// AddSubscription stores a browser push subscription for the user. A user
// may register several devices; the same endpoint is not stored twice.
func AddSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request models.AddSubscriptionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		handleError(c, http.StatusBadRequest, "Invalid subscription data", err)
		return
	}

	db := database.GetDB()

	var count int64
	if err := db.Model(&models.Subscription{}).
		Where("user_id = ? AND endpoint = ?", userID, request.Endpoint).
		Count(&count).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to save subscription", err)
		return
	}
	if count > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subscription already exists"})
		return
	}

	subscription := models.Subscription{
		UserID:     userID,
		Endpoint:   request.Endpoint,
		KeysAuth:   request.Keys.Auth,
		KeysP256dh: request.Keys.P256dh,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := db.Create(&subscription).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to save subscription", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Subscription added successfully"})
}
