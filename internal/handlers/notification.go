package handlers

import (
	"net/http"

	"taskping/internal/database"
	"taskping/internal/models"

	"github.com/gin-gonic/gin"
)

// GetNotifications lists the user's notification history, newest first
func GetNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var notifications []models.Notification
	err := database.GetDB().
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(100).
		Find(&notifications).Error
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to fetch notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkNotificationRead flags a notification as read
func MarkNotificationRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id := c.Param("id")

	result := database.GetDB().
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		handleError(c, http.StatusInternalServerError, "Failed to update notification", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
